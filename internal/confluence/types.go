package confluence

import "fmt"

// Page is the subset of a Confluence content object csfpub reads.
type Page struct {
	ID        string     `json:"id"`
	Type      string     `json:"type,omitempty"`
	Title     string     `json:"title"`
	Space     *Space     `json:"space,omitempty"`
	Version   *Version   `json:"version,omitempty"`
	Ancestors []Ancestor `json:"ancestors,omitempty"`
}

// VersionNumber returns the page version, or 1 when the response omitted it.
func (p *Page) VersionNumber() int {
	if p == nil || p.Version == nil || p.Version.Number == 0 {
		return 1
	}
	return p.Version.Number
}

// HasAncestor reports whether id is among the page's ancestors.
func (p *Page) HasAncestor(id string) bool {
	for _, a := range p.Ancestors {
		if a.ID == id {
			return true
		}
	}
	return false
}

type Space struct {
	Key string `json:"key"`
}

type Version struct {
	Number int `json:"number"`
}

type Ancestor struct {
	ID string `json:"id"`
}

// Attachment is an attachment content object.
type Attachment struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Version *Version `json:"version,omitempty"`
}

// PageInput carries the fields for creating or updating a page whose body is
// already in storage format.
type PageInput struct {
	Title    string
	SpaceKey string
	ParentID string // create only
	Version  int    // update only; the new version number
	Body     string
}

type storage struct {
	Value          string `json:"value"`
	Representation string `json:"representation"`
}

type body struct {
	Storage storage `json:"storage"`
}

type pagePayload struct {
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Space     Space      `json:"space"`
	Ancestors []Ancestor `json:"ancestors,omitempty"`
	Version   *Version   `json:"version,omitempty"`
	Body      body       `json:"body"`
}

type pageList struct {
	Results []Page `json:"results"`
	Size    int    `json:"size"`
}

type attachmentList struct {
	Results []Attachment `json:"results"`
	Size    int          `json:"size"`
}

// APIError is returned for any non-2xx response.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("confluence: %s %s: status %d: %s", e.Method, e.URL, e.StatusCode, body)
}
