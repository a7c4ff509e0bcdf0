// Package confluence is a small client for the Confluence Server/Data Center
// REST v1 API (/rest/api) authenticated with a personal access token.
package confluence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const defaultTimeout = 60 * time.Second

// Client talks to one Confluence instance.
type Client struct {
	baseURL string // scheme://host/base/ with trailing slash
	token   string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithBaseURL overrides the https://domain/base_path URL derived in New.
// Tests point it at an httptest server.
func WithBaseURL(raw string) Option {
	return func(c *Client) {
		if raw != "" {
			c.baseURL = strings.TrimRight(raw, "/") + "/"
		}
	}
}

// New returns a client for https://<domain><basePath>.
func New(domain, basePath, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: BaseURL(domain, basePath),
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL joins domain and basePath into https://domain/base/.
func BaseURL(domain, basePath string) string {
	bp := basePath
	if !strings.HasPrefix(bp, "/") {
		bp = "/" + bp
	}
	if !strings.HasSuffix(bp, "/") {
		bp += "/"
	}
	return "https://" + domain + bp
}

func (c *Client) apiURL(p string) string {
	return c.baseURL + "rest/api/" + strings.TrimPrefix(p, "/")
}

// PageURL is the browser URL of a page.
func (c *Client) PageURL(pageID string) string {
	return c.baseURL + "pages/viewpage.action?pageId=" + url.QueryEscape(pageID)
}

// GetPage fetches a page with its version and ancestors.
func (c *Client) GetPage(ctx context.Context, id string) (*Page, error) {
	var p Page
	u := c.apiURL("content/"+url.PathEscape(id)) + "?expand=version,ancestors"
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// FindPages returns the pages titled title in space.
func (c *Client) FindPages(ctx context.Context, title, spaceKey string) ([]Page, error) {
	q := url.Values{}
	q.Set("title", title)
	q.Set("spaceKey", spaceKey)
	q.Set("type", "page")
	q.Set("expand", "ancestors,version")
	var list pageList
	if err := c.doJSON(ctx, http.MethodGet, c.apiURL("content")+"?"+q.Encode(), nil, &list); err != nil {
		return nil, err
	}
	return list.Results, nil
}

// CreatePage creates a page under in.ParentID.
func (c *Client) CreatePage(ctx context.Context, in PageInput) (*Page, error) {
	payload := pagePayload{
		Type:  "page",
		Title: in.Title,
		Space: Space{Key: in.SpaceKey},
		Body:  body{Storage: storage{Value: in.Body, Representation: "storage"}},
	}
	if in.ParentID != "" {
		payload.Ancestors = []Ancestor{{ID: in.ParentID}}
	}
	var p Page
	if err := c.doJSON(ctx, http.MethodPost, c.apiURL("content"), payload, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePage replaces the body of page id. in.Version must be the current
// version plus one.
func (c *Client) UpdatePage(ctx context.Context, id string, in PageInput) (*Page, error) {
	payload := pagePayload{
		Type:    "page",
		Title:   in.Title,
		Space:   Space{Key: in.SpaceKey},
		Version: &Version{Number: in.Version},
		Body:    body{Storage: storage{Value: in.Body, Representation: "storage"}},
	}
	var p Page
	if err := c.doJSON(ctx, http.MethodPut, c.apiURL("content/"+url.PathEscape(id)), payload, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// FindAttachment returns the attachment named name on page pageID, or nil.
func (c *Client) FindAttachment(ctx context.Context, pageID, name string) (*Attachment, error) {
	q := url.Values{}
	q.Set("filename", name)
	q.Set("expand", "version")
	u := c.apiURL("content/"+url.PathEscape(pageID)+"/child/attachment") + "?" + q.Encode()
	var list attachmentList
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &list); err != nil {
		return nil, err
	}
	if len(list.Results) == 0 {
		return nil, nil
	}
	return &list.Results[0], nil
}

// UploadAttachment adds the file at path to page pageID as attachment
// name. An empty name uses the file's basename.
func (c *Client) UploadAttachment(ctx context.Context, pageID, path, name string) (*Attachment, error) {
	u := c.apiURL("content/" + url.PathEscape(pageID) + "/child/attachment")
	name = attachmentName(path, name)
	var list attachmentList
	if err := c.upload(ctx, u, path, name, &list); err != nil {
		return nil, err
	}
	if len(list.Results) == 0 {
		return &Attachment{Title: name}, nil
	}
	return &list.Results[0], nil
}

// UpdateAttachmentData uploads a new version of attachment attID under
// name.
func (c *Client) UpdateAttachmentData(ctx context.Context, pageID, attID, path, name string) (*Attachment, error) {
	u := c.apiURL("content/" + url.PathEscape(pageID) + "/child/attachment/" + url.PathEscape(attID) + "/data")
	var att Attachment
	if err := c.upload(ctx, u, path, attachmentName(path, name), &att); err != nil {
		return nil, err
	}
	if att.ID == "" {
		att.ID = attID
	}
	return &att, nil
}

func attachmentName(path, name string) string {
	if name == "" {
		return filepath.Base(path)
	}
	return name
}

func (c *Client) upload(ctx context.Context, u, path, name string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return err
	}
	if err := mw.WriteField("minorEdit", "true"); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Atlassian-Token", "nocheck")
	return c.do(req, out)
}

func (c *Client) doJSON(ctx context.Context, method, u string, in, out any) error {
	var rd io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("confluence: %s %s: %w", req.Method, req.URL.Redacted(), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			Method:     req.Method,
			URL:        req.URL.Redacted(),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("confluence: decode %s response: %w", req.URL.Path, err)
	}
	return nil
}
