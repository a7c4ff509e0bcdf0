package core

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
)

var errUndecodable = errors.New("content is not valid in any configured encoding")

// Encoding is a named text codec for reading and writing documents.
// A nil codec means UTF-8.
type Encoding struct {
	Name  string
	codec encoding.Encoding
}

// LookupEncoding resolves an encoding name such as "utf-8", "cp949" or
// "latin-1".
func LookupEncoding(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "utf-8", "utf8":
		return Encoding{Name: "utf-8"}, nil
	case "cp949", "euc-kr", "euckr":
		return Encoding{Name: "euc-kr", codec: korean.EUCKR}, nil
	case "latin-1", "latin1", "iso-8859-1":
		return Encoding{Name: "latin-1", codec: charmap.ISO8859_1}, nil
	case "windows-1252", "cp1252":
		return Encoding{Name: "windows-1252", codec: charmap.Windows1252}, nil
	case "shift_jis", "shift-jis", "sjis":
		return Encoding{Name: "shift_jis", codec: japanese.ShiftJIS}, nil
	}
	return Encoding{}, fmt.Errorf("unsupported encoding %q", name)
}

// LookupEncodings resolves names in order. An empty list means UTF-8 with a
// Latin-1 fallback.
func LookupEncodings(names []string) ([]Encoding, error) {
	if len(names) == 0 {
		names = []string{"utf-8", "latin-1"}
	}
	out := make([]Encoding, 0, len(names))
	for _, n := range names {
		e, err := LookupEncoding(n)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Decode converts data to a string. UTF-8 must be valid; a legacy decode
// that yields replacement characters is treated as a failure.
func (e Encoding) Decode(data []byte) (string, error) {
	if e.codec == nil {
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%s: invalid byte sequence", e.Name)
		}
		return string(data), nil
	}
	out, err := e.codec.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", e.Name, err)
	}
	if bytes.ContainsRune(out, utf8.RuneError) {
		return "", fmt.Errorf("%s: invalid byte sequence", e.Name)
	}
	return string(out), nil
}

// Encode converts s back to the encoding's bytes.
func (e Encoding) Encode(s string) ([]byte, error) {
	if e.codec == nil {
		return []byte(s), nil
	}
	out, err := e.codec.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Name, err)
	}
	return out, nil
}

// decodeWithFallback tries each encoding in order and returns the first
// successful decode together with the encoding that produced it.
func decodeWithFallback(data []byte, encs []Encoding) (string, Encoding, error) {
	for _, e := range encs {
		text, err := e.Decode(data)
		if err == nil {
			return text, e, nil
		}
	}
	return "", Encoding{}, errUndecodable
}
