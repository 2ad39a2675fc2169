package lsp

import (
	"net/url"
	"sort"
	"strings"
	"sync"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/leapstack-labs/sqlsense/pkg/engine"
	"github.com/leapstack-labs/sqlsense/pkg/token"
)

// Document is an open editor buffer.
type Document struct {
	URI     string
	Text    string
	Version int
}

// DocumentStore holds open documents keyed by URI.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]Document
}

// NewDocumentStore creates an empty store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{documents: make(map[string]Document)}
}

// Open adds a document, replacing any earlier copy.
func (s *DocumentStore) Open(uri, text string, version int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[uri] = Document{URI: uri, Text: text, Version: version}
}

// Update replaces a document's text. Updates for unknown URIs open them.
func (s *DocumentStore) Update(uri, text string, version int) {
	s.Open(uri, text, version)
}

// Close forgets a document.
func (s *DocumentStore) Close(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents, uri)
}

// Get returns a copy of the document.
func (s *DocumentStore) Get(uri string) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.documents[uri]
	return d, ok
}

// List returns the open URIs in sorted order.
func (s *DocumentStore) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	uris := make([]string, 0, len(s.documents))
	for uri := range s.documents {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	return uris
}

// Offset converts an LSP position to a byte offset. Characters count
// UTF-16 code units; a position past the line end clamps to it.
func (d Document) Offset(pos Position) int {
	off := engine.Offset(d.Text, int(pos.Line), 0)
	end := len(d.Text)
	if nl := strings.IndexByte(d.Text[off:], '\n'); nl >= 0 {
		end = off + nl
	}
	units := int(pos.Character)
	for off < end && units > 0 {
		r, size := utf8.DecodeRuneInString(d.Text[off:end])
		n := utf16.RuneLen(r)
		if n > units {
			break
		}
		units -= n
		off += size
	}
	return off
}

// Cursor converts an LSP position to the engine's line and byte column.
func (d Document) Cursor(pos Position) (line, col int) {
	p := engine.PositionOf(d.Text, d.Offset(pos))
	return p.Line, p.Column
}

// Position converts a byte offset to an LSP position.
func (d Document) Position(offset int) Position {
	p := engine.PositionOf(d.Text, offset)
	units := 0
	for _, r := range d.Text[p.Offset-p.Column : p.Offset] {
		units += utf16.RuneLen(r)
	}
	return Position{Line: uint32(p.Line), Character: uint32(units)}
}

// Range converts a byte span to an LSP range.
func (d Document) Range(span token.Span) Range {
	return Range{Start: d.Position(span.Start), End: d.Position(span.End)}
}

// WordAt returns the dotted name around pos, split on dots, with
// brackets and quotes removed, and its span. "o.Total" under the cursor
// yields ["o", "Total"].
func (d Document) WordAt(pos Position) ([]string, token.Span) {
	offset := d.Offset(pos)
	start := offset
	for start > 0 && isNameChar(d.Text[start-1]) {
		start--
	}
	end := offset
	for end < len(d.Text) && isNameChar(d.Text[end]) {
		end++
	}
	span := token.Span{Start: start, End: end}
	raw := strings.Trim(d.Text[start:end], ".")
	if raw == "" {
		return nil, span
	}
	parts := strings.Split(raw, ".")
	for i, p := range parts {
		parts[i] = strings.Trim(p, `[]"`)
	}
	return parts, span
}

func isNameChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		c == '_' || c == '@' || c == '#' || c == '$' || c == '.' ||
		c == '[' || c == ']' || c == '"' || c >= 0x80
}

// URIToPath converts a file:// URI to a file system path.
func URIToPath(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return uri
	}
	return u.Path
}

// PathToURI converts a file system path to a file:// URI.
func PathToURI(path string) string {
	if strings.HasPrefix(path, "file://") {
		return path
	}
	return (&url.URL{Scheme: "file", Path: path}).String()
}
