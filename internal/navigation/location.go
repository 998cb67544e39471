package navigation

import (
	"fmt"
)

// Document is an open editor document as seen by the history.
//
// Entries match documents by identity (==), so implementations should be
// pointer types. Path returns the document's stable path, or "" if the
// document has never been saved.
type Document interface {
	Path() string
}

// Position is a line and column within a document.
// Both Line and Column are 0-indexed.
type Position struct {
	Line   uint32
	Column uint32
}

// String returns a human-readable representation of the position.
func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Compare returns -1 if p < other, 0 if p == other, 1 if p > other.
func (p Position) Compare(other Position) int {
	switch {
	case p.Line < other.Line:
		return -1
	case p.Line > other.Line:
		return 1
	case p.Column < other.Column:
		return -1
	case p.Column > other.Column:
		return 1
	}
	return 0
}

// Kind distinguishes the two location variants.
type Kind int

const (
	// KindOpen refers to an open document by handle.
	KindOpen Kind = iota

	// KindClosed refers to a document by path.
	KindClosed
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindOpen:
		return "open"
	case KindClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Location is a navigable target in the history.
//
// For KindOpen, Doc is set and URI is empty.
// For KindClosed, URI is set and Doc is nil.
type Location struct {
	Kind     Kind
	Doc      Document
	URI      string
	Position Position
}

// OpenLocation creates a location referring to an open document.
func OpenLocation(doc Document, pos Position) Location {
	return Location{Kind: KindOpen, Doc: doc, Position: pos}
}

// ClosedLocation creates a location referring to a document by path.
func ClosedLocation(uri string, pos Position) Location {
	return Location{Kind: KindClosed, URI: uri, Position: pos}
}

// IsOpen returns true if the location holds a live document handle.
func (l Location) IsOpen() bool {
	return l.Kind == KindOpen
}

// Refers returns true if the location is open on exactly doc.
func (l Location) Refers(doc Document) bool {
	return l.Kind == KindOpen && l.Doc == doc
}

// Path returns the location's path: the document path when open,
// the URI when closed. Open scratch documents have no path.
func (l Location) Path() string {
	if l.Kind == KindOpen {
		if l.Doc == nil {
			return ""
		}
		return l.Doc.Path()
	}
	return l.URI
}

// String returns a human-readable representation of the location.
func (l Location) String() string {
	path := l.Path()
	if path == "" {
		path = "<unsaved>"
	}
	if l.Kind == KindClosed {
		return fmt.Sprintf("%s:%s (closed)", path, l.Position)
	}
	return fmt.Sprintf("%s:%s", path, l.Position)
}
