// Package document tracks the documents open in an editor window.
package document

import (
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Document is an open file or scratch buffer.
//
// A Document is a handle: two documents are the same only if they are the
// same pointer, even when they share a path.
type Document struct {
	// ID uniquely identifies the document for its lifetime.
	ID uuid.UUID

	mu   sync.RWMutex
	path string // absolute; empty for scratch buffers
	name string
}

// newDocument creates a document for an absolute path.
func newDocument(path string) *Document {
	return &Document{
		ID:   uuid.New(),
		path: path,
		name: filepath.Base(path),
	}
}

// newScratchDocument creates an unsaved document with the given display name.
func newScratchDocument(name string) *Document {
	return &Document{
		ID:   uuid.New(),
		name: name,
	}
}

// Path returns the absolute file path, or "" for a scratch buffer.
func (d *Document) Path() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.path
}

// Name returns the display name (file name or "Untitled").
func (d *Document) Name() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.name
}

// IsScratch returns true if this is a scratch buffer (no file path).
func (d *Document) IsScratch() bool {
	return d.Path() == ""
}

// String returns the path, or the name for scratch buffers.
func (d *Document) String() string {
	if p := d.Path(); p != "" {
		return p
	}
	return d.Name()
}

// setPath assigns a new path and derives the display name from it.
func (d *Document) setPath(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.path = path
	d.name = filepath.Base(path)
}

// key returns the manager map key for the document.
func (d *Document) key() string {
	if p := d.Path(); p != "" {
		return p
	}
	return scratchKey(d.ID)
}

// scratchKey generates a key for scratch buffers.
func scratchKey(id uuid.UUID) string {
	return "::scratch::" + id.String()
}
