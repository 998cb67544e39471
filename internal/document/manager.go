package document

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/dshills/navhistory/internal/notify"
)

// EventKind identifies a document lifecycle event.
type EventKind int

const (
	// EventOpened is sent after a document is opened.
	EventOpened EventKind = iota

	// EventClosed is sent after a document is closed.
	EventClosed

	// EventPathAssigned is sent after a document is given a new path,
	// as when a scratch buffer is first saved.
	EventPathAssigned
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventOpened:
		return "opened"
	case EventClosed:
		return "closed"
	case EventPathAssigned:
		return "path-assigned"
	default:
		return "unknown"
	}
}

// Event describes a change to the set of open documents.
type Event struct {
	Kind EventKind
	Doc  *Document

	// OldPath is the previous path for EventPathAssigned.
	OldPath string
}

// Manager manages all open documents of a window.
//
// Events are delivered synchronously after the manager's lock is released,
// on the goroutine that caused them.
type Manager struct {
	mu        sync.RWMutex
	documents map[string]*Document // key -> document
	active    *Document
	order     []string // tracks open order
	counter   int      // for generating scratch buffer names

	events *notify.Notifier[Event]
}

// NewManager creates a new document manager.
func NewManager() *Manager {
	return &Manager{
		documents: make(map[string]*Document),
		order:     make([]string, 0),
		events:    notify.New[Event](),
	}
}

// Subscribe registers an observer for document events.
func (m *Manager) Subscribe(fn func(Event)) *notify.Subscription {
	return m.events.Subscribe(fn)
}

// Open opens the file at path.
// Returns the existing document if the file is already open.
func (m *Manager) Open(path string) (*Document, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if doc, exists := m.documents[absPath]; exists {
		m.active = doc
		m.mu.Unlock()
		return doc, nil
	}

	info, err := os.Stat(absPath)
	if err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("open %s: %w", absPath, err)
	}
	if info.IsDir() {
		m.mu.Unlock()
		return nil, fmt.Errorf("open %s: %w", absPath, ErrIsDirectory)
	}

	doc := newDocument(absPath)
	m.documents[absPath] = doc
	m.order = append(m.order, absPath)
	m.active = doc
	m.mu.Unlock()

	m.events.Notify(Event{Kind: EventOpened, Doc: doc})
	return doc, nil
}

// CreateScratch creates a new scratch document.
func (m *Manager) CreateScratch() *Document {
	m.mu.Lock()
	m.counter++
	name := "Untitled"
	if m.counter > 1 {
		name = "Untitled-" + strconv.Itoa(m.counter)
	}
	doc := newScratchDocument(name)

	key := doc.key()
	m.documents[key] = doc
	m.order = append(m.order, key)
	m.active = doc
	m.mu.Unlock()

	m.events.Notify(Event{Kind: EventOpened, Doc: doc})
	return doc
}

// AssignPath gives doc a new path, as when a scratch buffer is saved.
func (m *Manager) AssignPath(doc *Document, path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	m.mu.Lock()
	oldKey := doc.key()
	if m.documents[oldKey] != doc {
		m.mu.Unlock()
		return ErrDocumentNotFound
	}
	if other, exists := m.documents[absPath]; exists && other != doc {
		m.mu.Unlock()
		return fmt.Errorf("assign %s: %w", absPath, ErrDocumentAlreadyOpen)
	}

	oldPath := doc.Path()
	doc.setPath(absPath)

	delete(m.documents, oldKey)
	m.documents[absPath] = doc
	for i, k := range m.order {
		if k == oldKey {
			m.order[i] = absPath
			break
		}
	}
	m.mu.Unlock()

	m.events.Notify(Event{Kind: EventPathAssigned, Doc: doc, OldPath: oldPath})
	return nil
}

// Close closes a document.
func (m *Manager) Close(doc *Document) error {
	if doc == nil {
		return ErrDocumentNotFound
	}

	m.mu.Lock()
	key := doc.key()
	if m.documents[key] != doc {
		m.mu.Unlock()
		return ErrDocumentNotFound
	}

	delete(m.documents, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}

	if m.active == doc {
		if len(m.order) > 0 {
			m.active = m.documents[m.order[len(m.order)-1]]
		} else {
			m.active = nil
		}
	}
	m.mu.Unlock()

	m.events.Notify(Event{Kind: EventClosed, Doc: doc})
	return nil
}

// ClosePath closes the document open at path.
func (m *Manager) ClosePath(path string) error {
	doc, ok := m.Get(path)
	if !ok {
		return ErrDocumentNotFound
	}
	return m.Close(doc)
}

// Get returns the document open at path.
func (m *Manager) Get(path string) (*Document, bool) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, exists := m.documents[absPath]
	return doc, exists
}

// Contains returns true if doc is open in the manager.
func (m *Manager) Contains(doc *Document) bool {
	if doc == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.documents[doc.key()] == doc
}

// Active returns the currently active document.
func (m *Manager) Active() *Document {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// SetActive sets the active document.
func (m *Manager) SetActive(doc *Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if doc == nil || m.documents[doc.key()] != doc {
		return ErrDocumentNotFound
	}
	m.active = doc
	return nil
}

// All returns all open documents in open order.
func (m *Manager) All() []*Document {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]*Document, 0, len(m.documents))
	for _, key := range m.order {
		if doc, exists := m.documents[key]; exists {
			docs = append(docs, doc)
		}
	}
	return docs
}

// Count returns the number of open documents.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.documents)
}
