// Package session ties the navigation history of one editor window to the
// documents open in it.
//
// A Session owns a document.Manager and a navigation.History. Document
// open and close events from the manager keep the history's references
// valid, and an optional file watcher drops history entries for files that
// are deleted on disk. Sessions are constructed and passed explicitly; there
// is no process-wide instance.
//
// All methods are safe for concurrent use. History observers registered
// with OnChange run with the session locked and must not call back into
// the session.
package session

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/dshills/navhistory/internal/config"
	"github.com/dshills/navhistory/internal/document"
	"github.com/dshills/navhistory/internal/logging"
	"github.com/dshills/navhistory/internal/navigation"
	"github.com/dshills/navhistory/internal/notify"
	"github.com/dshills/navhistory/internal/watcher"
)

// Session is the navigation state of one editor window.
type Session struct {
	mu sync.Mutex

	cfg     config.Config
	log     *logging.Logger
	docs    *document.Manager
	history *navigation.History
	watcher *watcher.Watcher

	docSub     *notify.Subscription
	historySub *notify.Subscription

	closed bool
	wg     sync.WaitGroup
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates a session from cfg.
//
// If cfg enables file watching but the watcher cannot be started, the
// session runs without it and logs a warning.
func New(cfg config.Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		cfg:  cfg,
		log:  logging.Null(),
		docs: document.NewManager(),
		history: navigation.New(
			navigation.WithMaxDepth(cfg.Navigation.MaxDepth),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithComponent("session")

	s.docSub = s.docs.Subscribe(s.handleDocumentEvent)

	if cfg.Navigation.WatchFiles {
		w, err := watcher.New()
		if err != nil {
			s.log.Warn("file watching disabled: %v", err)
		} else {
			s.watcher = w
			s.historySub = s.history.Subscribe(func(*navigation.History) {
				s.pruneTracking()
			})
			s.wg.Add(1)
			go s.watchLoop(w)
		}
	}

	return s, nil
}

// Close stops the file watcher and detaches the history from the document
// manager. Open documents are left open.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.docSub.Unsubscribe()
	s.historySub.Unsubscribe()
	w := s.watcher
	s.mu.Unlock()

	var err error
	if w != nil {
		err = w.Close()
		s.wg.Wait()
	}
	return err
}

// Config returns the session configuration.
func (s *Session) Config() config.Config {
	return s.cfg
}

// Documents returns the session's document manager.
// Use the session's methods to open and close documents so the history
// stays consistent; the manager is exposed for lookups.
func (s *Session) Documents() *document.Manager {
	return s.docs
}

// Watching returns true if on-disk deletions are being tracked.
func (s *Session) Watching() bool {
	return s.watcher != nil
}

// OnChange registers fn to be called after each structural history change.
func (s *Session) OnChange(fn func(h *navigation.History)) *notify.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Subscribe(fn)
}

// Open opens the file at path and records a jump to pos.
func (s *Session) Open(path string, pos navigation.Position) (*document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, NewOperationError("open", path, ErrClosed)
	}

	doc, err := s.docs.Open(path)
	if err != nil {
		return nil, NewOperationError("open", path, err)
	}
	s.history.Push(doc, pos)
	s.log.Debug("open %s at %s", doc, pos)
	return doc, nil
}

// OpenScratch creates a scratch document and records a jump to it.
func (s *Session) OpenScratch() (*document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, NewOperationError("scratch", "", ErrClosed)
	}

	doc := s.docs.CreateScratch()
	s.history.Push(doc, navigation.Position{})
	s.log.Debug("scratch %s", doc.Name())
	return doc, nil
}

// Goto records a jump to pos in an open document.
func (s *Session) Goto(doc *document.Document, pos navigation.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen("goto", doc); err != nil {
		return err
	}
	s.history.Push(doc, pos)
	_ = s.docs.SetActive(doc)
	s.log.Debug("goto %s at %s", doc, pos)
	return nil
}

// MoveCursor records a cursor movement within an open document. Moves
// within the current document update its position; a move in another
// document is recorded as a jump.
func (s *Session) MoveCursor(doc *document.Document, pos navigation.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen("move", doc); err != nil {
		return err
	}
	s.history.AttemptUpdate(doc, pos)
	return nil
}

// CloseDocument closes doc. History entries for it become closed entries,
// or are removed if doc was never saved.
func (s *Session) CloseDocument(doc *document.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return NewOperationError("close", docName(doc), ErrClosed)
	}
	if err := s.docs.Close(doc); err != nil {
		return NewOperationError("close", docName(doc), err)
	}
	return nil
}

// ClosePath closes the document open at path.
func (s *Session) ClosePath(path string) error {
	doc, ok := s.docs.Get(path)
	if !ok {
		return NewOperationError("close", path, document.ErrDocumentNotFound)
	}
	return s.CloseDocument(doc)
}

// AssignPath gives doc a path, as when a scratch buffer is first saved.
// Closed entries already recorded for the path are reattached to doc.
func (s *Session) AssignPath(doc *document.Document, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen("save", doc); err != nil {
		return err
	}
	if err := s.docs.AssignPath(doc, path); err != nil {
		return NewOperationError("save", path, err)
	}
	return nil
}

// Back moves to the previous history entry and returns it.
// A closed entry is reopened first, so the returned location is open.
func (s *Session) Back() (navigation.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return navigation.Location{}, NewOperationError("back", "", ErrClosed)
	}
	loc, ok := s.history.Previous()
	if !ok {
		return navigation.Location{}, ErrNoHistory
	}
	return s.materialize("back", loc)
}

// Forward moves to the next history entry and returns it.
// A closed entry is reopened first, so the returned location is open.
func (s *Session) Forward() (navigation.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return navigation.Location{}, NewOperationError("forward", "", ErrClosed)
	}
	loc, ok := s.history.Next()
	if !ok {
		return navigation.Location{}, ErrNoHistory
	}
	return s.materialize("forward", loc)
}

// Current returns the current history entry.
func (s *Session) Current() (navigation.Location, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.history.HasCurrent() {
		return navigation.Location{}, false
	}
	return s.history.Current(), true
}

// HasNext returns true if Forward can move.
func (s *Session) HasNext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.HasNext()
}

// HasPrevious returns true if Back can move.
func (s *Session) HasPrevious() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.HasPrevious()
}

// Entries returns a copy of the history entries, oldest first.
func (s *Session) Entries() []navigation.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Entries()
}

// Index returns the current history index, or navigation.NoIndex.
func (s *Session) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Index()
}

// Forget removes every history entry for path, open or closed.
// It returns the number of entries removed.
func (s *Session) Forget(path string) int {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := s.history.Filter(func(loc navigation.Location) bool {
		return loc.Path() != absPath
	})
	if removed > 0 {
		s.log.Info("forgot %d entries for %s", removed, absPath)
	}
	return removed
}

// Keep removes every history entry for which keep returns false.
// keep runs with the session locked. It returns the number removed.
func (s *Session) Keep(keep func(navigation.Location) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Filter(keep)
}

// KeepErr is Keep with a predicate that can fail. Every entry is judged
// before any is removed, and an error leaves the history unchanged.
// keep runs with the session locked.
func (s *Session) KeepErr(keep func(navigation.Location) (bool, error)) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.TryFilter(keep)
}

// materialize reopens loc's document if it is closed and makes it active.
// The caller must hold s.mu.
func (s *Session) materialize(op string, loc navigation.Location) (navigation.Location, error) {
	if loc.IsOpen() {
		if doc, ok := loc.Doc.(*document.Document); ok {
			_ = s.docs.SetActive(doc)
		}
		return loc, nil
	}

	// Opening upgrades every closed entry for the path, including the current one
	if _, err := s.docs.Open(loc.URI); err != nil {
		s.log.Warn("%s: cannot reopen %s: %v", op, loc.URI, err)
		s.dropClosed(loc.URI)
		return navigation.Location{}, NewOperationError(op, loc.URI, err)
	}
	return s.history.Current(), nil
}

// checkOpen verifies doc is open in this session. The caller must hold s.mu.
func (s *Session) checkOpen(op string, doc *document.Document) error {
	if s.closed {
		return NewOperationError(op, docName(doc), ErrClosed)
	}
	if !s.docs.Contains(doc) {
		return NewOperationError(op, docName(doc), document.ErrDocumentNotFound)
	}
	return nil
}

// handleDocumentEvent keeps history references in step with the manager.
// It runs synchronously inside manager calls made with s.mu held.
func (s *Session) handleDocumentEvent(ev document.Event) {
	switch ev.Kind {
	case document.EventOpened, document.EventPathAssigned:
		s.history.DocumentOpened(ev.Doc)
		s.track(ev.Doc.Path())
	case document.EventClosed:
		s.history.DocumentClosed(ev.Doc)
		s.log.Debug("closed %s", ev.Doc)
		s.pruneTracking()
	}
}

// dropClosed removes closed entries for path. The caller must hold s.mu.
func (s *Session) dropClosed(path string) int {
	return s.history.Filter(func(loc navigation.Location) bool {
		return loc.IsOpen() || loc.URI != path
	})
}

// track starts watching path for deletion.
func (s *Session) track(path string) {
	if s.watcher == nil || path == "" {
		return
	}
	if err := s.watcher.Track(path); err != nil {
		s.log.Warn("cannot watch %s: %v", path, err)
	}
}

// pruneTracking stops watching files that are neither open nor referenced
// by the history. The caller must hold s.mu.
func (s *Session) pruneTracking() {
	if s.watcher == nil {
		return
	}

	wanted := make(map[string]bool)
	for _, loc := range s.history.Entries() {
		if p := loc.Path(); p != "" {
			wanted[p] = true
		}
	}
	for _, doc := range s.docs.All() {
		if p := doc.Path(); p != "" {
			wanted[p] = true
		}
	}

	for _, p := range s.watcher.Paths() {
		if !wanted[p] {
			_ = s.watcher.Untrack(p)
		}
	}
}

// watchLoop drops closed entries for files deleted on disk.
func (s *Session) watchLoop(w *watcher.Watcher) {
	defer s.wg.Done()

	for {
		select {
		case ev, ok := <-w.Events():
			if !ok {
				return
			}
			if ev.Op.Gone() {
				s.fileGone(ev.Path)
			}
		case err, ok := <-w.Errors():
			if !ok {
				return
			}
			if errors.Is(err, watcher.ErrEventsDropped) {
				s.log.Warn("watch: %d events dropped, rescanning tracked files", w.Dropped())
				s.rescan(w)
				continue
			}
			s.log.Warn("watch: %v", err)
		}
	}
}

// rescan checks every tracked file, catching deletions whose events
// were dropped.
func (s *Session) rescan(w *watcher.Watcher) {
	for _, path := range w.Paths() {
		s.fileGone(path)
	}
}

// fileGone handles a tracked file disappearing from disk.
func (s *Session) fileGone(path string) {
	// Editors that save by renaming may have already put a new file in place
	if _, err := os.Stat(path); err == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if removed := s.dropClosed(path); removed > 0 {
		s.log.Info("%s deleted, dropped %d entries", path, removed)
	}
	s.pruneTracking()
}

// docName returns a display name for doc, tolerating nil.
func docName(doc *document.Document) string {
	if doc == nil {
		return ""
	}
	return doc.String()
}
