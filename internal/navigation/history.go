package navigation

import (
	"errors"
	"slices"

	"github.com/dshills/navhistory/internal/notify"
)

// DefaultMaxDepth is the default number of entries a history retains.
const DefaultMaxDepth = 100

// NoIndex is the current index of an empty history.
const NoIndex = -1

// ErrNoHistory reports that there is no entry to move to.
var ErrNoHistory = errors.New("no history")

// Observer is called after a structural change to the history.
type Observer func(h *History)

// History is a bounded back/forward list of locations.
type History struct {
	entries  []Location
	index    int
	maxDepth int

	changes *notify.Notifier[*History]
}

// Option configures a History.
type Option func(*History)

// WithMaxDepth sets the maximum number of entries.
// Values <= 0 leave the default in place.
func WithMaxDepth(n int) Option {
	return func(h *History) {
		if n > 0 {
			h.maxDepth = n
		}
	}
}

// New creates an empty history.
func New(opts ...Option) *History {
	h := &History{
		index:    NoIndex,
		maxDepth: DefaultMaxDepth,
		changes:  notify.New[*History](),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.entries = make([]Location, 0, h.maxDepth)
	return h
}

// MaxDepth returns the maximum number of entries.
func (h *History) MaxDepth() int {
	return h.maxDepth
}

// Len returns the number of entries.
func (h *History) Len() int {
	return len(h.entries)
}

// IsEmpty returns true if the history has no entries.
func (h *History) IsEmpty() bool {
	return len(h.entries) == 0
}

// HasCurrent returns true if there is a current entry.
func (h *History) HasCurrent() bool {
	return !h.IsEmpty()
}

// Current returns the current entry.
// It panics if the history is empty; check HasCurrent first.
func (h *History) Current() Location {
	if !h.HasCurrent() {
		panic("navigation: Current called on empty history")
	}
	return h.entries[h.index]
}

// CurrentDocument returns the document of the current entry if it is open,
// or nil if the current entry is closed or the history is empty.
func (h *History) CurrentDocument() Document {
	if !h.HasCurrent() {
		return nil
	}
	cur := h.entries[h.index]
	if cur.Kind != KindOpen {
		return nil
	}
	return cur.Doc
}

// HasNext returns true if there is a newer entry to move forward to.
func (h *History) HasNext() bool {
	return h.index+1 < len(h.entries)
}

// HasPrevious returns true if there is an older entry to move back to.
func (h *History) HasPrevious() bool {
	return h.index > 0
}

// Index returns the current index, or NoIndex if the history is empty.
func (h *History) Index() int {
	return h.index
}

// Entries returns a copy of all entries, oldest first.
func (h *History) Entries() []Location {
	result := make([]Location, len(h.entries))
	copy(result, h.entries)
	return result
}

// Subscribe registers an observer for structural changes.
func (h *History) Subscribe(fn Observer) *notify.Subscription {
	if fn == nil {
		return h.changes.Subscribe(nil)
	}
	return h.changes.Subscribe(func(h *History) { fn(h) })
}

// Push records a navigation to doc at pos.
// Entries newer than the current one are discarded. If the history is
// full, the oldest entry is evicted. The new entry becomes current.
// A nil doc is ignored.
func (h *History) Push(doc Document, pos Position) {
	if doc == nil {
		return
	}

	// Drop forward history, releasing the document references it held
	clear(h.entries[h.index+1:])
	h.entries = h.entries[:h.index+1]

	h.entries = append(h.entries, OpenLocation(doc, pos))

	if excess := len(h.entries) - h.maxDepth; excess > 0 {
		h.entries = slices.Delete(h.entries, 0, excess)
	}

	h.index = len(h.entries) - 1
	h.notify()
}

// AttemptUpdate records a cursor movement. If the current entry is open on
// the same document (by identity), its position is updated in place without
// notification. Otherwise the movement is recorded with Push.
// A nil doc is ignored.
func (h *History) AttemptUpdate(doc Document, pos Position) {
	if doc == nil {
		return
	}
	if h.HasCurrent() && h.entries[h.index].Refers(doc) {
		h.entries[h.index].Position = pos
		return
	}
	h.Push(doc, pos)
}

// Previous moves back one entry and returns it.
// It returns false without changing anything if there is no older entry.
func (h *History) Previous() (Location, bool) {
	if !h.HasPrevious() {
		return Location{}, false
	}
	h.index--
	h.notify()
	return h.entries[h.index], true
}

// Next moves forward one entry and returns it.
// It returns false without changing anything if there is no newer entry.
func (h *History) Next() (Location, bool) {
	if !h.HasNext() {
		return Location{}, false
	}
	h.index++
	h.notify()
	return h.entries[h.index], true
}

// DocumentOpened upgrades closed entries for doc's path to open entries
// referring to doc. Positions and the current index are preserved and no
// notification is sent. Documents without a path are ignored.
func (h *History) DocumentOpened(doc Document) {
	if doc == nil {
		return
	}
	path := doc.Path()
	if path == "" {
		return
	}
	for i, loc := range h.entries {
		if loc.Kind == KindClosed && loc.URI == path {
			h.entries[i] = OpenLocation(doc, loc.Position)
		}
	}
}

// DocumentClosed releases every reference the history holds to doc.
//
// If doc has a path, its entries are downgraded to closed entries in place
// without notification. If doc has no path its entries cannot be revisited,
// so they are removed with Filter.
func (h *History) DocumentClosed(doc Document) {
	if doc == nil {
		return
	}
	path := doc.Path()
	if path == "" {
		h.Filter(func(loc Location) bool {
			return !loc.Refers(doc)
		})
		return
	}
	for i, loc := range h.entries {
		if loc.Refers(doc) {
			h.entries[i] = ClosedLocation(path, loc.Position)
		}
	}
}

// Filter keeps only the entries for which keep returns true.
//
// keep is called exactly once per entry, oldest first. Each removed entry
// at or before the current index moves the current index back by one; the
// result is clamped into range. A history emptied by Filter has index
// NoIndex. Observers are notified only if entries were removed.
// It returns the number of entries removed.
func (h *History) Filter(keep func(Location) bool) int {
	if keep == nil || len(h.entries) == 0 {
		return 0
	}

	kept := make([]Location, 0, cap(h.entries))
	index := h.index
	for i, loc := range h.entries {
		if keep(loc) {
			kept = append(kept, loc)
			continue
		}
		if i <= h.index {
			index--
		}
	}

	removed := len(h.entries) - len(kept)
	if removed == 0 {
		return 0
	}

	h.entries = kept
	h.index = clampIndex(index, len(kept))
	h.notify()
	return removed
}

// TryFilter is Filter with a predicate that can fail. Every entry is
// judged before anything is removed; if keep returns an error, the history
// is left unchanged and the error is returned.
func (h *History) TryFilter(keep func(Location) (bool, error)) (int, error) {
	if keep == nil || len(h.entries) == 0 {
		return 0, nil
	}

	decisions := make([]bool, len(h.entries))
	for i, loc := range h.entries {
		ok, err := keep(loc)
		if err != nil {
			return 0, err
		}
		decisions[i] = ok
	}

	i := 0
	return h.Filter(func(Location) bool {
		ok := decisions[i]
		i++
		return ok
	}), nil
}

// Clear removes all entries.
func (h *History) Clear() {
	if len(h.entries) == 0 {
		return
	}
	h.entries = make([]Location, 0, h.maxDepth)
	h.index = NoIndex
	h.notify()
}

// notify broadcasts the history to observers.
func (h *History) notify() {
	h.changes.Notify(h)
}

// clampIndex clamps index into [0, n-1], or NoIndex when n is zero.
func clampIndex(index, n int) int {
	if n == 0 {
		return NoIndex
	}
	return max(0, min(index, n-1))
}
