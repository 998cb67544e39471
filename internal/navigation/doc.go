// Package navigation tracks back/forward navigation history for an editor.
//
// A History is a bounded list of locations with a movable current index,
// analogous to browser history:
//
//	h := navigation.New()
//	h.Push(docA, navigation.Position{Line: 10})
//	h.Push(docB, navigation.Position{Line: 3})
//
//	loc, ok := h.Previous() // docA at line 10
//
// Pushing while not at the newest entry discards the forward history.
// Once MaxDepth entries are recorded, each further push evicts the oldest.
//
// # Locations
//
// A Location is either open, holding a live Document handle, or closed,
// holding the document's path. The history never owns documents: when the
// host reports a document closed, its entries are downgraded to closed
// locations (or dropped if the document has no path). When the document is
// opened again, closed entries for its path are upgraded back.
//
// # Change notification
//
// Structural changes (push, back, forward, filtering that removes entries)
// are broadcast synchronously to subscribers. In-place position updates and
// open/closed conversions are not broadcast.
//
// # Concurrency
//
// History is not safe for concurrent use. Observers must not mutate the
// history from within a notification; doing so is undefined behaviour.
package navigation
