package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func newTestWatcher(t *testing.T) *Watcher {
	t.Helper()
	w, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

// waitFor returns the first event for path matching want, or fails.
func waitFor(t *testing.T, w *Watcher, path string, want Op) Event {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-w.Events():
			if ev.Path == path && ev.Op.Has(want) {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s on %s", want, path)
			return Event{}
		}
	}
}

func TestConvertOp(t *testing.T) {
	tests := []struct {
		in   fsnotify.Op
		want Op
	}{
		{fsnotify.Create, OpCreate},
		{fsnotify.Write, OpWrite},
		{fsnotify.Remove, OpRemove},
		{fsnotify.Rename, OpRename},
		{fsnotify.Chmod, 0},
		{fsnotify.Create | fsnotify.Write, OpCreate | OpWrite},
	}

	for _, tt := range tests {
		if got := convertOp(tt.in); got != tt.want {
			t.Errorf("convertOp(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestOp(t *testing.T) {
	tests := []struct {
		op       Op
		wantStr  string
		wantGone bool
	}{
		{OpCreate, "create", false},
		{OpWrite, "write", false},
		{OpRemove, "remove", true},
		{OpRename, "rename", true},
		{OpWrite | OpRemove, "remove", true},
		{0, "unknown", false},
	}

	for _, tt := range tests {
		if got := tt.op.String(); got != tt.wantStr {
			t.Errorf("Op(%d).String() = %q, want %q", tt.op, got, tt.wantStr)
		}
		if got := tt.op.Gone(); got != tt.wantGone {
			t.Errorf("Op(%d).Gone() = %v, want %v", tt.op, got, tt.wantGone)
		}
	}
}

func TestTrackUntrack(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.go")
	b := filepath.Join(dir, "b.go")
	writeFile(t, a)
	writeFile(t, b)
	w := newTestWatcher(t)

	if err := w.Track(a); err != nil {
		t.Fatalf("Track(a) error = %v", err)
	}
	if err := w.Track(a); err != nil {
		t.Fatalf("second Track(a) error = %v", err)
	}
	if err := w.Track(b); err != nil {
		t.Fatalf("Track(b) error = %v", err)
	}
	if w.Tracked() != 2 {
		t.Errorf("Tracked() = %d, want 2", w.Tracked())
	}
	if w.dirs[dir] != 2 {
		t.Errorf("directory refcount = %d, want 2", w.dirs[dir])
	}

	if err := w.Untrack(a); err != nil {
		t.Fatalf("Untrack(a) error = %v", err)
	}
	if w.IsTracking(a) || !w.IsTracking(b) {
		t.Error("only b should be tracked")
	}
	if err := w.Untrack(b); err != nil {
		t.Fatalf("Untrack(b) error = %v", err)
	}
	if _, ok := w.dirs[dir]; ok {
		t.Error("directory should no longer be watched")
	}
	if err := w.Untrack(b); err != nil {
		t.Errorf("Untrack of untracked file error = %v", err)
	}
}

func TestTrackMissingDirectory(t *testing.T) {
	w := newTestWatcher(t)
	if err := w.Track(filepath.Join(t.TempDir(), "nope", "a.go")); err == nil {
		t.Error("Track in missing directory should fail")
	}
}

func TestRemoveEvent(t *testing.T) {
	dir := t.TempDir()
	tracked := filepath.Join(dir, "tracked.go")
	other := filepath.Join(dir, "other.go")
	writeFile(t, tracked)
	writeFile(t, other)
	w := newTestWatcher(t)

	if err := w.Track(tracked); err != nil {
		t.Fatalf("Track() error = %v", err)
	}

	if err := os.Remove(other); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(tracked); err != nil {
		t.Fatal(err)
	}

	ev := waitFor(t, w, tracked, OpRemove)
	if !ev.Op.Gone() {
		t.Errorf("Op = %v, want gone", ev.Op)
	}
	if ev.Time.IsZero() {
		t.Error("event time not set")
	}
}

func TestDroppedEvents(t *testing.T) {
	dir := t.TempDir()
	tracked := filepath.Join(dir, "tracked.go")
	writeFile(t, tracked)

	w, err := New(WithBufferSize(1))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { w.Close() })
	if err := w.Track(tracked); err != nil {
		t.Fatalf("Track() error = %v", err)
	}

	w.handleFSEvent(fsnotify.Event{Name: tracked, Op: fsnotify.Write})
	w.handleFSEvent(fsnotify.Event{Name: tracked, Op: fsnotify.Remove})

	if got := w.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}
	select {
	case err := <-w.Errors():
		if err != ErrEventsDropped {
			t.Errorf("error = %v, want ErrEventsDropped", err)
		}
	case <-time.After(time.Second):
		t.Error("no ErrEventsDropped reported")
	}
}

func TestClose(t *testing.T) {
	w, err := New(WithBufferSize(4))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if cap(w.events) != 4 {
		t.Errorf("buffer size = %d, want 4", cap(w.events))
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := w.Track(t.TempDir()); err != ErrWatcherClosed {
		t.Errorf("Track after Close error = %v, want ErrWatcherClosed", err)
	}
	if _, ok := <-w.Events(); ok {
		t.Error("Events() should be closed")
	}
}
