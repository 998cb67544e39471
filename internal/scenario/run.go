package scenario

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dshills/navhistory/internal/config"
	"github.com/dshills/navhistory/internal/document"
	"github.com/dshills/navhistory/internal/logging"
	"github.com/dshills/navhistory/internal/navigation"
	"github.com/dshills/navhistory/internal/plugin"
	"github.com/dshills/navhistory/internal/session"
)

// ErrNoScratch is returned by a save step with no scratch document to save.
var ErrNoScratch = errors.New("no scratch document")

// StepError reports a step that could not be performed.
type StepError struct {
	Index int // 1-based
	Step  Step
	Err   error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	if e.Step.SourceLine > 0 {
		return fmt.Sprintf("step %d (%s, line %d): %v", e.Index, e.Step, e.Step.SourceLine, e.Err)
	}
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Step, e.Err)
}

// Unwrap returns the underlying error.
func (e *StepError) Unwrap() error {
	return e.Err
}

// MismatchError reports a result that does not match the expectation.
type MismatchError struct {
	Scenario string
	Problems []string
}

// Error implements the error interface.
func (e *MismatchError) Error() string {
	return fmt.Sprintf("scenario %q: %s", e.Scenario, strings.Join(e.Problems, "; "))
}

// Result is the outcome of a run.
type Result struct {
	Name string

	// Log has one line per step, plus any script output.
	Log []string

	// Entries and Index describe the final history, formatted as in Expect.
	Entries []string
	Index   int
}

// Config returns base with the scenario's overrides applied.
// File watching is always off: deleted files are only dropped when a
// back or forward step fails to reopen them, so results do not depend on
// when the watcher delivers its events.
func (sc *Scenario) Config(base config.Config) config.Config {
	if sc.MaxDepth > 0 {
		base.Navigation.MaxDepth = sc.MaxDepth
	}
	base.Navigation.WatchFiles = false
	return base
}

// RunOption configures a run.
type RunOption func(*runner)

// WithLogger sets the logger for the run and its scripts.
func WithLogger(l *logging.Logger) RunOption {
	return func(r *runner) {
		if l != nil {
			r.log = l
		}
	}
}

// runner holds the state of one run.
type runner struct {
	sess    *session.Session
	dir     string
	log     *logging.Logger
	result  *Result
	scripts *plugin.Runner
	scratch *document.Document
}

// Run replays the scenario against s. Relative paths resolve against dir.
//
// Back and forward steps that fail to reopen a document are recorded in
// the log and do not stop the run; any other failing step does.
func (sc *Scenario) Run(s *session.Session, dir string, opts ...RunOption) (*Result, error) {
	r := &runner{
		sess:   s,
		dir:    dir,
		log:    logging.Null(),
		result: &Result{Name: sc.Name},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.WithComponent("scenario").WithField("scenario", sc.Name)
	defer func() {
		if r.scripts != nil {
			r.scripts.Close()
		}
	}()

	for i, step := range sc.Steps {
		if err := r.do(step); err != nil {
			r.snapshot()
			return r.result, &StepError{Index: i + 1, Step: step, Err: err}
		}
		r.result.Log = append(r.result.Log, fmt.Sprintf("%d. %s -> %s", i+1, step, r.current()))
	}

	r.snapshot()
	return r.result, nil
}

// do performs a single step.
func (r *runner) do(step Step) error {
	pos := navigation.Position{Line: step.Line, Column: step.Column}

	switch step.Action {
	case ActionOpen:
		_, err := r.sess.Open(r.path(step.Target), pos)
		return err

	case ActionGoto:
		if doc, ok := r.document(step.Target); ok {
			return r.sess.Goto(doc, pos)
		}
		_, err := r.sess.Open(r.path(step.Target), pos)
		return err

	case ActionMove:
		doc, ok := r.document(step.Target)
		if !ok {
			return document.ErrDocumentNotFound
		}
		return r.sess.MoveCursor(doc, pos)

	case ActionClose:
		doc, ok := r.document(step.Target)
		if !ok {
			return document.ErrDocumentNotFound
		}
		return r.sess.CloseDocument(doc)

	case ActionBack, ActionForward:
		r.move(step)
		return nil

	case ActionScratch:
		doc, err := r.sess.OpenScratch()
		if err != nil {
			return err
		}
		r.scratch = doc
		return nil

	case ActionSave:
		if r.scratch == nil {
			return ErrNoScratch
		}
		if err := r.sess.AssignPath(r.scratch, r.path(step.Target)); err != nil {
			return err
		}
		r.scratch = nil
		return nil

	case ActionForget:
		n := r.sess.Forget(r.path(step.Target))
		r.log.Debug("forget %s removed %d", step.Target, n)
		return nil

	case ActionDelete:
		return os.Remove(r.path(step.Target))

	case ActionLua:
		if r.scripts == nil {
			scripts, err := plugin.NewRunner(r.sess,
				plugin.WithLogger(r.log),
				plugin.WithOutput(func(line string) {
					r.result.Log = append(r.result.Log, "   lua: "+line)
				}),
			)
			if err != nil {
				return err
			}
			r.scripts = scripts
		}
		return r.scripts.Eval(step.Code)
	}

	return fmt.Errorf("unknown action %q", step.Action)
}

// move performs a back or forward step.
func (r *runner) move(step Step) {
	fn := r.sess.Back
	if step.Action == ActionForward {
		fn = r.sess.Forward
	}
	for i := 0; i < step.Count; i++ {
		_, err := fn()
		if errors.Is(err, session.ErrNoHistory) {
			return
		}
		if err != nil {
			r.log.Warn("%s: %v", step.Action, err)
			r.result.Log = append(r.result.Log, fmt.Sprintf("   %s failed: %v", step.Action, err))
		}
	}
}

// path resolves a scenario path against the run directory.
func (r *runner) path(target string) string {
	p := filepath.FromSlash(target)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(r.dir, p)
}

// document finds an open document by scratch name or path.
func (r *runner) document(target string) (*document.Document, bool) {
	for _, doc := range r.sess.Documents().All() {
		if doc.IsScratch() && doc.Name() == target {
			return doc, true
		}
	}
	return r.sess.Documents().Get(r.path(target))
}

// current formats the current entry.
func (r *runner) current() string {
	loc, ok := r.sess.Current()
	if !ok {
		return "(empty)"
	}
	return r.format(loc)
}

// snapshot records the final history in the result.
func (r *runner) snapshot() {
	entries := r.sess.Entries()
	r.result.Entries = make([]string, len(entries))
	for i, loc := range entries {
		r.result.Entries[i] = r.format(loc)
	}
	r.result.Index = r.sess.Index()
}

// format renders loc with its path relative to the run directory.
func (r *runner) format(loc navigation.Location) string {
	path := loc.Path()
	if path == "" {
		path = "<unsaved>"
	} else if rel, err := filepath.Rel(r.dir, path); err == nil && !strings.HasPrefix(rel, "..") {
		path = filepath.ToSlash(rel)
	}

	s := path + ":" + loc.Position.String()
	if !loc.IsOpen() {
		s += " (closed)"
	}
	return s
}

// Check compares res against the scenario's expectation.
// A scenario without an expectation always passes.
func (sc *Scenario) Check(res *Result) error {
	if sc.Expect == nil {
		return nil
	}

	var problems []string
	if sc.Expect.Entries != nil && !slices.Equal(sc.Expect.Entries, res.Entries) {
		problems = append(problems, fmt.Sprintf("entries = %q, want %q", res.Entries, sc.Expect.Entries))
	}
	if sc.Expect.Index != nil && *sc.Expect.Index != res.Index {
		problems = append(problems, fmt.Sprintf("index = %d, want %d", res.Index, *sc.Expect.Index))
	}

	if len(problems) > 0 {
		return &MismatchError{Scenario: sc.Name, Problems: problems}
	}
	return nil
}
