package scenario

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/navhistory/internal/config"
	"github.com/dshills/navhistory/internal/document"
	"github.com/dshills/navhistory/internal/session"
)

func newTestSession(t *testing.T, sc *Scenario) *session.Session {
	t.Helper()
	s, err := session.New(sc.Config(config.Default()))
	if err != nil {
		t.Fatalf("session.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// runScenario prepares a temp directory and runs sc in it.
func runScenario(t *testing.T, sc *Scenario) (*Result, error) {
	t.Helper()
	dir := t.TempDir()
	if err := sc.Prepare(dir); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	return sc.Run(newTestSession(t, sc), dir)
}

func TestParseSteps(t *testing.T) {
	sc, err := Parse([]byte(`
name: steps
steps:
  - open: a.go
    line: 3
    column: 4
  - back
  - back: {}
  - forward: 3
  - scratch
  - save: new.go
  - lua: print("hi")
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := []Step{
		{Action: ActionOpen, Target: "a.go", Line: 3, Column: 4},
		{Action: ActionBack, Count: 1},
		{Action: ActionBack, Count: 1},
		{Action: ActionForward, Count: 3},
		{Action: ActionScratch, Count: 1},
		{Action: ActionSave, Target: "new.go"},
		{Action: ActionLua, Code: `print("hi")`},
	}
	if len(sc.Steps) != len(want) {
		t.Fatalf("len(Steps) = %d, want %d", len(sc.Steps), len(want))
	}
	for i, got := range sc.Steps {
		got.SourceLine = 0
		if got != want[i] {
			t.Errorf("Steps[%d] = %+v, want %+v", i, got, want[i])
		}
	}
	if sc.Steps[0].SourceLine != 4 {
		t.Errorf("SourceLine = %d, want 4", sc.Steps[0].SourceLine)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMsg string
	}{
		{"no steps", "name: x\n", "no steps"},
		{"unknown action", "steps:\n  - jump\n", `unknown action "jump"`},
		{"unknown field", "steps:\n  - open: a.go\n    row: 1\n", `unknown field "row"`},
		{"two actions", "steps:\n  - open: a.go\n    close: a.go\n", "both open and close"},
		{"bare open", "steps:\n  - open\n", "open requires a value"},
		{"empty path", "steps:\n  - open: \"\"\n", "open requires a path"},
		{"no action", "steps:\n  - line: 1\n", "no action"},
		{"zero count", "steps:\n  - back: 0\n", "count must be positive"},
		{"negative depth", "max_depth: -1\nsteps:\n  - back\n", "max_depth"},
		{"sequence step", "steps:\n  - [a, b]\n", "action name or a mapping"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("Parse() error = %v, want ParseError", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Parse() error = %q, want it to contain %q", err, tt.wantMsg)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "unnamed.yaml")
	if err := os.WriteFile(path, []byte("steps:\n  - back\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	sc, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if sc.Name != "unnamed" {
		t.Errorf("Name = %q, want unnamed", sc.Name)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("steps:\n  - jump\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = Load(bad)
	if err == nil || !strings.HasPrefix(err.Error(), bad+":2:") {
		t.Errorf("Load() error = %v, want file and line prefix", err)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load() of missing file error = %v, want os.ErrNotExist", err)
	}
}

func TestTestdataScenarios(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "*.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) == 0 {
		t.Fatal("no scenarios in testdata")
	}

	for _, path := range paths {
		sc, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%s) error = %v", path, err)
		}
		t.Run(sc.Name, func(t *testing.T) {
			res, err := runScenario(t, sc)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if err := sc.Check(res); err != nil {
				t.Errorf("%v\nlog:\n%s", err, strings.Join(res.Log, "\n"))
			}
		})
	}
}

func TestRunStepError(t *testing.T) {
	sc, err := Parse([]byte(`
name: missing
files: [a.go]
steps:
  - open: a.go
  - move: b.go
  - open: a.go
`))
	if err != nil {
		t.Fatal(err)
	}

	res, err := runScenario(t, sc)
	var serr *StepError
	if !errors.As(err, &serr) {
		t.Fatalf("Run() error = %v, want StepError", err)
	}
	if serr.Index != 2 || serr.Step.Action != ActionMove {
		t.Errorf("StepError = %+v, want step 2 (move)", serr)
	}
	if !errors.Is(err, document.ErrDocumentNotFound) {
		t.Errorf("Run() error = %v, want ErrDocumentNotFound", err)
	}
	if len(res.Entries) != 1 || len(res.Log) != 1 {
		t.Errorf("result = %+v, want the first step only", res)
	}
}

func TestRunSaveWithoutScratch(t *testing.T) {
	sc, err := Parse([]byte("steps:\n  - save: a.go\n"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := runScenario(t, sc); !errors.Is(err, ErrNoScratch) {
		t.Errorf("Run() error = %v, want ErrNoScratch", err)
	}
}

func TestRunSaveScratch(t *testing.T) {
	sc, err := Parse([]byte(`
files: [a.go]
steps:
  - open: a.go
    line: 2
  - close: a.go
  - scratch
  - save: a.go
expect:
  entries: ["a.go:2:0", "a.go:0:0"]
  index: 1
`))
	if err != nil {
		t.Fatal(err)
	}

	res, err := runScenario(t, sc)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if err := sc.Check(res); err != nil {
		t.Error(err)
	}
}

func TestRunLuaOutput(t *testing.T) {
	sc, err := Parse([]byte(`
files: [a.go]
steps:
  - open: a.go
  - lua: print("entries", #_nav.entries())
`))
	if err != nil {
		t.Fatal(err)
	}

	res, err := runScenario(t, sc)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	found := false
	for _, line := range res.Log {
		if strings.Contains(line, "lua: entries\t1") {
			found = true
		}
	}
	if !found {
		t.Errorf("log %q should contain script output", res.Log)
	}
}

func TestConfig(t *testing.T) {
	base := config.Default()
	base.Navigation.WatchFiles = true

	cfg := (&Scenario{MaxDepth: 7}).Config(base)
	if cfg.Navigation.MaxDepth != 7 {
		t.Errorf("MaxDepth = %d, want 7", cfg.Navigation.MaxDepth)
	}
	if cfg.Navigation.WatchFiles {
		t.Error("WatchFiles = true, want scenarios to run unwatched")
	}

	cfg = (&Scenario{}).Config(base)
	if cfg.Navigation.MaxDepth != base.Navigation.MaxDepth {
		t.Errorf("MaxDepth = %d, want base %d", cfg.Navigation.MaxDepth, base.Navigation.MaxDepth)
	}
}

func TestRunDeleteWithWatchingConfigured(t *testing.T) {
	sc, err := Parse([]byte(`
files: [a.go, b.go]
steps:
  - open: a.go
  - open: b.go
  - close: a.go
  - delete: a.go
  - lua: |
      local n = 0
      for i = 1, 200000 do n = n + i end
expect:
  entries: ["a.go:0:0 (closed)", "b.go:0:0"]
  index: 1
`))
	if err != nil {
		t.Fatal(err)
	}

	base := config.Default()
	base.Navigation.WatchFiles = true
	s, err := session.New(sc.Config(base))
	if err != nil {
		t.Fatalf("session.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if s.Watching() {
		t.Fatal("Watching() = true for a scenario session")
	}

	dir := t.TempDir()
	if err := sc.Prepare(dir); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	res, err := sc.Run(s, dir)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if err := sc.Check(res); err != nil {
		t.Error(err)
	}
}

func TestCheck(t *testing.T) {
	index := 1
	sc := &Scenario{
		Name: "check",
		Expect: &Expect{
			Entries: []string{"a.go:0:0", "b.go:0:0"},
			Index:   &index,
		},
	}

	tests := []struct {
		name    string
		res     *Result
		wantErr bool
	}{
		{"match", &Result{Entries: []string{"a.go:0:0", "b.go:0:0"}, Index: 1}, false},
		{"wrong index", &Result{Entries: []string{"a.go:0:0", "b.go:0:0"}, Index: 0}, true},
		{"wrong entries", &Result{Entries: []string{"a.go:0:0"}, Index: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sc.Check(tt.res)
			if (err != nil) != tt.wantErr {
				t.Errorf("Check() error = %v, wantErr %v", err, tt.wantErr)
			}
			var merr *MismatchError
			if err != nil && !errors.As(err, &merr) {
				t.Errorf("Check() error = %T, want *MismatchError", err)
			}
		})
	}

	if err := (&Scenario{}).Check(&Result{Index: 3}); err != nil {
		t.Errorf("Check() without expectation error = %v", err)
	}
}
