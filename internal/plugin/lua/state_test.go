package lua

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	glua "github.com/yuin/gopher-lua"
)

func newTestState(t *testing.T, opts ...StateOption) *State {
	t.Helper()
	state, err := NewState(opts...)
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	t.Cleanup(func() { state.Close() })
	return state
}

func TestStateDoString(t *testing.T) {
	state := newTestState(t)

	if err := state.DoString(`x = 1 + 1`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if v := state.GetGlobal("x"); v != glua.LNumber(2) {
		t.Errorf("x = %v, want 2", v)
	}

	if err := state.DoString(`this is not lua`); err == nil {
		t.Error("DoString() with syntax error should fail")
	}
}

func TestStateSafeLibraries(t *testing.T) {
	state := newTestState(t)

	tests := []struct {
		name string
		want glua.LValueType
	}{
		{"string", glua.LTTable},
		{"table", glua.LTTable},
		{"math", glua.LTTable},
		{"pairs", glua.LTFunction},
		{"io", glua.LTNil},
		{"os", glua.LTNil},
		{"debug", glua.LTNil},
		{"package", glua.LTNil},
		{"dofile", glua.LTNil},
		{"loadfile", glua.LTNil},
		{"load", glua.LTNil},
		{"require", glua.LTNil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := state.GetGlobal(tt.name).Type(); got != tt.want {
				t.Errorf("type(%s) = %s, want %s", tt.name, got, tt.want)
			}
		})
	}
}

func TestStatePrint(t *testing.T) {
	var lines []string
	state := newTestState(t, WithOutput(func(s string) {
		lines = append(lines, s)
	}))

	if err := state.DoString(`print("a", 1, true) print()`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if len(lines) != 2 || lines[0] != "a\t1\ttrue" || lines[1] != "" {
		t.Errorf("output = %q", lines)
	}
}

func TestStateDoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "init.lua")
	if err := os.WriteFile(path, []byte(`loaded = "yes"`), 0o644); err != nil {
		t.Fatal(err)
	}
	state := newTestState(t)

	if err := state.DoFile(path); err != nil {
		t.Fatalf("DoFile() error = %v", err)
	}
	if v := state.GetGlobal("loaded"); v.String() != "yes" {
		t.Errorf("loaded = %v, want yes", v)
	}
	if err := state.DoFile(path + ".missing"); err == nil {
		t.Error("DoFile() of missing file should fail")
	}
}

func TestStateTimeout(t *testing.T) {
	state := newTestState(t, WithExecutionTimeout(50*time.Millisecond))

	err := state.DoString(`while true do end`)
	if !errors.Is(err, ErrExecutionTimeout) {
		t.Errorf("DoString() error = %v, want ErrExecutionTimeout", err)
	}

	// The state is still usable afterwards
	if err := state.DoString(`y = 1`); err != nil {
		t.Errorf("DoString() after timeout error = %v", err)
	}
}

func TestStateClose(t *testing.T) {
	state, err := NewState()
	if err != nil {
		t.Fatal(err)
	}
	if err := state.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := state.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := state.DoString(`x = 1`); !errors.Is(err, ErrStateClosed) {
		t.Errorf("DoString() after Close error = %v, want ErrStateClosed", err)
	}
	if v := state.GetGlobal("x"); v != glua.LNil {
		t.Errorf("GetGlobal() after Close = %v, want nil", v)
	}
}
