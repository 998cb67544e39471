// Package plugin runs user Lua scripts against a navigation history.
//
// Scripts run in a sandboxed state with only the base, table, string and
// math libraries. The _nav global exposes the history:
//
//	-- drop history entries for generated files
//	_nav.keep(function(loc)
//	    return not loc.path:match("_gen%.go$")
//	end)
//
// print() output goes to the runner's logger unless WithOutput is used.
package plugin

import (
	"errors"
	"fmt"
	"time"

	"github.com/dshills/navhistory/internal/logging"
	"github.com/dshills/navhistory/internal/plugin/api"
	"github.com/dshills/navhistory/internal/plugin/lua"
)

// Runner executes scripts in a single Lua state bound to a Navigator.
// A Runner is safe for concurrent use; scripts run one at a time.
type Runner struct {
	state *lua.State
	log   *logging.Logger
}

// Option configures a Runner.
type Option func(*runnerOptions)

type runnerOptions struct {
	log     *logging.Logger
	output  func(string)
	timeout time.Duration
}

// WithLogger sets the runner logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *runnerOptions) {
		if l != nil {
			o.log = l
		}
	}
}

// WithOutput routes print() to fn instead of the logger.
func WithOutput(fn func(string)) Option {
	return func(o *runnerOptions) {
		o.output = fn
	}
}

// WithTimeout bounds each script run. Zero disables the limit.
func WithTimeout(d time.Duration) Option {
	return func(o *runnerOptions) {
		o.timeout = d
	}
}

// NewRunner creates a runner whose scripts drive nav.
func NewRunner(nav api.Navigator, opts ...Option) (*Runner, error) {
	o := runnerOptions{
		log:     logging.Null(),
		timeout: lua.DefaultExecutionTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.log.WithComponent("plugin")

	output := o.output
	if output == nil {
		output = func(line string) {
			log.Info("%s", line)
		}
	}

	state, err := lua.NewState(
		lua.WithExecutionTimeout(o.timeout),
		lua.WithOutput(output),
	)
	if err != nil {
		return nil, fmt.Errorf("create lua state: %w", err)
	}
	if err := state.Register(api.NewNavModule(nav)); err != nil {
		state.Close()
		return nil, fmt.Errorf("register nav module: %w", err)
	}

	return &Runner{state: state, log: log}, nil
}

// LoadScripts runs each script file in order. A failing script does not
// stop the others; all failures are returned together.
func (r *Runner) LoadScripts(paths []string) error {
	var errs []error
	for _, path := range paths {
		if err := r.state.DoFile(path); err != nil {
			r.log.Error("script %s: %v", path, err)
			errs = append(errs, &ScriptError{Script: path, Err: err})
			continue
		}
		r.log.Debug("loaded script %s", path)
	}
	return errors.Join(errs...)
}

// Eval runs a chunk of Lua source.
func (r *Runner) Eval(code string) error {
	if err := r.state.DoString(code); err != nil {
		return &ScriptError{Script: "<eval>", Err: err}
	}
	return nil
}

// Close releases the Lua state.
func (r *Runner) Close() error {
	return r.state.Close()
}

// ScriptError reports a script that failed to run.
type ScriptError struct {
	Script string
	Err    error
}

// Error implements the error interface.
func (e *ScriptError) Error() string {
	return fmt.Sprintf("script %s: %v", e.Script, e.Err)
}

// Unwrap returns the underlying error.
func (e *ScriptError) Unwrap() error {
	return e.Err
}
