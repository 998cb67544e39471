// Package scenario replays scripted editor sessions against a navigation
// history and checks the resulting entries.
//
// A scenario is a YAML document:
//
//	name: truncate forward history
//	files: [a.go, b.go, c.go]
//	steps:
//	  - open: a.go
//	    line: 1
//	  - open: b.go
//	    line: 2
//	  - back
//	  - goto: c.go
//	    line: 3
//	expect:
//	  entries: ["a.go:1:0", "c.go:3:0"]
//	  index: 1
//
// Paths are relative to the directory the scenario runs in. Scratch
// documents are addressed by their display name ("Untitled", "Untitled-2").
package scenario

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Action is a single step kind.
type Action string

// Step actions.
const (
	// ActionOpen opens a file and jumps to it.
	ActionOpen Action = "open"
	// ActionGoto jumps to an open document, opening files as needed.
	ActionGoto Action = "goto"
	// ActionMove moves the cursor within an open document.
	ActionMove Action = "move"
	// ActionClose closes a document.
	ActionClose Action = "close"
	// ActionBack moves back Count entries.
	ActionBack Action = "back"
	// ActionForward moves forward Count entries.
	ActionForward Action = "forward"
	// ActionScratch creates a scratch document.
	ActionScratch Action = "scratch"
	// ActionSave assigns Target as the path of the newest scratch document.
	ActionSave Action = "save"
	// ActionForget removes every entry for a path.
	ActionForget Action = "forget"
	// ActionDelete deletes a file from disk.
	ActionDelete Action = "delete"
	// ActionLua runs Lua source against the history.
	ActionLua Action = "lua"
)

// argument describes what value an action key takes.
type argument int

const (
	argTarget argument = iota // required string
	argCount                  // optional positive int, default 1
	argNone                   // value ignored
	argCode                   // required string
)

var actions = map[Action]argument{
	ActionOpen:    argTarget,
	ActionGoto:    argTarget,
	ActionMove:    argTarget,
	ActionClose:   argTarget,
	ActionBack:    argCount,
	ActionForward: argCount,
	ActionScratch: argNone,
	ActionSave:    argTarget,
	ActionForget:  argTarget,
	ActionDelete:  argTarget,
	ActionLua:     argCode,
}

// Scenario is a replayable editor session.
type Scenario struct {
	Name  string   `yaml:"name"`
	Files []string `yaml:"files"`
	Steps []Step   `yaml:"steps"`

	// MaxDepth overrides the history depth when set.
	MaxDepth int `yaml:"max_depth"`

	Expect *Expect `yaml:"expect"`
}

// Expect is the history state a scenario should end in.
type Expect struct {
	// Entries are formatted as "path:line:column", with " (closed)"
	// appended for closed entries and "<unsaved>" as the path of
	// scratch documents.
	Entries []string `yaml:"entries"`

	// Index is the 0-based current index, or -1 for an empty history.
	Index *int `yaml:"index"`
}

// Step is one scripted action.
type Step struct {
	Action Action
	Target string
	Count  int
	Line   uint32
	Column uint32
	Code   string

	// Line in the scenario file, for error messages
	SourceLine int
}

// String returns a short description of the step.
func (s Step) String() string {
	switch actions[s.Action] {
	case argTarget:
		switch s.Action {
		case ActionOpen, ActionGoto, ActionMove:
			return fmt.Sprintf("%s %s:%d:%d", s.Action, s.Target, s.Line, s.Column)
		}
		return fmt.Sprintf("%s %s", s.Action, s.Target)
	case argCount:
		if s.Count > 1 {
			return fmt.Sprintf("%s %d", s.Action, s.Count)
		}
	}
	return string(s.Action)
}

// UnmarshalYAML decodes either a bare action ("- back") or a mapping with
// exactly one action key plus optional line and column.
func (s *Step) UnmarshalYAML(node *yaml.Node) error {
	s.SourceLine = node.Line

	switch node.Kind {
	case yaml.ScalarNode:
		action := Action(node.Value)
		arg, ok := actions[action]
		if !ok {
			return stepError(node, "unknown action %q", node.Value)
		}
		if arg == argTarget || arg == argCode {
			return stepError(node, "%s requires a value", action)
		}
		s.Action = action
		s.Count = 1
		return nil

	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			if err := s.decodeField(key, value); err != nil {
				return err
			}
		}
		if s.Action == "" {
			return stepError(node, "step has no action")
		}
		return nil

	default:
		return stepError(node, "step must be an action name or a mapping")
	}
}

// decodeField decodes one key of a step mapping.
func (s *Step) decodeField(key, value *yaml.Node) error {
	switch key.Value {
	case "line":
		return value.Decode(&s.Line)
	case "column":
		return value.Decode(&s.Column)
	}

	action := Action(key.Value)
	arg, ok := actions[action]
	if !ok {
		return stepError(key, "unknown field %q", key.Value)
	}
	if s.Action != "" {
		return stepError(key, "step has both %s and %s", s.Action, action)
	}
	s.Action = action

	switch arg {
	case argTarget:
		if err := value.Decode(&s.Target); err != nil {
			return err
		}
		if s.Target == "" {
			return stepError(value, "%s requires a path", action)
		}
	case argCode:
		if err := value.Decode(&s.Code); err != nil {
			return err
		}
		if strings.TrimSpace(s.Code) == "" {
			return stepError(value, "%s requires code", action)
		}
	case argCount:
		s.Count = 1
		if value.Kind == yaml.ScalarNode && value.ShortTag() == "!!int" {
			if err := value.Decode(&s.Count); err != nil {
				return err
			}
			if s.Count < 1 {
				return stepError(value, "%s count must be positive", action)
			}
		}
	}
	return nil
}

// ParseError reports an invalid scenario file.
type ParseError struct {
	File    string
	Line    int
	Message string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	switch {
	case e.File != "" && e.Line > 0:
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
	case e.Line > 0:
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	case e.File != "":
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

func stepError(node *yaml.Node, format string, args ...any) error {
	return &ParseError{Line: node.Line, Message: fmt.Sprintf(format, args...)}
}

// Parse decodes a scenario from YAML.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			return nil, perr
		}
		return nil, &ParseError{Message: err.Error()}
	}
	if len(sc.Steps) == 0 {
		return nil, &ParseError{Message: "scenario has no steps"}
	}
	if sc.MaxDepth < 0 {
		return nil, &ParseError{Message: "max_depth cannot be negative"}
	}
	return &sc, nil
}

// Load reads and parses a scenario file. The scenario is named after the
// file if it has no name.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sc, err := Parse(data)
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			perr.File = path
		}
		return nil, err
	}
	if sc.Name == "" {
		sc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return sc, nil
}

// Prepare creates the scenario's files, empty, under dir.
func (sc *Scenario) Prepare(dir string) error {
	for _, name := range sc.Files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			return err
		}
	}
	return nil
}
