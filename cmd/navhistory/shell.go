package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/dshills/navhistory/internal/document"
	"github.com/dshills/navhistory/internal/navigation"
	"github.com/dshills/navhistory/internal/plugin"
	"github.com/dshills/navhistory/internal/session"
)

const shellHelp = `commands:
  open PATH [LINE [COL]]   open a file and jump to it
  goto NAME [LINE [COL]]   jump within an open document
  move NAME LINE [COL]     move the cursor in an open document
  close NAME               close a document
  scratch                  create an unsaved document
  save PATH                give the active scratch document a path
  back, forward            move through the history
  forget PATH              drop every entry for a file
  list                     show the history
  docs                     show open documents
  lua CODE                 run Lua against _nav
  help                     show this help
  quit                     leave the shell`

// errQuit ends the shell loop.
var errQuit = errors.New("quit")

func newShellCommand(g *globals, stdin io.Reader, stdout, stderr io.Writer) *ffcli.Command {
	fs := flag.NewFlagSet("shell", flag.ContinueOnError)
	fs.SetOutput(stderr)
	historyFile := fs.String("history", defaultHistoryFile(), "readline history file")

	return &ffcli.Command{
		Name:       "shell",
		ShortUsage: "navhistory shell [-history path]",
		ShortHelp:  "Interactive editor session with a navigation history",
		FlagSet:    fs,
		Exec: func(ctx context.Context, _ []string) error {
			cfg, log, err := g.load(stderr)
			if err != nil {
				return err
			}

			sess, err := session.New(cfg, session.WithLogger(log))
			if err != nil {
				return err
			}
			defer sess.Close()

			runner, err := plugin.NewRunner(sess,
				plugin.WithLogger(log),
				plugin.WithOutput(func(line string) { fmt.Fprintln(stdout, line) }),
			)
			if err != nil {
				return err
			}
			defer runner.Close()

			if err := runner.LoadScripts(cfg.Plugins.Scripts); err != nil {
				fmt.Fprintf(stderr, "Warning: %v\n", err)
			}

			sh := &shell{sess: sess, runner: runner, out: stdout}
			return sh.loop(ctx, stdin, stderr, *historyFile)
		},
	}
}

// defaultHistoryFile returns the readline history location, or "" to
// disable persistence.
func defaultHistoryFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "navhistory", "shell_history")
}

// shell executes commands against a session.
type shell struct {
	sess   *session.Session
	runner *plugin.Runner
	out    io.Writer
}

// loop reads commands until quit, EOF or ctx is done.
func (sh *shell) loop(ctx context.Context, stdin io.Reader, stderr io.Writer, historyFile string) error {
	if historyFile != "" {
		_ = os.MkdirAll(filepath.Dir(historyFile), 0o755)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          sh.prompt(),
		HistoryFile:     historyFile,
		AutoComplete:    sh.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		Stdin:           io.NopCloser(stdin),
		Stdout:          sh.out,
		Stderr:          stderr,
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	go func() {
		<-ctx.Done()
		rl.Close()
	}()

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := sh.exec(line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintf(sh.out, "error: %v\n", err)
		}
		rl.SetPrompt(sh.prompt())
	}
}

// prompt shows the current location.
func (sh *shell) prompt() string {
	loc, ok := sh.sess.Current()
	if !ok {
		return "nav> "
	}
	return fmt.Sprintf("nav %s> ", displayLocation(loc))
}

// exec runs one command line.
func (sh *shell) exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "open":
		if len(args) < 1 {
			return errors.New("usage: open PATH [LINE [COL]]")
		}
		pos, err := parsePosition(args[1:])
		if err != nil {
			return err
		}
		_, err = sh.sess.Open(args[0], pos)
		return err

	case "goto", "move":
		if len(args) < 1 || (cmd == "move" && len(args) < 2) {
			return fmt.Errorf("usage: %s NAME LINE [COL]", cmd)
		}
		doc, err := sh.document(args[0])
		if err != nil {
			return err
		}
		pos, err := parsePosition(args[1:])
		if err != nil {
			return err
		}
		if cmd == "goto" {
			return sh.sess.Goto(doc, pos)
		}
		return sh.sess.MoveCursor(doc, pos)

	case "close":
		if len(args) != 1 {
			return errors.New("usage: close NAME")
		}
		doc, err := sh.document(args[0])
		if err != nil {
			return err
		}
		return sh.sess.CloseDocument(doc)

	case "scratch":
		doc, err := sh.sess.OpenScratch()
		if err != nil {
			return err
		}
		fmt.Fprintf(sh.out, "created %s\n", doc.Name())
		return nil

	case "save":
		if len(args) != 1 {
			return errors.New("usage: save PATH")
		}
		doc := sh.sess.Documents().Active()
		if doc == nil || !doc.IsScratch() {
			return errors.New("active document is not a scratch document")
		}
		return sh.sess.AssignPath(doc, args[0])

	case "back", "forward":
		move := sh.sess.Back
		if cmd == "forward" {
			move = sh.sess.Forward
		}
		loc, err := move()
		if err != nil {
			return err
		}
		fmt.Fprintln(sh.out, displayLocation(loc))
		return nil

	case "forget":
		if len(args) != 1 {
			return errors.New("usage: forget PATH")
		}
		fmt.Fprintf(sh.out, "removed %d entries\n", sh.sess.Forget(args[0]))
		return nil

	case "list":
		sh.list()
		return nil

	case "docs":
		active := sh.sess.Documents().Active()
		for _, doc := range sh.sess.Documents().All() {
			marker := " "
			if doc == active {
				marker = "*"
			}
			fmt.Fprintf(sh.out, "%s %s\n", marker, doc)
		}
		return nil

	case "lua":
		code := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "lua"))
		if code == "" {
			return errors.New("usage: lua CODE")
		}
		return sh.runner.Eval(code)

	case "help", "?":
		fmt.Fprintln(sh.out, shellHelp)
		return nil

	case "quit", "exit":
		return errQuit
	}

	return fmt.Errorf("unknown command %q (try help)", cmd)
}

// list prints the history with the current entry marked.
func (sh *shell) list() {
	entries := sh.sess.Entries()
	if len(entries) == 0 {
		fmt.Fprintln(sh.out, "(empty)")
		return
	}
	index := sh.sess.Index()
	for i, loc := range entries {
		marker := " "
		if i == index {
			marker = ">"
		}
		fmt.Fprintf(sh.out, "%s %3d  %s\n", marker, i, displayLocation(loc))
	}
}

// document finds an open document by scratch name or path.
func (sh *shell) document(name string) (*document.Document, error) {
	docs := sh.sess.Documents()
	for _, doc := range docs.All() {
		if doc.IsScratch() && doc.Name() == name {
			return doc, nil
		}
	}
	if doc, ok := docs.Get(name); ok {
		return doc, nil
	}
	return nil, fmt.Errorf("%s: %w", name, document.ErrDocumentNotFound)
}

// completer completes command names, and open document names after
// commands that take one.
func (sh *shell) completer() readline.AutoCompleter {
	openDocs := readline.PcItemDynamic(func(string) []string {
		var names []string
		for _, doc := range sh.sess.Documents().All() {
			if doc.IsScratch() {
				names = append(names, doc.Name())
			} else {
				names = append(names, doc.Path())
			}
		}
		return names
	})

	return readline.NewPrefixCompleter(
		readline.PcItem("open"),
		readline.PcItem("goto", openDocs),
		readline.PcItem("move", openDocs),
		readline.PcItem("close", openDocs),
		readline.PcItem("forget", openDocs),
		readline.PcItem("scratch"),
		readline.PcItem("save"),
		readline.PcItem("back"),
		readline.PcItem("forward"),
		readline.PcItem("list"),
		readline.PcItem("docs"),
		readline.PcItem("lua"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
}

// parsePosition parses optional LINE and COL arguments.
func parsePosition(args []string) (navigation.Position, error) {
	var pos navigation.Position
	if len(args) > 2 {
		return pos, errors.New("too many arguments")
	}
	for i, arg := range args {
		n, err := strconv.ParseUint(arg, 10, 32)
		if err != nil {
			return pos, fmt.Errorf("invalid number %q", arg)
		}
		if i == 0 {
			pos.Line = uint32(n)
		} else {
			pos.Column = uint32(n)
		}
	}
	return pos, nil
}

// displayLocation shortens paths under the working directory.
func displayLocation(loc navigation.Location) string {
	path := loc.Path()
	if doc, ok := loc.Doc.(*document.Document); ok && doc.IsScratch() {
		path = doc.Name()
	} else if wd, err := os.Getwd(); err == nil {
		if rel, err := filepath.Rel(wd, path); err == nil && !strings.HasPrefix(rel, "..") {
			path = rel
		}
	}

	s := path + ":" + loc.Position.String()
	if !loc.IsOpen() {
		s += " (closed)"
	}
	return s
}
