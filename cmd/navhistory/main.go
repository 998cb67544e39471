// Package main is the entry point for the navhistory tool.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/dshills/navhistory/internal/config"
	"github.com/dshills/navhistory/internal/logging"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// globals holds the root flags shared by all subcommands.
type globals struct {
	configPath string
	logLevel   string
}

// load reads the configuration and builds the logger it describes.
// The -log-level flag overrides the configured level.
func (g *globals) load(stderr io.Writer) (config.Config, *logging.Logger, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}

	if g.logLevel != "" {
		if !logging.ValidLevel(g.logLevel) {
			return config.Config{}, nil, fmt.Errorf("invalid log level %q (must be debug, info, warn, or error)", g.logLevel)
		}
		cfg.Log.Level = g.logLevel
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.LogLevel()
	logCfg.Output = stderr
	return cfg, logging.New(logCfg), nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(stdin, stdout, stderr)
	if err := root.ParseAndRun(ctx, args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 2
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCommand(stdin io.Reader, stdout, stderr io.Writer) *ffcli.Command {
	var g globals

	rootFlags := flag.NewFlagSet("navhistory", flag.ContinueOnError)
	rootFlags.SetOutput(stderr)
	rootFlags.StringVar(&g.configPath, "config", config.DefaultPath(), "path to configuration file")
	rootFlags.StringVar(&g.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	versionCmd := &ffcli.Command{
		Name:       "version",
		ShortUsage: "navhistory version",
		ShortHelp:  "Print version information",
		FlagSet:    flag.NewFlagSet("version", flag.ContinueOnError),
		Exec: func(context.Context, []string) error {
			fmt.Fprintf(stdout, "navhistory %s\n", version)
			fmt.Fprintf(stdout, "  commit: %s\n", commit)
			fmt.Fprintf(stdout, "  date:   %s\n", date)
			return nil
		},
	}

	root := &ffcli.Command{
		Name:       "navhistory",
		ShortUsage: "navhistory [-config path] [-log-level level] <subcommand> [flags]",
		ShortHelp:  "Back/forward navigation history for editor sessions",
		FlagSet:    rootFlags,
		Options:    []ff.Option{ff.WithEnvVarPrefix("NAVHISTORY")},
		Subcommands: []*ffcli.Command{
			newReplayCommand(&g, stdout, stderr),
			newShellCommand(&g, stdin, stdout, stderr),
			versionCmd,
		},
	}
	// -h prints usage while parsing flags; a bare invocation prints it here
	root.Exec = func(context.Context, []string) error {
		root.FlagSet.Usage()
		return flag.ErrHelp
	}
	return root
}
