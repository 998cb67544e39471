package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/dshills/navhistory/internal/config"
	"github.com/dshills/navhistory/internal/logging"
	"github.com/dshills/navhistory/internal/scenario"
	"github.com/dshills/navhistory/internal/session"
)

// errScenariosFailed is returned when at least one scenario fails.
var errScenariosFailed = errors.New("scenarios failed")

func newReplayCommand(g *globals, stdout, stderr io.Writer) *ffcli.Command {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbose := fs.Bool("v", false, "print every step")

	return &ffcli.Command{
		Name:       "replay",
		ShortUsage: "navhistory replay [-v] <scenario.yaml>...",
		ShortHelp:  "Replay scenario files and check their expected history",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return errors.New("replay requires at least one scenario file")
			}
			cfg, log, err := g.load(stderr)
			if err != nil {
				return err
			}

			failed := 0
			for _, path := range args {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if err := replayFile(path, cfg, log, *verbose, stdout); err != nil {
					fmt.Fprintf(stdout, "FAIL %s\n     %v\n", path, err)
					failed++
				}
			}

			fmt.Fprintf(stdout, "%d passed, %d failed\n", len(args)-failed, failed)
			if failed > 0 {
				return fmt.Errorf("%d of %d %w", failed, len(args), errScenariosFailed)
			}
			return nil
		},
	}
}

// replayFile runs one scenario in a fresh temporary directory.
func replayFile(path string, cfg config.Config, log *logging.Logger, verbose bool, out io.Writer) error {
	sc, err := scenario.Load(path)
	if err != nil {
		return err
	}

	dir, err := os.MkdirTemp("", "navhistory-replay-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	if err := sc.Prepare(dir); err != nil {
		return fmt.Errorf("prepare files: %w", err)
	}

	sess, err := session.New(sc.Config(cfg), session.WithLogger(log))
	if err != nil {
		return err
	}
	defer sess.Close()

	res, runErr := sc.Run(sess, dir, scenario.WithLogger(log))
	if verbose || runErr != nil {
		fmt.Fprintf(out, "---- %s\n", sc.Name)
		for _, line := range res.Log {
			fmt.Fprintf(out, "     %s\n", line)
		}
	}
	if runErr != nil {
		return runErr
	}
	if err := sc.Check(res); err != nil {
		return err
	}

	fmt.Fprintf(out, "ok   %s (%d steps, %d entries)\n", sc.Name, len(sc.Steps), len(res.Entries))
	return nil
}
