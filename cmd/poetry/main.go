// Command poetry is the terminal client of a poetry-studio server.
//
//	poetry write                 compose a new poem (draft autosaved)
//	poetry history --page 2      browse the collection
//	poetry show ID               read one poem
//	poetry edit ID --title ...   change a poem
//	poetry delete ID             remove a poem
//	poetry enhance --file f.txt  ask the models for a commentary
//	poetry backgrounds ...       gallery and background preference
//	poetry login                 store a session token
package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

var version = "dev"

func main() {
	runner := NewRunner(RunnerOpts{})

	if err := newApp(runner).Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, errReported) {
			os.Exit(1)
		}
		runner.logger.Error("poetry failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "poetry",
		Usage:   "Write, browse and edit poems on a poetry-studio server",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Sources: cli.EnvVars("POETRY_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "api",
				Usage: "Server base URL (overrides client.api_url)",
			},
		},
		Before:   r.before,
		After:    r.after,
		Commands: r.register(),
	}
}

// newLogger returns a slog.Logger backed by charmbracelet/log.
// Unknown levels fall back to info.
func newLogger(w io.Writer, level string) *slog.Logger {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	handler := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Level:           lvl,
		Prefix:          "poetry",
	})
	return slog.New(handler)
}
