package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/sakif/poetry-studio/internal/generate"
	"github.com/sakif/poetry-studio/internal/notify"
)

func enhanceCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "enhance",
		Usage: "Stream a commentary on a poem from the hosted models. Ctrl+C cancels",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Read the poem from a file (default: stdin)"},
			&cli.StringFlag{Name: "id", Usage: "Use a saved poem's content"},
		},
		Action: r.Enhance,
	}
}

// Enhance prints progress lines as they stream in, then the result.
// Ctrl+C aborts the request and is reported as a cancellation, not a failure.
func (r *Runner) Enhance(ctx context.Context, cmd *cli.Command) error {
	api, err := r.client(ctx)
	if err != nil {
		return err
	}

	var text string
	switch {
	case cmd.String("id") != "":
		poem, err := api.GetByID(ctx, cmd.String("id"))
		if err != nil {
			r.notifier.Notify(notify.Notification{Level: notify.Error, Title: "Error fetching poem", Message: err.Error()})
			return reported(err)
		}
		text = poem.Title + "\n\n" + poem.Content
	case cmd.String("file") != "":
		data, err := os.ReadFile(cmd.String("file"))
		if err != nil {
			return fmt.Errorf("reading %s: %w", cmd.String("file"), err)
		}
		text = string(data)
	default:
		data, err := io.ReadAll(r.input)
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		text = string(data)
	}
	if strings.TrimSpace(text) == "" {
		r.notifier.Notify(notify.Notification{Level: notify.Error, Title: "Missing fields", Message: "text is required"})
		return reported(fmt.Errorf("empty text"))
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	out, err := api.Generate(ctx, text, func(partial string) {
		r.printf("%s\n", strings.TrimRight(partial, "\n"))
	})
	if err != nil {
		if generate.IsCancelled(err) {
			r.notifier.Notify(notify.Notification{Level: notify.Cancelled, Title: "Generation cancelled"})
			return nil
		}
		r.notifier.Notify(notify.Notification{Level: notify.Error, Title: "Error enhancing poem", Message: err.Error()})
		return reported(err)
	}

	r.printf("\n%s\n", out)
	return nil
}
