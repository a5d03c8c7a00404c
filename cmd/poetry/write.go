package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/urfave/cli/v3"

	"github.com/sakif/poetry-studio/internal/compose"
	"github.com/sakif/poetry-studio/internal/draft"
	"github.com/sakif/poetry-studio/internal/model"
	"github.com/sakif/poetry-studio/internal/notify"
)

func writeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "write",
		Usage: "Compose a new poem. The draft is autosaved and restored for 24 hours",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Poem title"},
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Read the content from a file instead of the terminal"},
			&cli.StringFlag{Name: "color", Usage: "Card color token, e.g. bg-rose-800"},
			&cli.StringFlag{Name: "image", Usage: "Background image reference for the card"},
		},
		Action: r.Write,
	}
}

// Write runs an editor session on stdin.
//
// Lines are read until EOF (Ctrl+D) and the poem is submitted. Ctrl+C ends
// the session without submitting; the autosaved draft comes back next time.
func (r *Runner) Write(ctx context.Context, cmd *cli.Command) error {
	api, err := r.client(ctx)
	if err != nil {
		return err
	}
	state, err := r.stateStore(ctx)
	if err != nil {
		return err
	}

	var opts []draft.Option
	if d := r.config.Draft.AutosaveInterval; d > 0 {
		opts = append(opts, draft.WithInterval(d))
	}
	drafts := draft.NewStore(state, r.logger, opts...)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	s := compose.Open(ctx, api, drafts, r.notifier, r.logger)
	defer s.Close()

	if s.Restored() {
		f := s.Fields()
		r.notifier.Notify(notify.Notification{
			Level:   notify.Info,
			Title:   "Draft restored",
			Message: fmt.Sprintf("%q, %d characters", f.Title, len(f.Content)),
		})
	}

	if v := cmd.String("title"); v != "" {
		s.SetTitle(v)
	}
	if v := cmd.String("color"); v != "" {
		s.SetColor(v)
	}
	if v := cmd.String("image"); v != "" {
		s.SetImage(v)
	}

	if path := cmd.String("file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		s.SetContent(string(data))
	} else if err := r.typeContent(ctx, s); err != nil {
		return err
	}

	if ctx.Err() != nil {
		r.notifier.Notify(notify.Notification{Level: notify.Cancelled, Title: "Draft kept"})
		return nil
	}

	poem, err := s.Submit(ctx)
	if err != nil {
		return reported(err)
	}
	r.printf("%s\n", poem.ID)
	return nil
}

// typeContent prompts for a missing title, then appends typed lines to the
// content until EOF. The buffer is updated after every line so autosave sees it.
func (r *Runner) typeContent(ctx context.Context, s *compose.Session) error {
	lines := make(chan string)
	done := make(chan error, 1)
	go func() {
		defer close(lines)
		for {
			line, err := r.readLine()
			if err != nil {
				if errors.Is(err, io.EOF) {
					err = nil
				}
				done <- err
				return
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()

	next := func() (string, bool) {
		select {
		case line, ok := <-lines:
			return line, ok
		case <-ctx.Done():
			return "", false
		}
	}

	if s.Fields().Title == "" {
		r.printf("Title: ")
		title, ok := next()
		if !ok {
			return readErr(done)
		}
		s.SetTitle(title)
	}

	content := s.Fields().Content
	if content != "" {
		r.println(content)
	}
	r.println("Write your poem. Ctrl+D saves it, Ctrl+C keeps it as a draft.")

	for {
		line, ok := next()
		if !ok {
			break
		}
		if content == "" {
			content = line
		} else {
			content += "\n" + line
		}
		s.SetContent(content)
	}
	return readErr(done)
}

func readErr(done <-chan error) error {
	select {
	case err := <-done:
		return err
	default:
		return nil
	}
}

// inputFromFlags collects the editable fields given on the command line.
// Unset flags keep the values of base.
func inputFromFlags(cmd *cli.Command, base model.PoemInput) (model.PoemInput, bool, error) {
	in := base
	changed := false
	if cmd.IsSet("title") {
		in.Title = cmd.String("title")
		changed = true
	}
	if path := cmd.String("file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return in, false, fmt.Errorf("reading %s: %w", path, err)
		}
		in.Content = string(data)
		changed = true
	}
	if cmd.IsSet("color") {
		in.ColorToken = cmd.String("color")
		changed = true
	}
	if cmd.IsSet("image") {
		in.ImageReference = cmd.String("image")
		changed = true
	}
	return in, changed, nil
}
