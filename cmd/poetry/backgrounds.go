package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/sakif/poetry-studio/internal/apperror"
	"github.com/sakif/poetry-studio/internal/background"
	"github.com/sakif/poetry-studio/internal/notify"
)

func backgroundsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "backgrounds",
		Aliases: []string{"bg"},
		Usage:   "Background gallery and the background preference",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List built-in and uploaded backgrounds",
				Action: r.BackgroundsList,
			},
			{
				Name:      "upload",
				Usage:     "Upload an image (5 MB max) to the gallery",
				Arguments: []cli.Argument{&cli.StringArg{Name: "path"}},
				Action:    r.BackgroundsUpload,
			},
			{
				Name:      "choose",
				Usage:     "Use one background on every page",
				Arguments: []cli.Argument{&cli.StringArg{Name: "reference"}},
				Action:    r.BackgroundsChoose,
			},
			{
				Name:  "random",
				Usage: "Pick a random background on every page",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "off", Usage: "Go back to the chosen background"},
				},
				Action: r.BackgroundsRandom,
			},
			{
				Name:   "current",
				Usage:  "Print the background to show now",
				Action: r.BackgroundsCurrent,
			},
		},
	}
}

// picker reports applied backgrounds on the terminal.
func (r *Runner) picker(ctx context.Context) (*background.Picker, error) {
	state, err := r.stateStore(ctx)
	if err != nil {
		return nil, err
	}
	applier := background.ApplierFunc(func(ref string) {
		r.printf("background: %s\n", ref)
	})
	return background.NewPicker(state, applier, r.logger), nil
}

// navigated applies the background for a newly shown page. In random mode
// every page gets a new image.
func (r *Runner) navigated(ctx context.Context) {
	p, err := r.picker(ctx)
	if err != nil {
		r.logger.Debug("background unavailable", slog.String("error", err.Error()))
		return
	}
	p.Navigated(ctx)
}

func (r *Runner) BackgroundsList(ctx context.Context, cmd *cli.Command) error {
	p, err := r.picker(ctx)
	if err != nil {
		return err
	}
	choice := p.Choice(ctx)
	mark := func(ref string) string {
		if ref == choice {
			return "*"
		}
		return " "
	}

	r.println("Built-in:")
	for _, ref := range background.BuiltIn {
		r.printf(" %s %s\n", mark(ref), ref)
	}

	api, err := r.client(ctx)
	if err != nil {
		return err
	}
	urls, err := api.Backgrounds(ctx)
	switch {
	case errors.Is(err, apperror.ErrUnavailable):
		r.println("\nGallery: not configured on the server")
	case err != nil:
		r.notifier.Notify(notify.Notification{Level: notify.Error, Title: "Error loading gallery", Message: err.Error()})
		return reported(err)
	default:
		r.println("\nGallery:")
		for _, u := range urls {
			r.printf(" %s %s\n", mark(u), u)
		}
		if len(urls) == 0 {
			r.println("   (empty)")
		}
	}

	if choice == background.Random {
		r.println("\nRandom mode is on.")
	}
	return nil
}

func (r *Runner) BackgroundsUpload(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("usage: poetry backgrounds upload PATH")
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	api, err := r.client(ctx)
	if err != nil {
		return err
	}
	url, err := api.UploadBackground(ctx, filepath.Base(path), f, info.Size())
	if err != nil {
		r.notifier.Notify(notify.Notification{Level: notify.Error, Title: "Upload failed", Message: err.Error()})
		return reported(err)
	}
	r.notifier.Notify(notify.Notification{Level: notify.Info, Title: "Uploaded", Message: url})
	return nil
}

func (r *Runner) BackgroundsChoose(ctx context.Context, cmd *cli.Command) error {
	ref := cmd.StringArg("reference")
	if ref == "" {
		return fmt.Errorf("usage: poetry backgrounds choose REFERENCE")
	}
	p, err := r.picker(ctx)
	if err != nil {
		return err
	}
	if err := p.Choose(ctx, ref); err != nil {
		return err
	}
	if p.IsRandom(ctx) && ref != background.Random {
		r.println("Random mode is still on. Turn it off with: poetry backgrounds random --off")
	}
	return nil
}

func (r *Runner) BackgroundsRandom(ctx context.Context, cmd *cli.Command) error {
	p, err := r.picker(ctx)
	if err != nil {
		return err
	}
	return p.SetRandom(ctx, !cmd.Bool("off"))
}

func (r *Runner) BackgroundsCurrent(ctx context.Context, cmd *cli.Command) error {
	p, err := r.picker(ctx)
	if err != nil {
		return err
	}
	r.println(p.Resolve(ctx))
	return nil
}
