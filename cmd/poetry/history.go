package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/sakif/poetry-studio/internal/collection"
	"github.com/sakif/poetry-studio/internal/model"
	"github.com/sakif/poetry-studio/internal/notify"
)

func pageFlag() *cli.IntFlag {
	return &cli.IntFlag{
		Name:    "page",
		Aliases: []string{"p"},
		Usage:   "History page (6 poems per page)",
		Value:   1,
	}
}

func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "history",
		Aliases: []string{"ls"},
		Usage:   "List saved poems, newest first",
		Flags:   []cli.Flag{pageFlag()},
		Action:  r.History,
	}
}

func showCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Print one poem",
		Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
		Flags:     []cli.Flag{pageFlag()},
		Action:    r.Show,
	}
}

func editCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "edit",
		Usage:     "Change a poem's title, content, color or image",
		Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
		Flags: []cli.Flag{
			pageFlag(),
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "New title"},
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Read the new content from a file"},
			&cli.StringFlag{Name: "color", Usage: "New card color token"},
			&cli.StringFlag{Name: "image", Usage: "New background image reference"},
		},
		Action: r.Edit,
	}
}

func deleteCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Aliases:   []string{"rm"},
		Usage:     "Delete a poem and show the page it was on",
		Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
		Flags:     []cli.Flag{pageFlag()},
		Action:    r.Delete,
	}
}

// view binds a CollectionView to the location of page. The page number goes
// through the location so out-of-range and invalid values are handled the
// same way as on the web.
func (r *Runner) view(ctx context.Context, page int) (*collection.View, error) {
	api, err := r.client(ctx)
	if err != nil {
		return nil, err
	}
	v := collection.NewView(api, r.notifier, r.logger)
	location := fmt.Sprintf("%s?page=%d", collection.HistoryPath, page)
	if err := v.Bind(ctx, collection.NewHistory(location)); err != nil {
		return v, reported(err)
	}
	return v, nil
}

// History prints one page and the pagination bar.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	v, err := r.view(ctx, int(cmd.Int("page")))
	if err != nil {
		return err
	}
	r.navigated(ctx)
	r.renderPage(v.Snapshot())
	return nil
}

func (r *Runner) Show(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("usage: poetry show ID")
	}
	api, err := r.client(ctx)
	if err != nil {
		return err
	}

	poem, err := api.GetByID(ctx, id)
	if err != nil {
		// A missing poem is reported like any other fetch failure.
		r.notifier.Notify(notify.Notification{
			Level:   notify.Error,
			Title:   "Error fetching poem",
			Message: err.Error(),
		})
		return reported(err)
	}

	r.navigated(ctx)
	r.renderPoem(poem)
	back := collection.BackLink(fmt.Sprintf("page=%d", cmd.Int("page")))
	r.printf("\nBack to the list: poetry history --page %d  (%s)\n", collection.PageFromLocation(back), back)
	return nil
}

// Edit changes the poem and shows the list page it came from, refreshed.
func (r *Runner) Edit(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("usage: poetry edit ID [--title T] [--file F] [--color C] [--image I]")
	}
	api, err := r.client(ctx)
	if err != nil {
		return err
	}

	poem, err := api.GetByID(ctx, id)
	if err != nil {
		r.notifier.Notify(notify.Notification{
			Level:   notify.Error,
			Title:   "Error fetching poem",
			Message: err.Error(),
		})
		return reported(err)
	}

	in, changed, err := inputFromFlags(cmd, model.PoemInput{
		Title:          poem.Title,
		Content:        poem.Content,
		ColorToken:     poem.ColorToken,
		ImageReference: poem.ImageReference,
	})
	if err != nil {
		return err
	}
	if !changed {
		return fmt.Errorf("nothing to change: pass --title, --file, --color or --image")
	}

	v, err := r.view(ctx, int(cmd.Int("page")))
	if err != nil {
		return err
	}
	if _, err := v.Edit(ctx, id, in); err != nil {
		return reported(err)
	}
	r.renderPage(v.Snapshot())
	return nil
}

// Delete removes the poem and re-shows the same page, even when it is now empty.
func (r *Runner) Delete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("usage: poetry delete ID")
	}

	v, err := r.view(ctx, int(cmd.Int("page")))
	if err != nil {
		return err
	}
	if err := v.Delete(ctx, id); err != nil {
		return reported(err)
	}
	r.renderPage(v.Snapshot())
	return nil
}

// =========================================================================
// RENDERING
// =========================================================================

func (r *Runner) renderPage(snap collection.Snapshot) {
	if len(snap.Entries) == 0 {
		if snap.Page.Count == 0 {
			r.println("No poems yet. Start with: poetry write")
		} else {
			r.printf("Page %d is empty.\n", snap.Page.Current)
		}
	}

	for i, p := range snap.Entries {
		n := collection.Offset(snap.Page.Current) + i + 1
		r.printf("%3d. %-24s %s  %s\n", n, truncate(p.Title, 24), p.CreatedAt.Local().Format("2006-01-02"), p.ID)
	}

	if bar := paginationBar(snap.Controls); bar != "" {
		r.printf("\n%s\n", bar)
	}
}

// paginationBar renders the controls, e.g. "‹ 1 … 4 [5] 6 … 10 ›".
// Inert arrows are dimmed to a dot. Hidden controls render as "".
func paginationBar(c collection.Controls) string {
	if !c.Visible {
		return ""
	}
	parts := make([]string, 0, len(c.Links)+2)
	if c.PrevDisabled {
		parts = append(parts, "·")
	} else {
		parts = append(parts, "‹")
	}
	for _, l := range c.Links {
		switch {
		case l.Ellipsis:
			parts = append(parts, "…")
		case l.Current:
			parts = append(parts, fmt.Sprintf("[%d]", l.Page))
		default:
			parts = append(parts, fmt.Sprintf("%d", l.Page))
		}
	}
	if c.NextDisabled {
		parts = append(parts, "·")
	} else {
		parts = append(parts, "›")
	}
	return strings.Join(parts, " ")
}

func (r *Runner) renderPoem(p *model.Poem) {
	r.println(p.Title)
	r.println(strings.Repeat("─", min(len([]rune(p.Title)), 40)))
	r.println(p.Content)
	r.printf("\n%s", p.CreatedAt.Local().Format("January 2, 2006"))
	if p.UpdatedAt.After(p.CreatedAt) {
		r.printf(" (edited %s)", p.UpdatedAt.Local().Format("January 2, 2006"))
	}
	r.println()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
