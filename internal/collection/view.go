package collection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/poetry-studio/internal/model"
	"github.com/sakif/poetry-studio/internal/notify"
)

// Collaborator is the remote store behind the list.
// service.PoemService satisfies it on the server and client.Client in the CLI.
type Collaborator interface {
	Count(ctx context.Context) (int, error)
	List(ctx context.Context, limit, offset int) ([]model.Poem, error)
	Update(ctx context.Context, id string, in model.PoemInput) (*model.Poem, error)
	Delete(ctx context.Context, id string) error
}

// Status is the fetch state of the view.
type Status int

const (
	StatusIdle Status = iota
	StatusFetching
	StatusReady
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusFetching:
		return "fetching"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Snapshot is a consistent copy of the view for rendering.
type Snapshot struct {
	Status   Status
	Entries  []model.Poem
	Page     PageState
	Controls Controls
	Err      error
}

// View is the history list state machine:
//
//	Idle → Fetching → Ready
//	             └──→ Error
//
// Every page change and every successful mutation goes through Fetching again.
// A failed fetch keeps the previously shown entries and page count.
type View struct {
	collab   Collaborator
	notifier notify.Notifier
	logger   *slog.Logger

	mu      sync.Mutex
	status  Status
	entries []model.Poem
	page    PageState
	err     error
	gen     uint64
	history *History
}

func NewView(collab Collaborator, notifier notify.Notifier, logger *slog.Logger) *View {
	return &View{
		collab:   collab,
		notifier: notifier,
		logger:   logger,
		status:   StatusIdle,
		page:     PageState{Current: 1, PageSize: PageSize},
	}
}

// ErrAlreadyBound is returned by Bind when the view already follows a history.
var ErrAlreadyBound = errors.New("collection: view is already bound to a history")

// Bind makes the view follow h: it loads h's current location now and
// reloads on every later Push, Back or Forward. A view binds once.
//
// ctx governs every fetch triggered by navigation on h, including those
// started through GoToPage, so it should live as long as the view.
func (v *View) Bind(ctx context.Context, h *History) error {
	v.mu.Lock()
	if v.history != nil {
		v.mu.Unlock()
		return ErrAlreadyBound
	}
	v.history = h
	v.mu.Unlock()

	h.Listen(func(location string) {
		// Failures are already notified and recorded in the snapshot.
		_ = v.SetLocation(ctx, location)
	})
	return v.SetLocation(ctx, h.Location())
}

// GoToPage requests page p by pushing its location. Without a bound history
// the location is applied directly under ctx; with one, the push triggers a
// fetch under the context given to Bind and ctx is not used.
func (v *View) GoToPage(ctx context.Context, p int) error {
	v.mu.Lock()
	h := v.history
	v.mu.Unlock()

	if h == nil {
		return v.SetLocation(ctx, PageURL(p))
	}
	h.Push(PageURL(p))

	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

// SetPage points the view at page p without fetching. Use it before a
// mutation whose refetch should land on p.
func (v *View) SetPage(p int) {
	if p < 1 {
		p = 1
	}
	v.mu.Lock()
	v.page.Current = p
	v.mu.Unlock()
}

// SetLocation derives the page from location and fetches it.
func (v *View) SetLocation(ctx context.Context, location string) error {
	page := PageFromLocation(location)

	v.mu.Lock()
	v.page.Current = page
	v.mu.Unlock()

	return v.fetch(ctx)
}

// Refresh re-fetches the current page.
func (v *View) Refresh(ctx context.Context) error {
	return v.fetch(ctx)
}

// fetch runs the count and range queries concurrently and commits both
// results together. If a newer fetch started meanwhile, this one's results
// are dropped.
func (v *View) fetch(ctx context.Context) error {
	v.mu.Lock()
	v.gen++
	gen := v.gen
	page := v.page.Current
	v.status = StatusFetching
	v.mu.Unlock()

	var (
		count   int
		entries []model.Poem
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := v.collab.Count(gctx)
		if err != nil {
			return fmt.Errorf("counting poems: %w", err)
		}
		count = n
		return nil
	})
	g.Go(func() error {
		list, err := v.collab.List(gctx, PageSize, Offset(page))
		if err != nil {
			return fmt.Errorf("listing page %d: %w", page, err)
		}
		entries = list
		return nil
	})
	err := g.Wait()

	v.mu.Lock()
	if gen != v.gen {
		v.mu.Unlock()
		return nil
	}
	if err != nil {
		v.status = StatusError
		v.err = err
		v.mu.Unlock()

		v.logger.Warn("history fetch failed",
			slog.Int("page", page),
			slog.String("error", err.Error()),
		)
		v.notifier.Notify(notify.Notification{
			Level:   notify.Error,
			Title:   "Failed to load poems",
			Message: err.Error(),
		})
		return err
	}

	v.status = StatusReady
	v.err = nil
	v.entries = entries
	v.page.Count = count
	v.page.TotalPages = TotalPages(count)
	v.mu.Unlock()

	v.logger.Debug("history page loaded",
		slog.Int("page", page),
		slog.Int("entries", len(entries)),
		slog.Int("count", count),
	)
	return nil
}

// Delete removes a poem and then re-fetches the same page, even if that page
// is now empty. On failure nothing changes and an error notification is sent.
func (v *View) Delete(ctx context.Context, id string) error {
	if err := v.collab.Delete(ctx, id); err != nil {
		v.logger.Warn("delete failed", slog.String("id", id), slog.String("error", err.Error()))
		v.notifier.Notify(notify.Notification{
			Level:   notify.Error,
			Title:   "Failed to delete poem",
			Message: err.Error(),
		})
		return err
	}

	v.notifier.Notify(notify.Notification{Level: notify.Info, Title: "Poem deleted"})

	// A failed refresh is reported by fetch itself; the delete still succeeded.
	_ = v.fetch(ctx)
	return nil
}

// Edit updates a poem and re-fetches the same page. Missing fields are rejected
// before any call to the collaborator.
func (v *View) Edit(ctx context.Context, id string, in model.PoemInput) (*model.Poem, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		v.notifier.Notify(notify.Notification{
			Level:   notify.Error,
			Title:   "Missing fields",
			Message: err.Error(),
		})
		return nil, err
	}

	poem, err := v.collab.Update(ctx, id, in)
	if err != nil {
		v.logger.Warn("edit failed", slog.String("id", id), slog.String("error", err.Error()))
		v.notifier.Notify(notify.Notification{
			Level:   notify.Error,
			Title:   "Failed to update poem",
			Message: err.Error(),
		})
		return nil, err
	}

	v.notifier.Notify(notify.Notification{Level: notify.Info, Title: "Poem updated"})
	_ = v.fetch(ctx)
	return poem, nil
}

// Snapshot returns a copy of the current state.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	return Snapshot{
		Status:   v.status,
		Entries:  append([]model.Poem(nil), v.entries...),
		Page:     v.page,
		Controls: BuildControls(v.page.Current, v.page.TotalPages),
		Err:      v.err,
	}
}
