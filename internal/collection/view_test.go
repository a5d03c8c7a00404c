package collection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sakif/poetry-studio/internal/apperror"
	"github.com/sakif/poetry-studio/internal/model"
	"github.com/sakif/poetry-studio/internal/notify"
)

// =========================================================================
// FAKE COLLABORATOR
// =========================================================================

// memCollab keeps poems newest first, like the real store's ordering.
type memCollab struct {
	mu       sync.Mutex
	poems    []model.Poem
	countErr error
	listErr  error
	calls    int
}

func newMemCollab(n int) *memCollab {
	c := &memCollab{}
	for i := n; i >= 1; i-- {
		c.poems = append(c.poems, model.Poem{ID: fmt.Sprintf("p%02d", i), Title: fmt.Sprintf("poem %d", i), Content: "body"})
	}
	return c
}

func (c *memCollab) Count(context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.countErr != nil {
		return 0, c.countErr
	}
	return len(c.poems), nil
}

func (c *memCollab) List(_ context.Context, limit, offset int) ([]model.Poem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.listErr != nil {
		return nil, c.listErr
	}
	if offset >= len(c.poems) {
		return []model.Poem{}, nil
	}
	end := min(offset+limit, len(c.poems))
	return append([]model.Poem(nil), c.poems[offset:end]...), nil
}

func (c *memCollab) Update(_ context.Context, id string, in model.PoemInput) (*model.Poem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	for i := range c.poems {
		if c.poems[i].ID == id {
			c.poems[i].Title = in.Title
			c.poems[i].Content = in.Content
			c.poems[i].ColorToken = in.ColorToken
			p := c.poems[i]
			return &p, nil
		}
	}
	return nil, apperror.NotFound("poem", id)
}

func (c *memCollab) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	for i := range c.poems {
		if c.poems[i].ID == id {
			c.poems = append(c.poems[:i], c.poems[i+1:]...)
			return nil
		}
	}
	return apperror.NotFound("poem", id)
}

func (c *memCollab) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// mockCollab is a testify mock for asserting exactly which calls happen.
type mockCollab struct {
	mock.Mock
}

func (m *mockCollab) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockCollab) List(ctx context.Context, limit, offset int) ([]model.Poem, error) {
	args := m.Called(ctx, limit, offset)
	poems, _ := args.Get(0).([]model.Poem)
	return poems, args.Error(1)
}

func (m *mockCollab) Update(ctx context.Context, id string, in model.PoemInput) (*model.Poem, error) {
	args := m.Called(ctx, id, in)
	p, _ := args.Get(0).(*model.Poem)
	return p, args.Error(1)
}

func (m *mockCollab) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func ids(poems []model.Poem) []string {
	out := make([]string, len(poems))
	for i, p := range poems {
		out[i] = p.ID
	}
	return out
}

// =========================================================================
// FETCH TESTS
// =========================================================================

func TestView_StartsIdle(t *testing.T) {
	v := NewView(newMemCollab(3), notify.Discard, testLogger())
	snap := v.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Equal(t, 1, snap.Page.Current)
	assert.Empty(t, snap.Entries)
}

func TestView_LoadsFirstPage(t *testing.T) {
	collab := newMemCollab(8)
	v := NewView(collab, notify.Discard, testLogger())

	require.NoError(t, v.SetLocation(context.Background(), "/history"))

	snap := v.Snapshot()
	assert.Equal(t, StatusReady, snap.Status)
	assert.Equal(t, []string{"p08", "p07", "p06", "p05", "p04", "p03"}, ids(snap.Entries))
	assert.Equal(t, PageState{Current: 1, PageSize: 6, TotalPages: 2, Count: 8}, snap.Page)
	assert.True(t, snap.Controls.Visible)
}

func TestView_EmptyCollection(t *testing.T) {
	v := NewView(newMemCollab(0), notify.Discard, testLogger())

	require.NoError(t, v.SetLocation(context.Background(), "/history"))

	snap := v.Snapshot()
	assert.Equal(t, StatusReady, snap.Status)
	assert.Empty(t, snap.Entries)
	assert.Equal(t, 0, snap.Page.TotalPages)
	assert.False(t, snap.Controls.Visible)
}

func TestView_DirectPageFromLocation(t *testing.T) {
	v := NewView(newMemCollab(20), notify.Discard, testLogger())

	require.NoError(t, v.SetLocation(context.Background(), "/history?page=3"))

	snap := v.Snapshot()
	assert.Equal(t, 3, snap.Page.Current)
	assert.Equal(t, []string{"p08", "p07", "p06", "p05", "p04", "p03"}, ids(snap.Entries))
}

func TestView_OutOfRangePageIsEmpty(t *testing.T) {
	v := NewView(newMemCollab(7), notify.Discard, testLogger())

	require.NoError(t, v.SetLocation(context.Background(), "/history?page=9"))

	snap := v.Snapshot()
	assert.Equal(t, StatusReady, snap.Status)
	assert.Equal(t, 9, snap.Page.Current)
	assert.Empty(t, snap.Entries)
	assert.Equal(t, 2, snap.Page.TotalPages)
}

func TestView_FetchFailureKeepsEntries(t *testing.T) {
	tests := []struct {
		name     string
		countErr error
		listErr  error
	}{
		{name: "count fails", countErr: errors.New("network down")},
		{name: "range fails", listErr: errors.New("network down")},
		{name: "both fail", countErr: errors.New("a"), listErr: errors.New("b")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collab := newMemCollab(8)
			rec := &notify.Recorder{}
			v := NewView(collab, rec, testLogger())
			ctx := context.Background()

			require.NoError(t, v.SetLocation(ctx, "/history"))
			before := v.Snapshot()

			collab.countErr = tt.countErr
			collab.listErr = tt.listErr
			err := v.SetLocation(ctx, "/history?page=2")
			require.Error(t, err)

			snap := v.Snapshot()
			assert.Equal(t, StatusError, snap.Status)
			assert.Equal(t, ids(before.Entries), ids(snap.Entries))
			assert.Equal(t, before.Page.TotalPages, snap.Page.TotalPages)
			assert.Equal(t, before.Page.Count, snap.Page.Count)

			notes := rec.All()
			require.Len(t, notes, 1)
			assert.Equal(t, notify.Error, notes[0].Level)
		})
	}
}

func TestView_NoAutomaticRetry(t *testing.T) {
	collab := newMemCollab(3)
	collab.listErr = errors.New("boom")
	v := NewView(collab, notify.Discard, testLogger())

	_ = v.SetLocation(context.Background(), "/history")
	calls := collab.callCount()
	time.Sleep(10 * time.Millisecond)

	assert.Equal(t, calls, collab.callCount())
}

// blockingCollab holds List until released, to observe the Fetching state.
type blockingCollab struct {
	*memCollab
	release chan struct{}
}

func (b *blockingCollab) List(ctx context.Context, limit, offset int) ([]model.Poem, error) {
	<-b.release
	return b.memCollab.List(ctx, limit, offset)
}

func TestView_FetchingUntilBothResolve(t *testing.T) {
	collab := &blockingCollab{memCollab: newMemCollab(4), release: make(chan struct{})}
	v := NewView(collab, notify.Discard, testLogger())

	done := make(chan error, 1)
	go func() { done <- v.SetLocation(context.Background(), "/history") }()

	assert.Eventually(t, func() bool {
		return v.Snapshot().Status == StatusFetching
	}, time.Second, time.Millisecond)

	// Count has long resolved; the view must still be fetching.
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, StatusFetching, v.Snapshot().Status)

	close(collab.release)
	require.NoError(t, <-done)
	assert.Equal(t, StatusReady, v.Snapshot().Status)
}

// =========================================================================
// NAVIGATION TESTS
// =========================================================================

func TestView_GoToPagePushesLocation(t *testing.T) {
	v := NewView(newMemCollab(20), notify.Discard, testLogger())
	h := NewHistory("/history")
	ctx := context.Background()

	require.NoError(t, v.Bind(ctx, h))
	assert.Equal(t, 1, v.Snapshot().Page.Current)

	require.NoError(t, v.GoToPage(ctx, 2))
	assert.Equal(t, "/history?page=2", h.Location())
	assert.Equal(t, 2, v.Snapshot().Page.Current)

	require.NoError(t, v.GoToPage(ctx, 4))
	assert.Equal(t, []string{"p02", "p01"}, ids(v.Snapshot().Entries))

	// Back re-derives the page from the location.
	require.True(t, h.Back())
	assert.Equal(t, 2, v.Snapshot().Page.Current)
	assert.Equal(t, "p14", v.Snapshot().Entries[0].ID)
}

func TestView_BindTwice(t *testing.T) {
	collab := newMemCollab(20)
	v := NewView(collab, notify.Discard, testLogger())
	h := NewHistory("/history")
	ctx := context.Background()

	require.NoError(t, v.Bind(ctx, h))
	require.Equal(t, 2, collab.callCount())

	err := v.Bind(ctx, NewHistory("/history?page=3"))
	assert.ErrorIs(t, err, ErrAlreadyBound)
	assert.Equal(t, 2, collab.callCount(), "a rejected Bind must not fetch")
	assert.Equal(t, 1, v.Snapshot().Page.Current)

	// One listener: a page change costs one count and one range query.
	require.NoError(t, v.GoToPage(ctx, 2))
	assert.Equal(t, 4, collab.callCount())
}

func TestView_GoToPageWithoutHistory(t *testing.T) {
	v := NewView(newMemCollab(20), notify.Discard, testLogger())

	require.NoError(t, v.GoToPage(context.Background(), 3))
	assert.Equal(t, 3, v.Snapshot().Page.Current)
}

func TestView_BoundaryControls(t *testing.T) {
	v := NewView(newMemCollab(20), notify.Discard, testLogger())
	ctx := context.Background()

	require.NoError(t, v.SetLocation(ctx, "/history?page=1"))
	c := v.Snapshot().Controls
	assert.True(t, c.PrevDisabled)
	assert.False(t, c.NextDisabled)

	require.NoError(t, v.SetLocation(ctx, "/history?page=4"))
	c = v.Snapshot().Controls
	assert.False(t, c.PrevDisabled)
	assert.True(t, c.NextDisabled)
}

// =========================================================================
// MUTATION TESTS
// =========================================================================

func TestView_DeleteRefetchesSamePage(t *testing.T) {
	collab := newMemCollab(7)
	rec := &notify.Recorder{}
	v := NewView(collab, rec, testLogger())
	ctx := context.Background()

	require.NoError(t, v.SetLocation(ctx, "/history?page=1"))
	require.True(t, v.Snapshot().Controls.Visible)

	require.NoError(t, v.Delete(ctx, "p05"))

	snap := v.Snapshot()
	assert.Equal(t, 1, snap.Page.Current)
	assert.Len(t, snap.Entries, 6)
	assert.NotContains(t, ids(snap.Entries), "p05")
	assert.Equal(t, 1, snap.Page.TotalPages)
	assert.False(t, snap.Controls.Visible)

	notes := rec.All()
	require.Len(t, notes, 1)
	assert.Equal(t, notify.Info, notes[0].Level)
}

func TestView_DeleteLastItemOnPageStaysOnPage(t *testing.T) {
	collab := newMemCollab(7)
	v := NewView(collab, notify.Discard, testLogger())
	ctx := context.Background()

	require.NoError(t, v.SetLocation(ctx, "/history?page=2"))
	require.Equal(t, []string{"p01"}, ids(v.Snapshot().Entries))

	require.NoError(t, v.Delete(ctx, "p01"))

	snap := v.Snapshot()
	assert.Equal(t, 2, snap.Page.Current)
	assert.Empty(t, snap.Entries)
	assert.Equal(t, 1, snap.Page.TotalPages)
}

func TestView_SetPageThenDelete(t *testing.T) {
	collab := newMemCollab(7)
	v := NewView(collab, notify.Discard, testLogger())

	v.SetPage(2)
	assert.Zero(t, collab.callCount(), "SetPage must not fetch")
	assert.Equal(t, StatusIdle, v.Snapshot().Status)

	require.NoError(t, v.Delete(context.Background(), "p01"))

	// One delete plus one count and one range query for page 2.
	assert.Equal(t, 3, collab.callCount())
	snap := v.Snapshot()
	assert.Equal(t, 2, snap.Page.Current)
	assert.Empty(t, snap.Entries)
	assert.Equal(t, 1, snap.Page.TotalPages)
}

func TestView_SetPageClampsToFirst(t *testing.T) {
	v := NewView(newMemCollab(1), notify.Discard, testLogger())

	v.SetPage(0)
	assert.Equal(t, 1, v.Snapshot().Page.Current)
}

func TestView_DeleteFailureLeavesStateUnchanged(t *testing.T) {
	m := &mockCollab{}
	page := []model.Poem{{ID: "a"}, {ID: "b"}}
	m.On("Count", mock.Anything).Return(2, nil).Once()
	m.On("List", mock.Anything, PageSize, 0).Return(page, nil).Once()
	m.On("Delete", mock.Anything, "a").Return(errors.New("server error")).Once()

	rec := &notify.Recorder{}
	v := NewView(m, rec, testLogger())
	ctx := context.Background()

	require.NoError(t, v.SetLocation(ctx, "/history"))
	before := v.Snapshot()

	err := v.Delete(ctx, "a")
	require.Error(t, err)

	after := v.Snapshot()
	assert.Equal(t, before.Status, after.Status)
	assert.Equal(t, ids(before.Entries), ids(after.Entries))
	assert.Equal(t, before.Page, after.Page)

	notes := rec.All()
	require.Len(t, notes, 1)
	assert.Equal(t, notify.Error, notes[0].Level)

	// No refetch after a failed delete.
	m.AssertExpectations(t)
	m.AssertNumberOfCalls(t, "Count", 1)
}

func TestView_EditRefetchesSamePage(t *testing.T) {
	collab := newMemCollab(10)
	v := NewView(collab, notify.Discard, testLogger())
	ctx := context.Background()

	require.NoError(t, v.SetLocation(ctx, "/history?page=2"))

	poem, err := v.Edit(ctx, "p03", model.PoemInput{Title: "renamed", Content: "new body"})
	require.NoError(t, err)
	assert.Equal(t, "renamed", poem.Title)
	assert.Equal(t, model.DefaultColorToken, poem.ColorToken)

	snap := v.Snapshot()
	assert.Equal(t, 2, snap.Page.Current)
	assert.Equal(t, StatusReady, snap.Status)
	found := false
	for _, p := range snap.Entries {
		if p.ID == "p03" {
			found = true
			assert.Equal(t, "renamed", p.Title)
		}
	}
	assert.True(t, found)
}

func TestView_EditMissingFieldsNeverCallsCollaborator(t *testing.T) {
	m := &mockCollab{}
	rec := &notify.Recorder{}
	v := NewView(m, rec, testLogger())

	_, err := v.Edit(context.Background(), "a", model.PoemInput{Title: "only a title"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	m.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	require.Len(t, rec.All(), 1)
	assert.Equal(t, "Missing fields", rec.All()[0].Title)
}

func TestView_EditFailure(t *testing.T) {
	collab := newMemCollab(3)
	rec := &notify.Recorder{}
	v := NewView(collab, rec, testLogger())
	ctx := context.Background()

	require.NoError(t, v.SetLocation(ctx, "/history"))
	before := v.Snapshot()
	rec.Drain()

	_, err := v.Edit(ctx, "missing", model.PoemInput{Title: "t", Content: "c"})
	require.ErrorIs(t, err, apperror.ErrNotFound)

	assert.Equal(t, ids(before.Entries), ids(v.Snapshot().Entries))
	require.Len(t, rec.All(), 1)
	assert.Equal(t, notify.Error, rec.All()[0].Level)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "idle", StatusIdle.String())
	assert.Equal(t, "fetching", StatusFetching.String())
	assert.Equal(t, "ready", StatusReady.String())
	assert.Equal(t, "error", StatusError.String())
}
