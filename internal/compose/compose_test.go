package compose

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/poetry-studio/internal/apperror"
	"github.com/sakif/poetry-studio/internal/draft"
	"github.com/sakif/poetry-studio/internal/kv"
	"github.com/sakif/poetry-studio/internal/model"
	"github.com/sakif/poetry-studio/internal/notify"
)

// =========================================================================
// TEST HELPERS
// =========================================================================

type fakeSubmitter struct {
	mu      sync.Mutex
	created []model.PoemInput
	err     error
}

func (f *fakeSubmitter) Create(_ context.Context, in model.PoemInput) (*model.Poem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, in)
	return &model.Poem{ID: "new-id", Title: in.Title, Content: in.Content}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newDrafts(mem *kv.Memory) *draft.Store {
	return draft.NewStore(mem, testLogger(), draft.WithInterval(2*time.Millisecond))
}

// =========================================================================
// OPEN TESTS
// =========================================================================

func TestOpen_RestoresFreshDraft(t *testing.T) {
	mem := kv.NewMemory()
	drafts := newDrafts(mem)
	drafts.Persist(context.Background(), draft.Fields{
		Title:   "half written",
		Content: "the first line",
		Aux:     map[string]string{model.AuxColorToken: "bg-rose-800"},
	})

	s := Open(context.Background(), &fakeSubmitter{}, drafts, notify.Discard, testLogger())
	defer s.Close()

	assert.True(t, s.Restored())
	assert.Equal(t, "half written", s.Fields().Title)
	assert.Equal(t, "bg-rose-800", s.Input().ColorToken)
}

func TestOpen_NothingToRestore(t *testing.T) {
	s := Open(context.Background(), &fakeSubmitter{}, newDrafts(kv.NewMemory()), notify.Discard, testLogger())
	defer s.Close()

	assert.False(t, s.Restored())
	assert.True(t, s.Fields().Empty())
}

func TestOpen_Autosaves(t *testing.T) {
	mem := kv.NewMemory()
	drafts := newDrafts(mem)
	s := Open(context.Background(), &fakeSubmitter{}, drafts, notify.Discard, testLogger())
	defer s.Close()

	s.SetTitle("Harbour")
	assert.Eventually(t, func() bool {
		snap, ok := drafts.TryRestore(context.Background())
		return ok && snap.Title == "Harbour"
	}, time.Second, 2*time.Millisecond)
}

// =========================================================================
// SUBMIT TESTS
// =========================================================================

func TestSubmit_CreatesAndClearsDraft(t *testing.T) {
	mem := kv.NewMemory()
	drafts := newDrafts(mem)
	poems := &fakeSubmitter{}
	rec := &notify.Recorder{}

	s := Open(context.Background(), poems, drafts, rec, testLogger())
	defer s.Close()
	s.SetTitle("  Dawn ")
	s.SetContent("light on the water")

	// Let autosave write at least once so there is something to clear.
	require.Eventually(t, func() bool {
		_, ok := drafts.TryRestore(context.Background())
		return ok
	}, time.Second, 2*time.Millisecond)

	poem, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new-id", poem.ID)

	require.Len(t, poems.created, 1)
	assert.Equal(t, "Dawn", poems.created[0].Title)
	assert.Equal(t, model.DefaultColorToken, poems.created[0].ColorToken)

	// The draft stays gone even after a few more autosave periods.
	time.Sleep(10 * time.Millisecond)
	_, ok := drafts.TryRestore(context.Background())
	assert.False(t, ok)
	assert.True(t, s.Fields().Empty())

	got := rec.All()
	require.Len(t, got, 1)
	assert.Equal(t, notify.Info, got[0].Level)
	assert.Equal(t, "Poem saved", got[0].Title)
}

func TestSubmit_ValidationBlocksNetwork(t *testing.T) {
	drafts := newDrafts(kv.NewMemory())
	poems := &fakeSubmitter{}
	rec := &notify.Recorder{}

	s := Open(context.Background(), poems, drafts, rec, testLogger())
	defer s.Close()
	s.SetTitle("only a title")
	drafts.Persist(context.Background(), s.Fields())

	_, err := s.Submit(context.Background())
	assert.True(t, errors.Is(err, apperror.ErrValidation))
	assert.Empty(t, poems.created)

	_, ok := drafts.TryRestore(context.Background())
	assert.True(t, ok, "draft must survive a failed submit")

	got := rec.All()
	require.Len(t, got, 1)
	assert.Equal(t, notify.Error, got[0].Level)
	assert.Equal(t, "Missing fields", got[0].Title)
}

func TestSubmit_FailureKeepsDraft(t *testing.T) {
	drafts := newDrafts(kv.NewMemory())
	poems := &fakeSubmitter{err: apperror.Unavailable("database is down")}
	rec := &notify.Recorder{}

	s := Open(context.Background(), poems, drafts, rec, testLogger())
	defer s.Close()
	s.SetTitle("t")
	s.SetContent("c")
	drafts.Persist(context.Background(), s.Fields())

	_, err := s.Submit(context.Background())
	assert.True(t, errors.Is(err, apperror.ErrUnavailable))
	assert.Equal(t, "t", s.Fields().Title)

	_, ok := drafts.TryRestore(context.Background())
	assert.True(t, ok)

	got := rec.All()
	require.Len(t, got, 1)
	assert.Equal(t, "database is down", got[0].Message)
}

func TestClose_Twice(t *testing.T) {
	s := Open(context.Background(), &fakeSubmitter{}, newDrafts(kv.NewMemory()), notify.Discard, testLogger())
	s.Close()
	assert.NotPanics(t, s.Close)
}
