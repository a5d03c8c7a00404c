// Package draft keeps the in-progress editor text in local storage so an
// interrupted session can pick up where it left off.
//
// LIFECYCLE:
//
//	editor opens      → TryRestore (only a fresh snapshot comes back)
//	while typing      → Autosaver persists every 5s if title or content is non-empty
//	successful submit → Clear
//	editor closes     → Autosaver.Stop
//
// STORAGE FAILURES:
// Losing a draft write must never interrupt writing, so every storage error is
// logged at debug level and otherwise ignored. A snapshot that cannot be read or
// decoded behaves exactly like a missing one.
package draft

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/sakif/poetry-studio/internal/kv"
	"github.com/sakif/poetry-studio/internal/model"
)

const (
	// Key is the single storage slot for the editor draft.
	Key = "poem-draft"

	// FreshFor is how long a snapshot stays eligible for restore.
	FreshFor = 24 * time.Hour

	// AutosaveInterval is the period between autosave writes.
	AutosaveInterval = 5 * time.Second
)

// Fields are the editor values captured in a snapshot.
type Fields struct {
	Title   string
	Content string
	Aux     map[string]string
}

// Empty reports whether there is no text worth saving.
func (f Fields) Empty() bool {
	return f.Title == "" && f.Content == ""
}

// Store reads and writes the draft snapshot.
type Store struct {
	kv       kv.Store
	key      string
	now      func() time.Time
	interval time.Duration
	logger   *slog.Logger
}

type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithKey stores the snapshot under a different key.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithInterval changes the autosave period.
func WithInterval(d time.Duration) Option {
	return func(s *Store) { s.interval = d }
}

func NewStore(store kv.Store, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		kv:       store,
		key:      Key,
		now:      time.Now,
		interval: AutosaveInterval,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Persist overwrites the stored snapshot with f, stamped with the current time.
func (s *Store) Persist(ctx context.Context, f Fields) {
	snap := model.DraftSnapshot{
		Title:   f.Title,
		Content: f.Content,
		Aux:     f.Aux,
		SavedAt: s.now().UnixMilli(),
	}

	data, err := json.Marshal(snap)
	if err != nil {
		s.logger.Debug("draft: encoding snapshot", slog.String("error", err.Error()))
		return
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		s.logger.Debug("draft: persisting snapshot", slog.String("error", err.Error()))
	}
}

// TryRestore returns the stored snapshot if one exists and is younger than FreshFor.
// A stale snapshot is reported as absent and left in place.
func (s *Store) TryRestore(ctx context.Context) (model.DraftSnapshot, bool) {
	data, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.logger.Debug("draft: reading snapshot", slog.String("error", err.Error()))
		}
		return model.DraftSnapshot{}, false
	}

	var snap model.DraftSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Debug("draft: decoding snapshot", slog.String("error", err.Error()))
		return model.DraftSnapshot{}, false
	}

	if s.now().Sub(snap.SavedTime()) >= FreshFor {
		s.logger.Debug("draft: snapshot is stale",
			slog.Time("savedAt", snap.SavedTime()),
		)
		return model.DraftSnapshot{}, false
	}

	return snap, true
}

// Clear removes the stored snapshot.
func (s *Store) Clear(ctx context.Context) {
	if err := s.kv.Delete(ctx, s.key); err != nil {
		s.logger.Debug("draft: clearing snapshot", slog.String("error", err.Error()))
	}
}
