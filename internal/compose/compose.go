// Package compose runs one editor session: the draft buffer, its autosave loop
// and the final submission.
//
// SESSION LIFECYCLE:
//
//	Open        → restore a fresh draft into the buffer, start autosave
//	Set*        → the user types; autosave persists every interval
//	Submit      → validate locally, then create through the Submitter
//	              success ends autosave, clears the stored draft and empties the buffer
//	Close       → stop autosave; no draft write happens afterwards
package compose

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sakif/poetry-studio/internal/apperror"
	"github.com/sakif/poetry-studio/internal/draft"
	"github.com/sakif/poetry-studio/internal/model"
	"github.com/sakif/poetry-studio/internal/notify"
)

// Submitter stores new poems. *client.Client and *service.PoemService both satisfy it.
type Submitter interface {
	Create(ctx context.Context, in model.PoemInput) (*model.Poem, error)
}

type Session struct {
	poems    Submitter
	drafts   *draft.Store
	buf      *draft.Buffer
	autosave *draft.Autosaver
	notifier notify.Notifier
	logger   *slog.Logger

	restored bool
}

// Open starts a session for a new poem. A fresh draft, if any, is loaded into
// the buffer before autosave starts.
func Open(ctx context.Context, poems Submitter, drafts *draft.Store, notifier notify.Notifier, logger *slog.Logger) *Session {
	s := &Session{
		poems:    poems,
		drafts:   drafts,
		buf:      draft.NewBuffer(),
		notifier: notifier,
		logger:   logger,
	}

	if snap, ok := drafts.TryRestore(ctx); ok && !snap.Empty() {
		s.buf.Load(snap)
		s.restored = true
		logger.Debug("compose: draft restored", slog.Time("savedAt", snap.SavedTime()))
	}

	s.autosave = drafts.StartAutosave(ctx, s.buf)
	return s
}

// Restored reports whether Open picked up a stored draft.
func (s *Session) Restored() bool { return s.restored }

// Fields returns the current editor values.
func (s *Session) Fields() draft.Fields { return s.buf.Fields() }

func (s *Session) SetTitle(title string)     { s.buf.SetTitle(title) }
func (s *Session) SetContent(content string) { s.buf.SetContent(content) }
func (s *Session) SetColor(token string)     { s.buf.SetAux(model.AuxColorToken, token) }
func (s *Session) SetImage(reference string) { s.buf.SetAux(model.AuxImageReference, reference) }

// Input converts the buffer into a normalized PoemInput.
func (s *Session) Input() model.PoemInput {
	f := s.buf.Fields()
	return model.PoemInput{
		Title:          f.Title,
		Content:        f.Content,
		ColorToken:     f.Aux[model.AuxColorToken],
		ImageReference: f.Aux[model.AuxImageReference],
	}.Normalize()
}

// Submit validates the buffer and stores it.
//
// A validation failure never reaches the Submitter and leaves the draft alone.
// On a storage failure the buffer and draft are kept so the user can retry.
// On success the stored draft is cleared exactly once.
func (s *Session) Submit(ctx context.Context) (*model.Poem, error) {
	in := s.Input()
	if err := in.Validate(); err != nil {
		s.notifier.Notify(notify.Notification{
			Level:   notify.Error,
			Title:   "Missing fields",
			Message: err.Error(),
		})
		return nil, err
	}

	poem, err := s.poems.Create(ctx, in)
	if err != nil {
		s.notifier.Notify(notify.Notification{
			Level:   notify.Error,
			Title:   "Error saving poem",
			Message: userMessage(err),
		})
		return nil, err
	}

	// Stop first so a tick already in flight cannot write the draft back.
	s.Close()
	s.buf.Reset()
	s.drafts.Clear(ctx)

	s.notifier.Notify(notify.Notification{Level: notify.Info, Title: "Poem saved"})
	s.logger.Info("compose: poem saved", slog.String("id", poem.ID))
	return poem, nil
}

// Close stops autosave. Safe to call more than once.
func (s *Session) Close() {
	s.autosave.Stop()
}

func userMessage(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "please try again"
}
