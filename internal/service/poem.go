// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services take interfaces (repository.PoemRepository, blob.Store,
// generate.Generator) rather than concrete types, so tests inject fakes and the
// composition root decides which implementation runs.
//
// Services know nothing about HTTP. They return apperror values and the handler
// layer maps those to status codes. The same PoemService also satisfies
// collection.Collaborator, which lets the server-rendered history page drive the
// exact state machine the CLI uses.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/poetry-studio/internal/apperror"
	"github.com/sakif/poetry-studio/internal/model"
	"github.com/sakif/poetry-studio/internal/repository"
)

const (
	DefaultListLimit = 6
	MaxListLimit     = 100
)

// PoemService handles business logic for poems.
type PoemService struct {
	repo   repository.PoemRepository
	logger *slog.Logger
}

func NewPoemService(repo repository.PoemRepository, logger *slog.Logger) *PoemService {
	return &PoemService{
		repo:   repo,
		logger: logger,
	}
}

// Count returns the total number of poems.
func (s *PoemService) Count(ctx context.Context) (int, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		s.logger.Error("failed to count poems", slog.String("error", err.Error()))
		return 0, fmt.Errorf("counting poems: %w", err)
	}
	return n, nil
}

// Create validates and saves a new poem.
//
// Both title and content are required. The color token falls back to the
// default card color and must otherwise be part of the palette.
func (s *PoemService) Create(ctx context.Context, in model.PoemInput) (*model.Poem, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	poem := &model.Poem{
		Title:          in.Title,
		Content:        in.Content,
		ColorToken:     in.ColorToken,
		ImageReference: in.ImageReference,
	}

	if err := s.repo.Create(ctx, poem); err != nil {
		s.logger.Error("failed to create poem",
			slog.String("title", in.Title),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating poem: %w", err)
	}

	s.logger.Info("poem created",
		slog.String("id", poem.ID),
		slog.String("title", poem.Title),
	)

	return poem, nil
}

// GetByID retrieves a poem by its ID.
// Returns apperror.ErrNotFound if the poem doesn't exist.
func (s *PoemService) GetByID(ctx context.Context, id string) (*model.Poem, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "poem ID is required")
	}

	return s.repo.GetByID(ctx, id)
}

// List returns up to limit poems starting at offset, newest first.
// limit is clamped to 1..MaxListLimit (default DefaultListLimit).
func (s *PoemService) List(ctx context.Context, limit, offset int) ([]model.Poem, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	poems, err := s.repo.List(ctx, repository.ListOptions{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.logger.Error("failed to list poems", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing poems: %w", err)
	}

	return poems, nil
}

// Update replaces the editable fields of an existing poem.
//
// STRATEGY: fetch, apply, save. The fetch turns a missing ID into NotFound
// before anything is written, and the full updated poem is returned.
func (s *PoemService) Update(ctx context.Context, id string, in model.PoemInput) (*model.Poem, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "poem ID is required")
	}

	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	poem, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	poem.Title = in.Title
	poem.Content = in.Content
	poem.ColorToken = in.ColorToken
	poem.ImageReference = in.ImageReference

	if err := s.repo.Update(ctx, poem); err != nil {
		s.logger.Error("failed to update poem",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating poem: %w", err)
	}

	s.logger.Info("poem updated",
		slog.String("id", poem.ID),
		slog.String("title", poem.Title),
	)

	return poem, nil
}

// Delete removes a poem by its ID.
// Returns apperror.ErrNotFound if the poem doesn't exist.
func (s *PoemService) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "poem ID is required")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("poem deleted", slog.String("id", id))
	return nil
}
