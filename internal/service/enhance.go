package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/poetry-studio/internal/apperror"
	"github.com/sakif/poetry-studio/internal/generate"
	"github.com/sakif/poetry-studio/internal/model"
)

// EnhanceService asks the text-generation collaborator for a commentary on a poem.
// gen may be nil when no generation backend is configured.
type EnhanceService struct {
	gen    generate.Generator
	logger *slog.Logger
}

func NewEnhanceService(gen generate.Generator, logger *slog.Logger) *EnhanceService {
	return &EnhanceService{gen: gen, logger: logger}
}

// Enhance validates text and streams progress through onPartial.
// Cancellation is returned as generate.ErrCancelled and logged at info level.
func (s *EnhanceService) Enhance(ctx context.Context, text string, onPartial func(string)) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperror.ValidationFailed("text", "text is required")
	}
	if len(text) > model.MaxContentLength {
		return "", apperror.ValidationFailed("text",
			fmt.Sprintf("text must be %d characters or less", model.MaxContentLength))
	}
	if s.gen == nil {
		return "", apperror.Unavailable("text generation is not configured")
	}

	out, err := s.gen.Generate(ctx, text, onPartial)
	if err != nil {
		if generate.IsCancelled(err) {
			s.logger.Info("generation cancelled")
			return "", err
		}
		s.logger.Warn("generation failed", slog.String("error", err.Error()))
		return "", err
	}
	return out, nil
}
