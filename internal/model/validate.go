package model

import (
	"fmt"
	"strings"

	"github.com/sakif/poetry-studio/internal/apperror"
)

// Validation limits shared by the server and the CLI client.
const (
	MaxTitleLength          = 200
	MaxContentLength        = 20000
	MaxImageReferenceLength = 2048
)

// Normalize trims the text fields and fills in the default color token.
func (in PoemInput) Normalize() PoemInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	in.ColorToken = strings.TrimSpace(in.ColorToken)
	in.ImageReference = strings.TrimSpace(in.ImageReference)
	if in.ColorToken == "" {
		in.ColorToken = DefaultColorToken
	}
	return in
}

// Validate checks a normalized input. Both title and content are required.
func (in PoemInput) Validate() error {
	if in.Title == "" {
		return apperror.ValidationFailed("title", "title is required")
	}
	if in.Content == "" {
		return apperror.ValidationFailed("content", "content is required")
	}
	if len(in.Title) > MaxTitleLength {
		return apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	if len(in.Content) > MaxContentLength {
		return apperror.ValidationFailed("content",
			fmt.Sprintf("content must be %d characters or less", MaxContentLength))
	}
	if !IsColorToken(in.ColorToken) {
		return apperror.ValidationFailed("colorToken",
			fmt.Sprintf("unknown color token %q", in.ColorToken))
	}
	if len(in.ImageReference) > MaxImageReferenceLength {
		return apperror.ValidationFailed("imageReference",
			fmt.Sprintf("image reference must be %d characters or less", MaxImageReferenceLength))
	}
	return nil
}
