package repository

import (
	"context"

	"github.com/sakif/poetry-studio/internal/model"
)

// ListOptions selects a contiguous range of poems, newest first.
type ListOptions struct {
	Limit  int
	Offset int
}

type PoemRepository interface {
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, poem *model.Poem) error
	GetByID(ctx context.Context, id string) (*model.Poem, error)
	List(ctx context.Context, opts ListOptions) ([]model.Poem, error)
	Update(ctx context.Context, poem *model.Poem) error
	Delete(ctx context.Context, id string) error
}
