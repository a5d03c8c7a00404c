// Package generate talks to the hosted text-generation models that produce a
// commentary on a poem.
//
// FALLBACK CHAIN:
// The hosted models are slow to warm up and often rate limited, so the client walks
// an ordered list and returns the first answer that is long enough to be useful:
//
//	for each model:
//	    cancelled?              → ErrCancelled
//	    POST /models/{model}
//	    429                     → wait RetryWait, try the next model
//	    other failure           → try the next model
//	    text longer than 30     → done
//	all failed                  → RateLimited or Unavailable
//
// Progress is reported through the onPartial callback: a start message, one
// message per model attempt, and finally the accepted text itself.
package generate

import (
	"context"
	"errors"
	"fmt"
)

// Generator produces a text variant for the given input.
type Generator interface {
	Generate(ctx context.Context, text string, onPartial func(string)) (string, error)
}

// ErrCancelled is returned when the caller's context ends mid-generation.
// It is distinct from failures so the UI can report it without alarm.
var ErrCancelled = errors.New("generate: cancelled")

// cancelled wraps ctx's error so both errors.Is(err, ErrCancelled) and
// errors.Is(err, context.Canceled) hold.
func cancelled(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
}

// IsCancelled reports whether err is a cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
