package draft

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Source supplies the values to autosave. *Buffer implements it.
type Source interface {
	Fields() Fields
}

// Autosaver persists a Source on a fixed period until stopped.
type Autosaver struct {
	store *Store
	src   Source

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// StartAutosave begins the periodic save loop in its own goroutine.
// The loop ends when ctx is cancelled or Stop is called.
func (s *Store) StartAutosave(ctx context.Context, src Source) *Autosaver {
	a := &Autosaver{
		store: s,
		src:   src,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go a.run(ctx)
	return a
}

func (a *Autosaver) run(ctx context.Context) {
	defer close(a.done)

	ticker := time.NewTicker(a.store.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stop:
			return
		case <-ticker.C:
			f := a.src.Fields()
			if f.Empty() {
				continue
			}
			a.store.Persist(ctx, f)
			a.store.logger.Debug("draft: autosaved", slog.Int("contentLength", len(f.Content)))
		}
	}
}

// Stop cancels the timer and waits for the loop to exit.
// No write starts after Stop returns. Safe to call more than once.
func (a *Autosaver) Stop() {
	a.stopOnce.Do(func() { close(a.stop) })
	<-a.done
}
