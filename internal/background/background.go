// Package background manages the page background: a persisted choice, a random
// mode that picks a new image on every navigation, and the capability used to
// show it.
package background

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strconv"

	"github.com/sakif/poetry-studio/internal/kv"
)

const (
	KeyChoice = "background"
	KeyRandom = "isRandomBackground"

	// Random is the stored choice meaning "pick one each time".
	Random = "random"
)

// BuiltIn are the images shipped with the web assets.
var BuiltIn = []string{
	"/background1.jpg",
	"/background2.jpg",
	"/background3.jpg",
	"/background4.jpg",
	"/background5.jpg",
	"/background6.jpg",
	"/background7.jpg",
	"/background8.jpg",
	"/background9.jpg",
	"/background10.jpg",
}

// Applier shows a background. The presentation layer implements it; this
// package never touches presentation state directly.
type Applier interface {
	Apply(reference string)
}

// ApplierFunc adapts a function to Applier.
type ApplierFunc func(reference string)

func (f ApplierFunc) Apply(reference string) { f(reference) }

type Picker struct {
	store   kv.Store
	applier Applier
	options []string
	intn    func(n int) int
	logger  *slog.Logger
}

type Option func(*Picker)

// WithOptions replaces the pool random mode picks from.
func WithOptions(options []string) Option {
	return func(p *Picker) {
		if len(options) > 0 {
			p.options = options
		}
	}
}

// WithRand replaces the random index source.
func WithRand(intn func(n int) int) Option {
	return func(p *Picker) { p.intn = intn }
}

func NewPicker(store kv.Store, applier Applier, logger *slog.Logger, opts ...Option) *Picker {
	p := &Picker{
		store:   store,
		applier: applier,
		options: BuiltIn,
		intn:    rand.IntN,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Choice returns the stored choice, or Random when nothing was chosen yet.
func (p *Picker) Choice(ctx context.Context) string {
	v, err := p.store.Get(ctx, KeyChoice)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			p.logger.Debug("background: reading choice", slog.String("error", err.Error()))
		}
		return Random
	}
	if len(v) == 0 {
		return Random
	}
	return string(v)
}

// IsRandom reports whether random mode is on.
func (p *Picker) IsRandom(ctx context.Context) bool {
	v, err := p.store.Get(ctx, KeyRandom)
	if err != nil {
		return false
	}
	on, _ := strconv.ParseBool(string(v))
	return on
}

// Resolve returns the reference to show right now.
func (p *Picker) Resolve(ctx context.Context) string {
	choice := p.Choice(ctx)
	if p.IsRandom(ctx) || choice == Random {
		return p.pick()
	}
	return choice
}

// Choose persists reference (or Random) and applies it.
func (p *Picker) Choose(ctx context.Context, reference string) error {
	if reference == "" {
		reference = Random
	}
	if err := p.store.Set(ctx, KeyChoice, []byte(reference)); err != nil {
		return err
	}
	p.applier.Apply(p.Resolve(ctx))
	return nil
}

// SetRandom toggles random mode and applies the result.
func (p *Picker) SetRandom(ctx context.Context, on bool) error {
	if err := p.store.Set(ctx, KeyRandom, []byte(strconv.FormatBool(on))); err != nil {
		return err
	}
	p.applier.Apply(p.Resolve(ctx))
	return nil
}

// Navigated is called on every location change. In random mode a new image
// is applied each time.
func (p *Picker) Navigated(ctx context.Context) {
	p.applier.Apply(p.Resolve(ctx))
}

func (p *Picker) pick() string {
	return p.options[p.intn(len(p.options))]
}
