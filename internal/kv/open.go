package kv

import (
	"context"
	"fmt"
)

// Options selects and configures a backend by name: "file", "redis" or "memory".
type Options struct {
	Backend       string
	Dir           string
	RedisAddr     string
	RedisPassword string
	RedisPrefix   string
}

// Open builds the configured Store. The returned close function releases the
// backend's connection and is never nil.
func Open(ctx context.Context, opts Options) (Store, func() error, error) {
	noop := func() error { return nil }

	switch opts.Backend {
	case "", "file":
		s, err := NewFileStore(opts.Dir)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case "redis":
		s, err := NewRedisStore(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisPrefix)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case "memory":
		return NewMemory(), noop, nil
	}
	return nil, noop, fmt.Errorf("kv: unknown backend %q", opts.Backend)
}
