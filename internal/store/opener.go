// ABOUTME: Memoized store opener shared by every component in a process
// ABOUTME: Concurrent Open calls share one pending open via singleflight

package store

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Opener hands out a single SQLiteStore per process. Callers that arrive
// while an open is in flight wait for it and receive the same handle. Only a
// successful open is cached, so a failed open may be retried.
type Opener struct {
	path   string
	driver string
	logger *slog.Logger

	group singleflight.Group
	mu    sync.Mutex
	store *SQLiteStore
}

// NewOpener creates an Opener for the database at path.
func NewOpener(path, driver string, logger *slog.Logger) *Opener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Opener{path: path, driver: driver, logger: logger}
}

// Open returns the shared store, opening it on first use.
func (o *Opener) Open(ctx context.Context) (*SQLiteStore, error) {
	o.mu.Lock()
	if o.store != nil {
		s := o.store
		o.mu.Unlock()
		return s, nil
	}
	o.mu.Unlock()

	v, err, shared := o.group.Do(o.path, func() (any, error) {
		return o.open(ctx)
	})
	if err != nil {
		o.logger.Error("opening store failed", "path", o.path, "error", err, "shared", shared)
		return nil, err
	}
	return v.(*SQLiteStore), nil
}

// open creates the store unless a previous flight already cached one
// between the caller's check and its flight starting.
func (o *Opener) open(ctx context.Context) (*SQLiteStore, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.store != nil {
		return o.store, nil
	}
	s, err := NewSQLiteStore(ctx, o.path, WithDriver(o.driver), WithLogger(o.logger))
	if err != nil {
		return nil, err
	}
	o.store = s
	return s, nil
}

// Close closes the shared store if it was opened.
func (o *Opener) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.store == nil {
		return nil
	}
	err := o.store.Close()
	o.store = nil
	return err
}
