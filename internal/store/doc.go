// Package store provides the local persistent cache using SQLite.
//
// # Collections
//
// The store holds four independently keyed collections:
//
//   - options: user settings, keyed by setting id
//   - posts: per-post user markers (hidden, seen, mine), keyed by post id
//   - threads: cached thread view models, keyed by thread id
//   - boards: cached board listings, keyed by board id
//
// Every collection supports Get, Put (upsert by key), Delete and Clear.
// The posts collection is stored in typed columns so the hidden subset can be
// cleared and expired markers pruned without touching other keys.
//
// # Schema Versions
//
// The schema version lives in PRAGMA user_version. Opening an older database
// applies the missing migrations, each of which only creates collections that
// are absent. Opening a database written by a newer build fails with
// ErrBlocked. Opening at the same version changes nothing.
//
// # Sharing
//
// Use an Opener to share one handle per process:
//
//	opener := store.NewOpener(path, store.DriverModernc, logger)
//	s, err := opener.Open(ctx)
//
// The store does no locking of its own beyond the single database
// connection. Operations against the same key must be serialized by the
// caller.
//
// # Error Handling
//
// Every failure is a *Error (the StoreError) wrapping the engine's reason.
// Use errors.Is with ErrNotFound, ErrBlocked, ErrUnavailable and
// ErrUnknownCollection to classify.
//
// # Testing
//
// Use NewMockStore() for unit tests; FailWrites injects engine failures.
// Use NewSQLiteStore(ctx, ":memory:") for integration tests with real SQLite.
package store
