// ABOUTME: Store interface, collection names and record types for the local cache
// ABOUTME: Defines StoreError and the sentinel errors returned by every implementation

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// SchemaVersion is the collection layout this build expects. Opening a
// database written with a newer version fails with ErrBlocked.
const SchemaVersion = 2

// Collection names one independently keyed object collection.
type Collection string

const (
	CollectionOptions Collection = "options" // user settings, keyed by setting id
	CollectionPosts   Collection = "posts"   // per-post user markers, keyed by post id
	CollectionThreads Collection = "threads" // cached thread view models, keyed by thread id
	CollectionBoards  Collection = "boards"  // cached board listings, keyed by board id
)

// Collections lists every collection in schema order.
var Collections = []Collection{
	CollectionOptions,
	CollectionPosts,
	CollectionThreads,
	CollectionBoards,
}

// Valid reports whether c is one of the known collections.
func (c Collection) Valid() bool {
	for _, known := range Collections {
		if c == known {
			return true
		}
	}
	return false
}

var (
	// ErrNotFound is returned when a key does not exist in a collection
	ErrNotFound = errors.New("not found")

	// ErrBlocked is returned when the database was written by a newer schema
	// version than this build understands
	ErrBlocked = errors.New("database blocked by newer schema version")

	// ErrUnavailable is returned when the storage engine cannot be opened
	ErrUnavailable = errors.New("storage engine unavailable")

	// ErrUnknownCollection is returned for collection names outside the schema
	ErrUnknownCollection = errors.New("unknown collection")
)

// Error is the StoreError carried by every failed store operation. It records
// which operation failed and wraps the engine's failure reason.
type Error struct {
	Op         string
	Collection Collection
	Key        string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Collection == "":
		return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
	case e.Key == "":
		return fmt.Sprintf("store: %s %s: %v", e.Op, e.Collection, e.Err)
	default:
		return fmt.Sprintf("store: %s %s/%s: %v", e.Op, e.Collection, e.Key, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// PostMarker holds the user's local markers for one post. Only posts the user
// touched have a marker; derived (propagated) hides are never stored.
type PostMarker struct {
	ID      uint64    `json:"id"`
	OP      uint64    `json:"op"`
	Hidden  bool      `json:"hidden,omitempty"`
	Seen    bool      `json:"seen,omitempty"`
	Mine    bool      `json:"mine,omitempty"`
	Expires time.Time `json:"expires,omitzero"`
}

// Key returns the marker's primary key in the posts collection.
func (m *PostMarker) Key() string {
	return PostKey(m.ID)
}

// Empty reports whether the marker no longer carries any flag.
func (m *PostMarker) Empty() bool {
	return !m.Hidden && !m.Seen && !m.Mine
}

// PostKey formats a post ID as a posts collection key.
func PostKey(id uint64) string {
	return strconv.FormatUint(id, 10)
}

// Store is the persistent object store shared by every component that needs
// durability. Operations on the same key must be serialized by the caller.
type Store interface {
	// Generic collection access. Records are opaque JSON documents.
	Get(ctx context.Context, c Collection, key string) ([]byte, error)
	Put(ctx context.Context, c Collection, key string, data []byte) error
	Delete(ctx context.Context, c Collection, key string) error
	Clear(ctx context.Context, c Collection) error
	Keys(ctx context.Context, c Collection) ([]string, error)

	// Post markers
	PutPost(ctx context.Context, marker *PostMarker) error
	GetPost(ctx context.Context, id uint64) (*PostMarker, error)
	HiddenPosts(ctx context.Context) ([]*PostMarker, error)
	ClearHidden(ctx context.Context) error
	PruneExpired(ctx context.Context, now time.Time) (int64, error)

	Version() int
	Close() error
}

// PutJSON marshals v and stores it under key.
func PutJSON(ctx context.Context, s Store, c Collection, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return &Error{Op: "put", Collection: c, Key: key, Err: fmt.Errorf("encoding record: %w", err)}
	}
	return s.Put(ctx, c, key, data)
}

// GetJSON loads the record under key into v.
func GetJSON(ctx context.Context, s Store, c Collection, key string, v any) error {
	data, err := s.Get(ctx, c, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &Error{Op: "get", Collection: c, Key: key, Err: fmt.Errorf("decoding record: %w", err)}
	}
	return nil
}

// Thread is a cached thread view model.
type Thread struct {
	ID        uint64          `json:"id"`
	Board     string          `json:"board"`
	Subject   string          `json:"subject,omitempty"`
	Locked    bool            `json:"locked,omitempty"`
	PostCount int             `json:"postCount"`
	Posts     json.RawMessage `json:"posts,omitempty"`
	CachedAt  time.Time       `json:"cachedAt"`
}

// Board is a cached board listing.
type Board struct {
	ID       string    `json:"id"`
	Title    string    `json:"title,omitempty"`
	Threads  []uint64  `json:"threads"`
	CachedAt time.Time `json:"cachedAt"`
}

// PutThread caches a thread view model.
func PutThread(ctx context.Context, s Store, t *Thread) error {
	return PutJSON(ctx, s, CollectionThreads, PostKey(t.ID), t)
}

// GetThread returns a cached thread or ErrNotFound.
func GetThread(ctx context.Context, s Store, id uint64) (*Thread, error) {
	var t Thread
	if err := GetJSON(ctx, s, CollectionThreads, PostKey(id), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// PutBoard caches a board listing.
func PutBoard(ctx context.Context, s Store, b *Board) error {
	return PutJSON(ctx, s, CollectionBoards, b.ID, b)
}

// GetBoard returns a cached board listing or ErrNotFound.
func GetBoard(ctx context.Context, s Store, id string) (*Board, error) {
	var b Board
	if err := GetJSON(ctx, s, CollectionBoards, id, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// PutOption stores one user setting as raw JSON.
func PutOption(ctx context.Context, s Store, id string, value json.RawMessage) error {
	return s.Put(ctx, CollectionOptions, id, value)
}

// GetOption returns one user setting or ErrNotFound.
func GetOption(ctx context.Context, s Store, id string) (json.RawMessage, error) {
	return s.Get(ctx, CollectionOptions, id)
}

// ListOptions returns every stored setting keyed by id.
func ListOptions(ctx context.Context, s Store) (map[string]json.RawMessage, error) {
	keys, err := s.Keys(ctx, CollectionOptions)
	if err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(keys))
	for _, key := range keys {
		value, err := s.Get(ctx, CollectionOptions, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[key] = value
	}
	return out, nil
}
