// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite and to inject engine failures

package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu          sync.RWMutex
	collections map[Collection]map[string][]byte
	posts       map[uint64]*PostMarker
	failErr     error // returned by every write while set
	closed      bool
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	m := &MockStore{
		collections: make(map[Collection]map[string][]byte),
		posts:       make(map[uint64]*PostMarker),
	}
	for _, c := range Collections {
		if c != CollectionPosts {
			m.collections[c] = make(map[string][]byte)
		}
	}
	return m
}

// FailWrites makes every subsequent write return err wrapped in a StoreError.
// Pass nil to restore normal behaviour.
func (m *MockStore) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

func (m *MockStore) writeErr(op string, c Collection, key string) error {
	if m.failErr != nil {
		return &Error{Op: op, Collection: c, Key: key, Err: m.failErr}
	}
	return nil
}

// Get returns a copy of the record stored under key.
func (m *MockStore) Get(ctx context.Context, c Collection, key string) ([]byte, error) {
	if !c.Valid() {
		return nil, &Error{Op: "get", Collection: c, Key: key, Err: ErrUnknownCollection}
	}
	if c == CollectionPosts {
		id, err := parsePostKey(key)
		if err != nil {
			return nil, &Error{Op: "get", Collection: c, Key: key, Err: err}
		}
		p, err := m.GetPost(ctx, id)
		if err != nil {
			return nil, err
		}
		return json.Marshal(p)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.collections[c][key]
	if !ok {
		return nil, &Error{Op: "get", Collection: c, Key: key, Err: ErrNotFound}
	}
	return append([]byte(nil), data...), nil
}

// Put stores a copy of data under key.
func (m *MockStore) Put(ctx context.Context, c Collection, key string, data []byte) error {
	if !c.Valid() {
		return &Error{Op: "put", Collection: c, Key: key, Err: ErrUnknownCollection}
	}
	if c == CollectionPosts {
		var p PostMarker
		if err := json.Unmarshal(data, &p); err != nil {
			return &Error{Op: "put", Collection: c, Key: key, Err: err}
		}
		return m.PutPost(ctx, &p)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writeErr("put", c, key); err != nil {
		return err
	}
	m.collections[c][key] = append([]byte(nil), data...)
	return nil
}

// Delete removes key.
func (m *MockStore) Delete(ctx context.Context, c Collection, key string) error {
	if !c.Valid() {
		return &Error{Op: "delete", Collection: c, Key: key, Err: ErrUnknownCollection}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writeErr("delete", c, key); err != nil {
		return err
	}
	if c == CollectionPosts {
		id, err := parsePostKey(key)
		if err != nil {
			return &Error{Op: "delete", Collection: c, Key: key, Err: err}
		}
		delete(m.posts, id)
		return nil
	}
	delete(m.collections[c], key)
	return nil
}

// Keys lists every key in c in ascending order.
func (m *MockStore) Keys(ctx context.Context, c Collection) ([]string, error) {
	if !c.Valid() {
		return nil, &Error{Op: "keys", Collection: c, Err: ErrUnknownCollection}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	if c == CollectionPosts {
		ids := make([]uint64, 0, len(m.posts))
		for id := range m.posts {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			keys = append(keys, PostKey(id))
		}
		return keys, nil
	}
	for key := range m.collections[c] {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Clear removes every record in c.
func (m *MockStore) Clear(ctx context.Context, c Collection) error {
	if !c.Valid() {
		return &Error{Op: "clear", Collection: c, Err: ErrUnknownCollection}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writeErr("clear", c, ""); err != nil {
		return err
	}
	if c == CollectionPosts {
		m.posts = make(map[uint64]*PostMarker)
		return nil
	}
	m.collections[c] = make(map[string][]byte)
	return nil
}

// PutPost stores a copy of the marker.
func (m *MockStore) PutPost(ctx context.Context, marker *PostMarker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writeErr("put", CollectionPosts, marker.Key()); err != nil {
		return err
	}
	p := *marker
	m.posts[p.ID] = &p
	return nil
}

// GetPost returns a copy of the marker for id.
func (m *MockStore) GetPost(ctx context.Context, id uint64) (*PostMarker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, &Error{Op: "get", Collection: CollectionPosts, Key: PostKey(id), Err: ErrNotFound}
	}
	cp := *p
	return &cp, nil
}

// HiddenPosts returns copies of every hidden marker ordered by ID.
func (m *MockStore) HiddenPosts(ctx context.Context) ([]*PostMarker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*PostMarker
	for _, p := range m.posts {
		if p.Hidden {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ClearHidden drops the hidden flag, deleting markers left empty.
func (m *MockStore) ClearHidden(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writeErr("clear hidden", CollectionPosts, ""); err != nil {
		return err
	}
	for id, p := range m.posts {
		if !p.Hidden {
			continue
		}
		p.Hidden = false
		if p.Empty() {
			delete(m.posts, id)
		}
	}
	return nil
}

// PruneExpired deletes markers expiring at or before now.
func (m *MockStore) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writeErr("prune", CollectionPosts, ""); err != nil {
		return 0, err
	}
	var n int64
	for id, p := range m.posts {
		if !p.Expires.IsZero() && !p.Expires.After(now) {
			delete(m.posts, id)
			n++
		}
	}
	return n, nil
}

// Version always reports the current schema version.
func (m *MockStore) Version() int {
	return SchemaVersion
}

// Close marks the store closed.
func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
