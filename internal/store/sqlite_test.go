// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Covers schema versioning, collection CRUD, post markers and the shared opener

package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "cache.db")

	s, err := NewSQLiteStore(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
	if s.Version() != SchemaVersion {
		t.Errorf("Version() = %d, want %d", s.Version(), SchemaVersion)
	}
}

func TestNewSQLiteStore_UnknownDriver(t *testing.T) {
	_, err := NewSQLiteStore(context.Background(), ":memory:", WithDriver("no-such-driver"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "open", se.Op)
}

func TestReopenSameVersion_KeepsData(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "cache.db")

	first, err := NewSQLiteStore(ctx, dbPath)
	require.NoError(t, err)
	require.NoError(t, first.Put(ctx, CollectionOptions, "theme", []byte(`"moe"`)))
	require.NoError(t, first.Put(ctx, CollectionBoards, "a", []byte(`{"id":"a"}`)))
	require.NoError(t, first.PutPost(ctx, &PostMarker{ID: 12, OP: 10, Hidden: true}))
	require.NoError(t, first.Close())

	second, err := NewSQLiteStore(ctx, dbPath)
	require.NoError(t, err)
	defer second.Close()

	got, err := second.Get(ctx, CollectionOptions, "theme")
	require.NoError(t, err)
	assert.Equal(t, `"moe"`, string(got))

	got, err = second.Get(ctx, CollectionBoards, "a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"a"}`, string(got))

	hidden, err := second.HiddenPosts(ctx)
	require.NoError(t, err)
	require.Len(t, hidden, 1)
	assert.Equal(t, uint64(12), hidden[0].ID)
}

func TestUpgrade_CreatesMissingCollectionsOnly(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "cache.db")

	// Hand-build a version 1 database with one option in it
	db, err := sql.Open(DriverModernc, dbPath)
	require.NoError(t, err)
	_, err = db.Exec(migrations[0])
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO options (id, data, updated_at) VALUES ('spoilers', 'true', '2024-01-01T00:00:00Z')`)
	require.NoError(t, err)
	_, err = db.Exec(`PRAGMA user_version = 1`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := NewSQLiteStore(ctx, dbPath)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, SchemaVersion, s.Version())

	got, err := s.Get(ctx, CollectionOptions, "spoilers")
	require.NoError(t, err)
	assert.Equal(t, "true", string(got))

	require.NoError(t, s.Put(ctx, CollectionThreads, "5", []byte(`{"id":5}`)))
	_, err = s.Get(ctx, CollectionThreads, "5")
	assert.NoError(t, err)
}

func TestOpen_NewerVersionIsBlocked(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")

	db, err := sql.Open(DriverModernc, dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`PRAGMA user_version = 99`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = NewSQLiteStore(context.Background(), dbPath)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBlocked)
}

func TestCollectionCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, c := range []Collection{CollectionOptions, CollectionThreads, CollectionBoards} {
		t.Run(string(c), func(t *testing.T) {
			_, err := s.Get(ctx, c, "k")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Put(ctx, c, "k", []byte(`1`)))
			require.NoError(t, s.Put(ctx, c, "k", []byte(`2`)))
			require.NoError(t, s.Put(ctx, c, "other", []byte(`3`)))

			got, err := s.Get(ctx, c, "k")
			require.NoError(t, err)
			assert.Equal(t, "2", string(got))

			require.NoError(t, s.Delete(ctx, c, "k"))
			_, err = s.Get(ctx, c, "k")
			assert.ErrorIs(t, err, ErrNotFound)

			// Deleting a missing key is fine
			require.NoError(t, s.Delete(ctx, c, "k"))

			require.NoError(t, s.Clear(ctx, c))
			_, err = s.Get(ctx, c, "other")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestUnknownCollection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "users", "1")
	assert.ErrorIs(t, err, ErrUnknownCollection)
	assert.ErrorIs(t, s.Put(ctx, "users", "1", nil), ErrUnknownCollection)
	assert.ErrorIs(t, s.Delete(ctx, "users", "1"), ErrUnknownCollection)
	assert.ErrorIs(t, s.Clear(ctx, "users"), ErrUnknownCollection)
}

func TestPostMarkers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutPost(ctx, &PostMarker{ID: 1, OP: 1, Hidden: true}))
	require.NoError(t, s.PutPost(ctx, &PostMarker{ID: 2, OP: 1, Hidden: true, Mine: true}))
	require.NoError(t, s.PutPost(ctx, &PostMarker{ID: 3, OP: 1, Seen: true}))

	got, err := s.GetPost(ctx, 2)
	require.NoError(t, err)
	assert.True(t, got.Hidden)
	assert.True(t, got.Mine)
	assert.Equal(t, uint64(1), got.OP)

	// Generic access goes through the same rows
	raw, err := s.Get(ctx, CollectionPosts, "3")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":3,"op":1,"seen":true}`, string(raw))

	require.NoError(t, s.Put(ctx, CollectionPosts, "4", []byte(`{"id":4,"op":1,"hidden":true}`)))

	hidden, err := s.HiddenPosts(ctx)
	require.NoError(t, err)
	var ids []uint64
	for _, m := range hidden {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []uint64{1, 2, 4}, ids)

	_, err = s.Get(ctx, CollectionPosts, "not-a-number")
	assert.Error(t, err)
}

func TestClearHidden_KeepsOtherMarkers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutPost(ctx, &PostMarker{ID: 1, Hidden: true}))
	require.NoError(t, s.PutPost(ctx, &PostMarker{ID: 2, Hidden: true, Mine: true}))
	require.NoError(t, s.PutPost(ctx, &PostMarker{ID: 3, Seen: true}))

	require.NoError(t, s.ClearHidden(ctx))

	hidden, err := s.HiddenPosts(ctx)
	require.NoError(t, err)
	assert.Empty(t, hidden)

	_, err = s.GetPost(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	mine, err := s.GetPost(ctx, 2)
	require.NoError(t, err)
	assert.True(t, mine.Mine)
	assert.False(t, mine.Hidden)

	seen, err := s.GetPost(ctx, 3)
	require.NoError(t, err)
	assert.True(t, seen.Seen)
}

func TestPruneExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.PutPost(ctx, &PostMarker{ID: 1, Seen: true, Expires: now.Add(-time.Hour)}))
	require.NoError(t, s.PutPost(ctx, &PostMarker{ID: 2, Seen: true, Expires: now.Add(time.Hour)}))
	require.NoError(t, s.PutPost(ctx, &PostMarker{ID: 3, Hidden: true}))

	n, err := s.PruneExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.GetPost(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	kept, err := s.GetPost(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour).UnixMilli(), kept.Expires.UnixMilli())

	_, err = s.GetPost(ctx, 3)
	assert.NoError(t, err)
}

func TestOpener_SharesOneHandle(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	opener := NewOpener(dbPath, DriverModernc, nil)
	defer opener.Close()

	ctx := context.Background()
	const callers = 8
	handles := make([]*SQLiteStore, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := opener.Open(ctx)
			assert.NoError(t, err)
			handles[i] = s
		}()
	}
	wg.Wait()

	require.NotNil(t, handles[0])
	for i := 1; i < callers; i++ {
		assert.Same(t, handles[0], handles[i])
	}
}

func TestOpener_LateFlightReusesCachedHandle(t *testing.T) {
	opener := NewOpener(filepath.Join(t.TempDir(), "cache.db"), DriverModernc, nil)
	defer opener.Close()

	first, err := opener.Open(context.Background())
	require.NoError(t, err)

	// A caller that missed the cache before the first flight finished
	// starts its own flight; it must not open a second handle.
	late, err := opener.open(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, late)
}

func TestOpener_RetriesAfterFailure(t *testing.T) {
	opener := NewOpener(":memory:", "no-such-driver", nil)
	_, err := opener.Open(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)

	opener.driver = DriverModernc
	s, err := opener.Open(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, s)
	require.NoError(t, opener.Close())
}
