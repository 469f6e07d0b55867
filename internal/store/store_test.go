// ABOUTME: Tests for store helpers shared by every implementation
// ABOUTME: Covers StoreError formatting and JSON record helpers

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*MockStore)(nil)
)

func TestError_FormatsAndUnwraps(t *testing.T) {
	err := &Error{Op: "get", Collection: CollectionBoards, Key: "a", Err: ErrNotFound}
	assert.Equal(t, "store: get boards/a: not found", err.Error())
	assert.True(t, errors.Is(err, ErrNotFound))

	var se *Error
	require.True(t, errors.As(error(err), &se))
	assert.Equal(t, "get", se.Op)

	noKey := &Error{Op: "clear", Collection: CollectionPosts, Err: errors.New("boom")}
	assert.Equal(t, "store: clear posts: boom", noKey.Error())

	bare := &Error{Op: "open", Err: ErrUnavailable}
	assert.Equal(t, "store: open: storage engine unavailable", bare.Error())
}

func TestCollection_Valid(t *testing.T) {
	for _, c := range Collections {
		assert.True(t, c.Valid(), c)
	}
	assert.False(t, Collection("users").Valid())
}

func TestThreadAndBoardHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewMockStore()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, PutThread(ctx, s, &Thread{ID: 7, Board: "a", Subject: "hi", PostCount: 3, CachedAt: now}))
	require.NoError(t, PutBoard(ctx, s, &Board{ID: "a", Title: "Animu", Threads: []uint64{7, 9}, CachedAt: now}))

	th, err := GetThread(ctx, s, 7)
	require.NoError(t, err)
	assert.Equal(t, "hi", th.Subject)
	assert.Equal(t, 3, th.PostCount)
	assert.True(t, now.Equal(th.CachedAt))

	b, err := GetBoard(ctx, s, "a")
	require.NoError(t, err)
	assert.Equal(t, []uint64{7, 9}, b.Threads)

	_, err = GetThread(ctx, s, 8)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetJSON_CorruptRecord(t *testing.T) {
	ctx := context.Background()
	s := NewMockStore()
	require.NoError(t, s.Put(ctx, CollectionOptions, "theme", []byte("{not json")))

	var v map[string]any
	err := GetJSON(ctx, s, CollectionOptions, "theme", &v)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "get", se.Op)
}

func TestOptionHelpers(t *testing.T) {
	ctx := context.Background()

	stores := map[string]Store{
		"mock":   NewMockStore(),
		"sqlite": newTestStore(t),
	}
	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, PutOption(ctx, s, "theme", []byte(`"ashita"`)))
			require.NoError(t, PutOption(ctx, s, "lastN", []byte(`50`)))

			got, err := GetOption(ctx, s, "theme")
			require.NoError(t, err)
			assert.Equal(t, `"ashita"`, string(got))

			_, err = GetOption(ctx, s, "lang")
			assert.ErrorIs(t, err, ErrNotFound)

			all, err := ListOptions(ctx, s)
			require.NoError(t, err)
			assert.Len(t, all, 2)
			assert.Equal(t, `50`, string(all["lastN"]))

			keys, err := s.Keys(ctx, CollectionOptions)
			require.NoError(t, err)
			assert.Equal(t, []string{"lastN", "theme"}, keys)
		})
	}
}

func TestKeys_Posts(t *testing.T) {
	ctx := context.Background()

	for name, s := range map[string]Store{"mock": NewMockStore(), "sqlite": newTestStore(t)} {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.PutPost(ctx, &PostMarker{ID: 20, Seen: true}))
			require.NoError(t, s.PutPost(ctx, &PostMarker{ID: 3, Hidden: true}))

			keys, err := s.Keys(ctx, CollectionPosts)
			require.NoError(t, err)
			assert.Equal(t, []string{"3", "20"}, keys)

			_, err = s.Keys(ctx, "users")
			assert.ErrorIs(t, err, ErrUnknownCollection)
		})
	}
}
