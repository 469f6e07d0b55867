// ABOUTME: Tests for MockStore behaviour parity with SQLiteStore
// ABOUTME: Covers failure injection and the hidden-subset clear

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockStore_FailWrites(t *testing.T) {
	ctx := context.Background()
	m := NewMockStore()
	quota := errors.New("quota exceeded")

	m.FailWrites(quota)
	err := m.PutPost(ctx, &PostMarker{ID: 1, Hidden: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, quota)

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, CollectionPosts, se.Collection)
	assert.Equal(t, "1", se.Key)

	assert.ErrorIs(t, m.Put(ctx, CollectionOptions, "x", []byte("1")), quota)
	assert.ErrorIs(t, m.ClearHidden(ctx), quota)

	// Reads keep working
	_, err = m.GetPost(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	m.FailWrites(nil)
	assert.NoError(t, m.PutPost(ctx, &PostMarker{ID: 1, Hidden: true}))
}

func TestMockStore_ClearHiddenAndPrune(t *testing.T) {
	ctx := context.Background()
	m := NewMockStore()
	now := time.Now()

	require.NoError(t, m.PutPost(ctx, &PostMarker{ID: 1, Hidden: true}))
	require.NoError(t, m.PutPost(ctx, &PostMarker{ID: 2, Hidden: true, Seen: true}))
	require.NoError(t, m.PutPost(ctx, &PostMarker{ID: 3, Mine: true, Expires: now.Add(-time.Minute)}))

	require.NoError(t, m.ClearHidden(ctx))
	hidden, err := m.HiddenPosts(ctx)
	require.NoError(t, err)
	assert.Empty(t, hidden)

	_, err = m.GetPost(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)
	p, err := m.GetPost(ctx, 2)
	require.NoError(t, err)
	assert.True(t, p.Seen)

	n, err := m.PruneExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMockStore_CopiesRecords(t *testing.T) {
	ctx := context.Background()
	m := NewMockStore()

	data := []byte(`"a"`)
	require.NoError(t, m.Put(ctx, CollectionBoards, "a", data))
	data[1] = 'z'

	got, err := m.Get(ctx, CollectionBoards, "a")
	require.NoError(t, err)
	assert.Equal(t, `"a"`, string(got))
}
