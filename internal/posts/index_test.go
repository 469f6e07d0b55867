// ABOUTME: Tests for the in-memory post index
// ABOUTME: Covers thread membership, backlink bookkeeping and copy semantics

package posts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedThread(ix *Index) {
	ix.Insert(&Post{ID: 1, OP: 1, Subject: "root"})
	ix.Insert(&Post{ID: 2, OP: 1, Links: map[uint64]uint64{1: 1}})
	ix.Insert(&Post{ID: 3, OP: 1, Links: map[uint64]uint64{2: 1}})
	ix.Insert(&Post{ID: 10, OP: 10})
}

func TestInsert_RecordsMembershipAndBacklinks(t *testing.T) {
	ix := NewIndex()
	seedThread(ix)

	assert.Equal(t, 4, ix.Len())
	assert.Equal(t, []uint64{2, 3}, ix.Replies(1))
	assert.Empty(t, ix.Replies(10))
	assert.Empty(t, ix.Replies(99))

	assert.Equal(t, []uint64{2}, ix.Backlinks(1))
	assert.Equal(t, []uint64{3}, ix.Backlinks(2))
	assert.Equal(t, []uint64{1}, ix.Links(2))

	root, ok := ix.Get(1)
	require.True(t, ok)
	assert.True(t, root.IsRoot())

	op, ok := ix.OP(3)
	require.True(t, ok)
	assert.Equal(t, uint64(1), op)
}

func TestInsert_ReplaceKeepsBacklinksAndHidden(t *testing.T) {
	ix := NewIndex()
	seedThread(ix)
	require.True(t, ix.SetHidden(2, true))

	ix.Insert(&Post{ID: 2, OP: 1, Body: "edited"})

	p, ok := ix.Get(2)
	require.True(t, ok)
	assert.Equal(t, "edited", p.Body)
	assert.True(t, p.Hidden)
	assert.Equal(t, map[uint64]uint64{3: 1}, p.Backlinks)
}

func TestAddBacklink(t *testing.T) {
	ix := NewIndex()
	seedThread(ix)

	assert.True(t, ix.AddBacklink(10, 3, 1))
	assert.Equal(t, []uint64{3}, ix.Backlinks(10))
	assert.Equal(t, []uint64{2, 10}, ix.Links(3))

	assert.False(t, ix.AddBacklink(99, 3, 1), "target not loaded")
}

func TestGet_ReturnsCopy(t *testing.T) {
	ix := NewIndex()
	seedThread(ix)

	p, _ := ix.Get(1)
	p.Hidden = true
	p.Backlinks[42] = 1

	again, _ := ix.Get(1)
	assert.False(t, again.Hidden)
	assert.NotContains(t, again.Backlinks, uint64(42))
}

func TestDelete(t *testing.T) {
	ix := NewIndex()
	seedThread(ix)

	assert.True(t, ix.Delete(3))
	p, _ := ix.Get(3)
	assert.True(t, p.Deleted)
	assert.False(t, ix.Delete(99))
	assert.True(t, ix.Exists(3), "deleted posts stay indexed")
}

func TestHiddenFlags(t *testing.T) {
	ix := NewIndex()
	seedThread(ix)

	assert.True(t, ix.SetHidden(1, true))
	assert.False(t, ix.SetHidden(1, true), "unchanged")
	assert.False(t, ix.SetHidden(99, true), "not loaded")
	ix.SetHidden(2, true)

	assert.Equal(t, 2, ix.ClearHidden())
	ix.Range(func(p *Post) bool {
		assert.False(t, p.Hidden, "post %d", p.ID)
		return true
	})
}

func TestRange_OrderedAndStoppable(t *testing.T) {
	ix := NewIndex()
	seedThread(ix)

	var ids []uint64
	ix.Range(func(p *Post) bool {
		ids = append(ids, p.ID)
		return p.ID < 2
	})
	assert.Equal(t, []uint64{1, 2}, ids)
}

func TestUpdate(t *testing.T) {
	ix := NewIndex()
	seedThread(ix)

	assert.True(t, ix.Update(1, func(p *Post) { p.Locked = true }))
	p, _ := ix.Get(1)
	assert.True(t, p.Locked)
	assert.False(t, ix.Update(99, func(p *Post) {}))
}
