// ABOUTME: Concurrency-safe in-memory post index with thread membership
// ABOUTME: Maintains links and backlinks so the hide propagator can walk the reply graph

package posts

import (
	"maps"
	"slices"
	"sync"
)

// Post is one loaded post.
type Post struct {
	ID        uint64
	OP        uint64
	Board     string
	Time      int64
	Body      string
	Subject   string            // thread roots only
	Links     map[uint64]uint64 // quoted post id -> its thread id
	Backlinks map[uint64]uint64 // quoting post id -> its thread id
	Editing   bool
	Hidden    bool
	Deleted   bool
	Banned    bool
	Spoilered bool
	HasImage  bool
	Locked    bool // thread roots only
}

// IsRoot reports whether p is a thread root.
func (p *Post) IsRoot() bool {
	return p.ID == p.OP
}

func (p *Post) clone() *Post {
	cp := *p
	cp.Links = maps.Clone(p.Links)
	cp.Backlinks = maps.Clone(p.Backlinks)
	return &cp
}

// Index is the set of currently loaded posts. It is safe for concurrent use.
type Index struct {
	mu      sync.RWMutex
	posts   map[uint64]*Post
	threads map[uint64]map[uint64]struct{} // op -> member ids, root included
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		posts:   make(map[uint64]*Post),
		threads: make(map[uint64]map[uint64]struct{}),
	}
}

// Insert adds or replaces a post. Backlinks already recorded for the post
// are kept, and the post is recorded as a backlink on every loaded post it
// links to. The hidden flag of a replaced post is preserved.
func (ix *Index) Insert(p *Post) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	np := p.clone()
	if old, ok := ix.posts[np.ID]; ok {
		if np.Backlinks == nil {
			np.Backlinks = make(map[uint64]uint64, len(old.Backlinks))
		}
		for by, op := range old.Backlinks {
			np.Backlinks[by] = op
		}
		np.Hidden = np.Hidden || old.Hidden
		if old.OP != np.OP {
			ix.removeMember(old.OP, old.ID)
		}
	}
	ix.posts[np.ID] = np

	members, ok := ix.threads[np.OP]
	if !ok {
		members = make(map[uint64]struct{})
		ix.threads[np.OP] = members
	}
	members[np.ID] = struct{}{}

	for target := range np.Links {
		if t, ok := ix.posts[target]; ok {
			if t.Backlinks == nil {
				t.Backlinks = make(map[uint64]uint64)
			}
			t.Backlinks[np.ID] = np.OP
		}
	}
}

func (ix *Index) removeMember(op, id uint64) {
	members := ix.threads[op]
	delete(members, id)
	if len(members) == 0 {
		delete(ix.threads, op)
	}
}

// Get returns a copy of the post.
func (ix *Index) Get(id uint64) (*Post, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	p, ok := ix.posts[id]
	if !ok {
		return nil, false
	}
	return p.clone(), true
}

// Exists reports whether id is loaded.
func (ix *Index) Exists(id uint64) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.posts[id]
	return ok
}

// OP returns the thread id of a loaded post.
func (ix *Index) OP(id uint64) (uint64, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	p, ok := ix.posts[id]
	if !ok {
		return 0, false
	}
	return p.OP, true
}

// Update applies fn to the stored post under the index lock. fn must not
// call back into the index.
func (ix *Index) Update(id uint64, fn func(p *Post)) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	p, ok := ix.posts[id]
	if !ok {
		return false
	}
	fn(p)
	return true
}

// AddBacklink records that post by (in thread byOP) quotes target. It
// returns false when target is not loaded.
func (ix *Index) AddBacklink(target, by, byOP uint64) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	p, ok := ix.posts[target]
	if !ok {
		return false
	}
	if p.Backlinks == nil {
		p.Backlinks = make(map[uint64]uint64)
	}
	p.Backlinks[by] = byOP
	if q, ok := ix.posts[by]; ok {
		if q.Links == nil {
			q.Links = make(map[uint64]uint64)
		}
		q.Links[target] = p.OP
	}
	return true
}

// Backlinks returns the ids of posts quoting id, in ascending order.
func (ix *Index) Backlinks(id uint64) []uint64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	p, ok := ix.posts[id]
	if !ok {
		return nil
	}
	return sortedKeys(p.Backlinks)
}

// Links returns the ids of posts id quotes, in ascending order.
func (ix *Index) Links(id uint64) []uint64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	p, ok := ix.posts[id]
	if !ok {
		return nil
	}
	return sortedKeys(p.Links)
}

// Replies returns the loaded posts of thread op, root excluded, in
// ascending order.
func (ix *Index) Replies(op uint64) []uint64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	members := ix.threads[op]
	ids := make([]uint64, 0, len(members))
	for id := range members {
		if id != op {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Delete marks a post deleted. Deleted posts stay in the index so replies
// to them keep their thread context.
func (ix *Index) Delete(id uint64) bool {
	return ix.Update(id, func(p *Post) { p.Deleted = true })
}

// SetHidden sets the hidden flag and reports whether it changed.
func (ix *Index) SetHidden(id uint64, hidden bool) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	p, ok := ix.posts[id]
	if !ok || p.Hidden == hidden {
		return false
	}
	p.Hidden = hidden
	return true
}

// ClearHidden unhides every loaded post and returns how many changed.
func (ix *Index) ClearHidden() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	n := 0
	for _, p := range ix.posts {
		if p.Hidden {
			p.Hidden = false
			n++
		}
	}
	return n
}

// Range calls fn with a copy of every post in ascending id order until fn
// returns false.
func (ix *Index) Range(fn func(p *Post) bool) {
	ix.mu.RLock()
	ids := make([]uint64, 0, len(ix.posts))
	for id := range ix.posts {
		ids = append(ids, id)
	}
	ix.mu.RUnlock()
	slices.Sort(ids)

	for _, id := range ids {
		p, ok := ix.Get(id)
		if !ok {
			continue
		}
		if !fn(p) {
			return
		}
	}
}

// Len returns the number of loaded posts.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.posts)
}

func sortedKeys(m map[uint64]uint64) []uint64 {
	return slices.Sorted(maps.Keys(m))
}
