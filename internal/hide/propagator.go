// ABOUTME: Hidden post set with recursive propagation over the reply graph
// ABOUTME: Persists user hides to the store and reports the user hide count

package hide

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/2389/threadsync/internal/events"
	"github.com/2389/threadsync/internal/store"
)

// PostGraph is the read view of loaded posts the propagator walks, plus the
// hidden flag it owns.
type PostGraph interface {
	OP(id uint64) (uint64, bool)
	Backlinks(id uint64) []uint64 // posts replying to id
	Links(id uint64) []uint64     // posts id replies to
	Replies(op uint64) []uint64   // loaded thread members, root excluded
	SetHidden(id uint64, hidden bool) bool
	ClearHidden() int
}

// Propagator owns the HiddenSet. The set and the graph's hidden flags are
// only changed together, under one lock.
type Propagator struct {
	graph     PostGraph
	store     store.Store
	recursive func() bool

	mu         sync.Mutex
	hidden     map[uint64]struct{} // every hidden id, user and derived
	userHidden map[uint64]struct{} // ids the user hid directly

	count  *events.Emitter[int]
	logger *slog.Logger
}

// New creates a propagator. recursive is consulted on every walk so option
// changes take effect immediately; nil means never recurse through replies.
func New(graph PostGraph, s store.Store, recursive func() bool, logger *slog.Logger) *Propagator {
	if logger == nil {
		logger = slog.Default()
	}
	if recursive == nil {
		recursive = func() bool { return false }
	}
	return &Propagator{
		graph:      graph,
		store:      s,
		recursive:  recursive,
		hidden:     make(map[uint64]struct{}),
		userHidden: make(map[uint64]struct{}),
		count:      events.NewEmitter[int]("hidden_count", logger),
		logger:     logger.With("component", "hide"),
	}
}

// Load replaces the in-memory state with the user hides persisted in the
// store and recomputes dependent hides over the loaded graph.
func (p *Propagator) Load(ctx context.Context) error {
	markers, err := p.store.HiddenPosts(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.graph.ClearHidden()
	p.hidden = make(map[uint64]struct{})
	p.userHidden = make(map[uint64]struct{}, len(markers))
	for _, m := range markers {
		p.userHidden[m.ID] = struct{}{}
	}
	for _, m := range markers {
		p.propagate(m.ID)
	}
	n := len(p.userHidden)
	derived := len(p.hidden) - n
	p.mu.Unlock()

	p.logger.Info("loaded hidden posts", "user", n, "derived", derived)
	p.count.Emit(n)
	return nil
}

// Hide hides id and everything depending on it, persists the user hide and
// reports the new count. A store failure is returned but the in-memory hide
// stands. Hiding an id the user already hid is a no-op.
func (p *Propagator) Hide(ctx context.Context, id uint64) error {
	p.mu.Lock()
	if _, ok := p.userHidden[id]; ok {
		p.mu.Unlock()
		return nil
	}
	p.userHidden[id] = struct{}{}
	added := p.propagate(id)
	n := len(p.userHidden)
	op, _ := p.graph.OP(id)
	p.mu.Unlock()

	p.logger.Debug("hid post", "post_id", id, "newly_hidden", added)

	err := p.persist(ctx, id, op)
	if err != nil {
		p.logger.Warn("hide not persisted", "post_id", id, "error", err)
	}
	p.count.Emit(n)
	return err
}

func (p *Propagator) persist(ctx context.Context, id, op uint64) error {
	marker, err := p.store.GetPost(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		marker = &store.PostMarker{ID: id, OP: op}
	case err != nil:
		return err
	}
	if op != 0 {
		marker.OP = op
	}
	marker.Hidden = true
	return p.store.PutPost(ctx, marker)
}

// ClearHidden forgets every hide, unhides every loaded post and clears the
// persisted hides.
func (p *Propagator) ClearHidden(ctx context.Context) error {
	p.mu.Lock()
	p.hidden = make(map[uint64]struct{})
	p.userHidden = make(map[uint64]struct{})
	unhidden := p.graph.ClearHidden()
	p.mu.Unlock()

	p.logger.Info("cleared hidden posts", "unhidden", unhidden)
	p.count.Emit(0)
	return p.store.ClearHidden(ctx)
}

// Apply evaluates a newly loaded or newly linked post: it is hidden if the
// user hid it, if its thread is hidden, or (with recursive hiding) if it
// replies to a hidden post. Its dependents are then walked as usual. It
// reports whether id ends up hidden.
func (p *Propagator) Apply(id uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.userHidden[id]; ok || p.dependsOnHidden(id) {
		p.propagate(id)
		return true
	}
	_, ok := p.hidden[id]
	return ok
}

func (p *Propagator) dependsOnHidden(id uint64) bool {
	if op, ok := p.graph.OP(id); ok && op != id {
		if _, hidden := p.hidden[op]; hidden {
			return true
		}
	}
	if !p.recursive() {
		return false
	}
	for _, target := range p.graph.Links(id) {
		if _, hidden := p.hidden[target]; hidden {
			return true
		}
	}
	return false
}

// propagate hides root and walks its dependents. The root is always
// expanded so a post that was already hidden as a dependent still hides
// its own dependents when hidden directly. Callers hold p.mu.
func (p *Propagator) propagate(root uint64) int {
	added := 0
	mark := func(id uint64) bool {
		if _, ok := p.hidden[id]; ok {
			return false
		}
		p.hidden[id] = struct{}{}
		p.graph.SetHidden(id, true)
		added++
		return true
	}

	if _, ok := p.hidden[root]; !ok {
		p.hidden[root] = struct{}{}
		added++
	}
	// The root may have been hidden before it was loaded
	p.graph.SetHidden(root, true)

	recursive := p.recursive()
	pending := []uint64{root}
	for len(pending) > 0 {
		id := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		var next []uint64
		if recursive {
			next = append(next, p.graph.Backlinks(id)...)
		}
		if op, ok := p.graph.OP(id); ok && op == id {
			next = append(next, p.graph.Replies(id)...)
		}
		for _, dep := range next {
			if _, loaded := p.graph.OP(dep); !loaded {
				continue
			}
			if mark(dep) {
				pending = append(pending, dep)
			}
		}
	}
	return added
}

// IsHidden reports whether id is in the HiddenSet.
func (p *Propagator) IsHidden(id uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.hidden[id]
	return ok
}

// Count returns the number of user hides.
func (p *Propagator) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.userHidden)
}

// Hidden returns every hidden id in ascending order.
func (p *Propagator) Hidden() []uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]uint64, 0, len(p.hidden))
	for id := range p.hidden {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// OnCountChanged registers fn to run synchronously with the user hide count
// after every change. The returned function removes it.
func (p *Propagator) OnCountChanged(fn func(count int)) (cancel func()) {
	return p.count.Listen(fn)
}

// Counts exposes the count emitter for channel subscriptions.
func (p *Propagator) Counts() *events.Emitter[int] {
	return p.count
}
