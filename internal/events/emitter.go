// ABOUTME: Generic in-memory emitter with synchronous listeners and channel subscribers
// ABOUTME: Used for sync status and hidden count notifications

package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// DefaultBufferSize is the channel buffer for each subscriber.
const DefaultBufferSize = 64

type listener[T any] struct {
	id uint64
	fn func(T)
}

// Emitter fans values of type T out to listeners and subscribers.
type Emitter[T any] struct {
	name string

	// emitMu serializes Emit so listeners see values in emission order
	emitMu sync.Mutex

	mu          sync.RWMutex
	listeners   []listener[T]
	nextID      uint64
	subscribers map[string]chan T
	closed      bool
	logger      *slog.Logger
}

// NewEmitter creates an emitter. name is used in log output. Pass nil
// logger for default.
func NewEmitter[T any](name string, logger *slog.Logger) *Emitter[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter[T]{
		name:        name,
		subscribers: make(map[string]chan T),
		logger:      logger.With("component", "events", "event", name),
	}
}

// Listen registers fn to be called synchronously for every emitted value.
// fn must not call Emit on the same emitter. The returned function removes
// the listener.
func (e *Emitter[T]) Listen(fn func(T)) (cancel func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	e.listeners = append(e.listeners, listener[T]{id: id, fn: fn})

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, l := range e.listeners {
			if l.id == id {
				e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
				return
			}
		}
	}
}

// Subscribe returns a channel receiving emitted values and its subscription
// ID. The channel is closed when ctx is cancelled or the emitter is closed.
// A buffer of zero or less uses DefaultBufferSize.
func (e *Emitter[T]) Subscribe(ctx context.Context, buffer int) (<-chan T, string) {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	subID := uuid.New().String()
	ch := make(chan T, buffer)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		close(ch)
		return ch, subID
	}
	e.subscribers[subID] = ch
	e.mu.Unlock()

	e.logger.Debug("subscriber added", "sub_id", subID)

	go func() {
		<-ctx.Done()
		e.Unsubscribe(subID)
	}()

	return ch, subID
}

// Unsubscribe removes a subscription and closes its channel.
func (e *Emitter[T]) Unsubscribe(subID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch, ok := e.subscribers[subID]
	if !ok {
		return
	}
	delete(e.subscribers, subID)
	close(ch)

	e.logger.Debug("subscriber removed", "sub_id", subID)
}

// Emit delivers v to every listener, then to every subscriber without
// blocking. Emitting on a closed emitter is a no-op.
func (e *Emitter[T]) Emit(v T) {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()

	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return
	}
	listeners := append([]listener[T](nil), e.listeners...)
	e.mu.RUnlock()

	for _, l := range listeners {
		l.fn(v)
	}

	// Sends happen under the read lock so Unsubscribe cannot close a channel
	// mid-send
	e.mu.RLock()
	defer e.mu.RUnlock()
	for subID, ch := range e.subscribers {
		select {
		case ch <- v:
		default:
			e.logger.Debug("dropped event for slow subscriber", "sub_id", subID)
		}
	}
}

// Close closes every subscriber channel and drops all listeners.
func (e *Emitter[T]) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true
	for subID, ch := range e.subscribers {
		close(ch)
		delete(e.subscribers, subID)
	}
	e.listeners = nil

	e.logger.Debug("emitter closed")
}
