// ABOUTME: Routes decoded websocket messages to one handler per type code.
// ABOUTME: Unknown or malformed frames are logged and dropped, never fatal.

package dispatch

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/2389/threadsync/internal/protocol"
)

// Handler processes one decoded message.
type Handler func(msg protocol.Message) error

// Dispatcher maps message types to handlers. At most one handler is
// registered per type; registering again replaces the previous handler.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[protocol.MessageType]Handler
	logger   *slog.Logger
	dropped  atomic.Uint64
}

// New creates a Dispatcher. Pass nil logger for default.
func New(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		handlers: make(map[protocol.MessageType]Handler),
		logger:   logger.With("component", "dispatch"),
	}
}

// Register sets the handler for t, replacing any previous one. A nil
// handler removes the registration.
func (d *Dispatcher) Register(t protocol.MessageType, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if h == nil {
		delete(d.handlers, t)
		return
	}
	if _, replaced := d.handlers[t]; replaced {
		d.logger.Debug("replacing handler", "type", t)
	}
	d.handlers[t] = h
}

// Dispatch invokes the handler registered for msg.Type. Messages without a
// handler are a no-op. A panicking handler is recovered and reported as an
// error so one bad payload cannot take down the read loop.
func (d *Dispatcher) Dispatch(msg protocol.Message) (err error) {
	d.mu.RLock()
	h, ok := d.handlers[msg.Type]
	d.mu.RUnlock()

	if !ok {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler for %s panicked: %v", msg.Type, r)
		}
	}()
	return h(msg)
}

// HandleFrame decodes a raw frame and dispatches every message in it, in
// frame order. Decode and handler failures are logged, not returned.
func (d *Dispatcher) HandleFrame(frame []byte) {
	msgs, err := protocol.Decode(frame)
	if err != nil {
		d.dropped.Add(1)
		d.logger.Warn("dropping undecodable frame part", "error", err)
	}

	for _, msg := range msgs {
		if err := d.Dispatch(msg); err != nil {
			d.logger.Warn("message handler failed",
				"type", msg.Type,
				"error", err,
			)
		}
	}
}

// Dropped returns how many frames had at least one part dropped.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}
