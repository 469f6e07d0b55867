// ABOUTME: Table-driven sync status state machine
// ABOUTME: Broadcasts every status change synchronously through an events.Emitter

package syncstate

import (
	"log/slog"
	"sync"

	"github.com/2389/threadsync/internal/events"
)

// Status is the session's belief about how current its local view is.
type Status uint8

const (
	Disconnected Status = iota
	Syncing
	Synced
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Syncing:
		return "syncing"
	case Synced:
		return "synced"
	default:
		return "unknown"
	}
}

// Event drives the machine.
type Event uint8

const (
	EventOpen     Event = iota // transport opened
	EventCaughtUp              // server acknowledged the sync request
	EventClose                 // transport closed or errored
)

func (e Event) String() string {
	switch e {
	case EventOpen:
		return "open"
	case EventCaughtUp:
		return "caughtUp"
	case EventClose:
		return "close"
	default:
		return "unknown"
	}
}

type transitionKey struct {
	from Status
	ev   Event
}

var transitions = map[transitionKey]Status{
	{Disconnected, EventOpen}: Syncing,
	{Syncing, EventCaughtUp}:  Synced,
	{Syncing, EventClose}:     Disconnected,
	{Synced, EventClose}:      Disconnected,
}

// Change describes one status transition.
type Change struct {
	From  Status
	To    Status
	Event Event
}

// Machine is a long-lived sync status machine. It has no terminal state.
type Machine struct {
	// feedMu serializes Feed so listeners observe transitions in order
	feedMu sync.Mutex

	mu      sync.RWMutex
	status  Status
	changes *events.Emitter[Change]
	logger  *slog.Logger
}

// New creates a machine in the Disconnected status. Pass nil logger for
// default.
func New(logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		status:  Disconnected,
		changes: events.NewEmitter[Change]("sync_status", logger),
		logger:  logger.With("component", "syncstate"),
	}
}

// Status returns the current status.
func (m *Machine) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Feed applies ev and reports whether the status changed. Listeners run
// synchronously before Feed returns and must not call Feed themselves.
func (m *Machine) Feed(ev Event) (Status, bool) {
	m.feedMu.Lock()
	defer m.feedMu.Unlock()

	m.mu.Lock()
	from := m.status
	to, ok := transitions[transitionKey{from, ev}]
	if !ok {
		m.mu.Unlock()
		m.logger.Debug("ignoring event", "status", from, "event", ev)
		return from, false
	}
	m.status = to
	m.mu.Unlock()

	m.logger.Info("sync status changed", "from", from, "to", to, "event", ev)
	m.changes.Emit(Change{From: from, To: to, Event: ev})
	return to, true
}

// Open feeds EventOpen.
func (m *Machine) Open() (Status, bool) { return m.Feed(EventOpen) }

// CaughtUp feeds EventCaughtUp.
func (m *Machine) CaughtUp() (Status, bool) { return m.Feed(EventCaughtUp) }

// Close feeds EventClose.
func (m *Machine) Close() (Status, bool) { return m.Feed(EventClose) }

// OnChange registers fn to run synchronously on every transition. The
// returned function removes it.
func (m *Machine) OnChange(fn func(Change)) (cancel func()) {
	return m.changes.Listen(fn)
}

// Changes exposes the underlying emitter for channel subscriptions.
func (m *Machine) Changes() *events.Emitter[Change] {
	return m.changes
}
