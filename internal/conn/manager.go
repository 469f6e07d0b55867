// ABOUTME: Connection manager event loop with fixed-interval reconnect
// ABOUTME: Owns the live transport and fans lifecycle events out to observers

package conn

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultReconnectInterval is how often a disconnected manager redials.
const DefaultReconnectInterval = 5 * time.Second

// Handlers are lifecycle callbacks. Any field may be nil. They run on the
// manager's event loop and must not block on the manager itself.
type Handlers struct {
	OnOpen    func()
	OnMessage func(frame []byte)
	OnClose   func(err error)
}

// Config holds manager settings.
type Config struct {
	URL               string
	Dialer            Dialer
	ReconnectInterval time.Duration
	Logger            *slog.Logger
}

// ticker is the subset of *time.Ticker the loop needs.
type ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func newTimeTicker(d time.Duration) ticker {
	return timeTicker{t: time.NewTicker(d)}
}

type dialResult struct {
	transport Transport
	err       error
}

type frameEvent struct {
	gen   uint64
	frame []byte
}

type closeEvent struct {
	gen uint64
	err error
}

type observer struct {
	id uint64
	h  Handlers
}

// Manager owns one transport at a time and reconnects it indefinitely.
type Manager struct {
	url      string
	dialer   Dialer
	interval time.Duration
	logger   *slog.Logger

	newTicker func(time.Duration) ticker

	connectCh chan struct{}
	dialCh    chan dialResult
	frameCh   chan frameEvent
	closeCh   chan closeEvent
	done      chan struct{}
	runOnce   sync.Once

	mu         sync.Mutex
	observers  []observer
	nextID     uint64
	transport  Transport
	gen        uint64
	connecting bool
	retry      ticker
}

// NewManager creates a manager. Call Run to start its event loop.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.ReconnectInterval
	if interval <= 0 {
		interval = DefaultReconnectInterval
	}
	return &Manager{
		url:       cfg.URL,
		dialer:    cfg.Dialer,
		interval:  interval,
		logger:    logger.With("component", "conn"),
		newTicker: newTimeTicker,
		connectCh: make(chan struct{}, 1),
		dialCh:    make(chan dialResult),
		frameCh:   make(chan frameEvent),
		closeCh:   make(chan closeEvent),
		done:      make(chan struct{}),
	}
}

// Observe registers lifecycle handlers and returns a function that removes
// them. Observers run in registration order.
func (m *Manager) Observe(h Handlers) (cancel func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	m.observers = append(m.observers, observer{id: id, h: h})

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, o := range m.observers {
			if o.id == id {
				m.observers = append(m.observers[:i:i], m.observers[i+1:]...)
				return
			}
		}
	}
}

// Connect asks the loop to dial now. It is a no-op while connected or while
// a dial is already in flight.
func (m *Manager) Connect() {
	select {
	case m.connectCh <- struct{}{}:
	default:
	}
}

// Send writes one frame on the current transport.
func (m *Manager) Send(frame []byte) error {
	m.mu.Lock()
	t := m.transport
	m.mu.Unlock()

	if t == nil {
		return ErrNotConnected
	}
	if err := t.WriteMessage(frame); err != nil {
		return &TransportError{Op: "write", URL: m.url, Err: err}
	}
	return nil
}

// Drop closes the current transport. The close is reported to observers
// like any other close and the reconnect path runs.
func (m *Manager) Drop() {
	m.mu.Lock()
	t := m.transport
	m.mu.Unlock()

	if t != nil {
		t.Close()
	}
}

// Connected reports whether a transport is open.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transport != nil
}

// ReconnectPending reports whether the reconnect ticker is armed.
func (m *Manager) ReconnectPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retry != nil
}

// Run processes lifecycle events until ctx is done. It closes the current
// transport on exit. Run may only be called once.
func (m *Manager) Run(ctx context.Context) error {
	started := false
	m.runOnce.Do(func() { started = true })
	if !started {
		return ErrStopped
	}
	defer close(m.done)
	defer m.teardown()

	m.logger.Info("connection manager started", "url", m.url, "reconnect_interval", m.interval)

	for {
		var tick <-chan time.Time
		m.mu.Lock()
		if m.retry != nil {
			tick = m.retry.C()
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			m.logger.Info("connection manager stopping")
			return ctx.Err()

		case <-m.connectCh:
			m.startDial(ctx)

		case <-tick:
			m.logger.Debug("reconnect tick")
			m.startDial(ctx)

		case res := <-m.dialCh:
			m.handleDial(res)

		case ev := <-m.frameCh:
			if ev.gen != m.currentGen() {
				continue
			}
			for _, o := range m.snapshot() {
				if o.h.OnMessage != nil {
					o.h.OnMessage(ev.frame)
				}
			}

		case ev := <-m.closeCh:
			m.handleClose(ev)
		}
	}
}

func (m *Manager) startDial(ctx context.Context) {
	m.mu.Lock()
	if m.transport != nil || m.connecting {
		connected, connecting := m.transport != nil, m.connecting
		m.mu.Unlock()
		m.logger.Debug("skipping dial", "connected", connected, "connecting", connecting)
		return
	}
	m.connecting = true
	m.mu.Unlock()

	m.logger.Debug("dialing", "url", m.url)
	go func() {
		t, err := m.dialer.Dial(ctx, m.url)
		select {
		case m.dialCh <- dialResult{transport: t, err: err}:
		case <-m.done:
			if t != nil {
				t.Close()
			}
		}
	}()
}

func (m *Manager) handleDial(res dialResult) {
	m.mu.Lock()
	m.connecting = false
	if res.err != nil {
		m.mu.Unlock()
		m.logger.Warn("connect failed", "url", m.url, "error", res.err)
		m.armRetry()
		return
	}

	m.gen++
	gen := m.gen
	m.transport = res.transport
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	m.mu.Unlock()

	m.logger.Info("connected", "url", m.url)
	go m.readLoop(gen, res.transport)

	for _, o := range m.snapshot() {
		if o.h.OnOpen != nil {
			o.h.OnOpen()
		}
	}
}

func (m *Manager) handleClose(ev closeEvent) {
	m.mu.Lock()
	if ev.gen != m.gen || m.transport == nil {
		m.mu.Unlock()
		return
	}
	t := m.transport
	m.transport = nil
	m.mu.Unlock()

	t.Close()
	m.logger.Warn("connection closed", "url", m.url, "error", ev.err)

	for _, o := range m.snapshot() {
		if o.h.OnClose != nil {
			o.h.OnClose(ev.err)
		}
	}
	m.armRetry()
}

// armRetry starts the reconnect ticker unless one is already pending.
func (m *Manager) armRetry() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.retry != nil {
		return
	}
	m.retry = m.newTicker(m.interval)
	m.logger.Info("reconnect scheduled", "interval", m.interval)
}

func (m *Manager) readLoop(gen uint64, t Transport) {
	for {
		frame, err := t.ReadMessage()
		if err != nil {
			select {
			case m.closeCh <- closeEvent{gen: gen, err: &TransportError{Op: "read", URL: m.url, Err: err}}:
			case <-m.done:
			}
			return
		}
		select {
		case m.frameCh <- frameEvent{gen: gen, frame: frame}:
		case <-m.done:
			return
		}
	}
}

func (m *Manager) currentGen() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

func (m *Manager) snapshot() []observer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]observer(nil), m.observers...)
}

func (m *Manager) teardown() {
	m.mu.Lock()
	t := m.transport
	m.transport = nil
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	m.mu.Unlock()

	if t != nil {
		t.Close()
	}
}
