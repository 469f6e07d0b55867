// ABOUTME: Session composition root wiring transport, sync state, dispatch, store and hides
// ABOUTME: Owns every component's lifetime through explicit Start and Close

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/threadsync/internal/auth"
	"github.com/2389/threadsync/internal/config"
	"github.com/2389/threadsync/internal/conn"
	"github.com/2389/threadsync/internal/dedupe"
	"github.com/2389/threadsync/internal/dispatch"
	"github.com/2389/threadsync/internal/events"
	"github.com/2389/threadsync/internal/hide"
	"github.com/2389/threadsync/internal/options"
	"github.com/2389/threadsync/internal/posts"
	"github.com/2389/threadsync/internal/protocol"
	"github.com/2389/threadsync/internal/push"
	"github.com/2389/threadsync/internal/store"
	"github.com/2389/threadsync/internal/syncstate"
)

// DefaultPruneDelay is how long after Start expired post markers are pruned.
const DefaultPruneDelay = 10 * time.Second

var (
	// ErrNotReady is returned by Send while the session is disconnected
	ErrNotReady = errors.New("session not connected")

	// ErrAlreadyStarted is returned by a second Start
	ErrAlreadyStarted = errors.New("session already started")

	// ErrNotStarted is returned by operations that need the store before Start
	ErrNotStarted = errors.New("session not started")
)

// Config holds session settings.
type Config struct {
	Origin            string
	SocketPath        string
	NotificationsPath string
	Token             string

	Board  string
	Thread uint64

	ReconnectInterval time.Duration
	HandshakeTimeout  time.Duration
	WriteTimeout      time.Duration
	ReadLimit         int64

	StorePath   string
	StoreDriver string

	Push       bool
	DedupeTTL  time.Duration
	DedupeSize int

	PruneDelay time.Duration
	Logger     *slog.Logger

	// Optional overrides. Dialer replaces the websocket dialer, Store
	// replaces the SQLite store opened from StorePath, HTTPClient is used
	// for the notification stream.
	Dialer     conn.Dialer
	Store      store.Store
	HTTPClient *http.Client
}

// FromConfig maps a loaded configuration file onto session settings.
func FromConfig(c *config.Config, logger *slog.Logger) Config {
	return Config{
		Origin:            c.Server.Origin,
		SocketPath:        c.Server.SocketPath,
		NotificationsPath: c.Server.NotificationsPath,
		Token:             c.Server.Token,
		Board:             c.Page.Board,
		Thread:            c.Page.Thread,
		ReconnectInterval: c.Connection.ReconnectInterval,
		HandshakeTimeout:  c.Connection.HandshakeTimeout,
		WriteTimeout:      c.Connection.WriteTimeout,
		ReadLimit:         c.Connection.ReadLimit,
		StorePath:         c.Store.Path,
		StoreDriver:       c.Store.Driver,
		Push:              c.Push.Enabled,
		DedupeTTL:         c.Push.DedupeTTL,
		DedupeSize:        c.Push.DedupeSize,
		Logger:            logger,
	}
}

// Session is one client view's live connection to the server.
type Session struct {
	cfg      Config
	logger   *slog.Logger
	clientID string

	conn     *conn.Manager
	sync     *syncstate.Machine
	dispatch *dispatch.Dispatcher
	index    *posts.Index
	opener   *store.Opener
	push     *push.Client
	seen     *dedupe.Cache[uint64]

	status        *events.Emitter[syncstate.Status]
	hiddenCount   *events.Emitter[int]
	notifications *events.Emitter[protocol.Notification]

	// Set by Start
	store store.Store
	hide  *hide.Propagator

	optsMu sync.RWMutex
	opts   options.Options

	mu        sync.Mutex
	started   bool
	closed    bool
	wasSynced bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New builds a session. Nothing touches the network or disk until Start.
func New(cfg Config) (*Session, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SocketPath == "" {
		cfg.SocketPath = "/api/socket"
	}
	if cfg.PruneDelay <= 0 {
		cfg.PruneDelay = DefaultPruneDelay
	}

	socketURL, err := conn.Endpoint(cfg.Origin, cfg.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("deriving socket endpoint: %w", err)
	}

	s := &Session{
		cfg:           cfg,
		clientID:      uuid.NewString(),
		sync:          syncstate.New(logger),
		dispatch:      dispatch.New(logger),
		index:         posts.NewIndex(),
		status:        events.NewEmitter[syncstate.Status]("sync_status", logger),
		hiddenCount:   events.NewEmitter[int]("hidden_count", logger),
		notifications: events.NewEmitter[protocol.Notification]("notification", logger),
		opts:          options.Defaults(),
	}
	s.logger = logger.With("component", "session", "client_id", s.clientID)

	dialer := cfg.Dialer
	if dialer == nil {
		dialer = &conn.WSDialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
			WriteTimeout:     cfg.WriteTimeout,
			ReadLimit:        cfg.ReadLimit,
			Token:            cfg.Token,
		}
	}
	s.conn = conn.NewManager(conn.Config{
		URL:               socketURL,
		Dialer:            dialer,
		ReconnectInterval: cfg.ReconnectInterval,
		Logger:            logger,
	})

	if cfg.Store == nil {
		driver := cfg.StoreDriver
		if driver == "" {
			driver = store.DriverModernc
		}
		s.opener = store.NewOpener(cfg.StorePath, driver, logger)
	}

	if cfg.Push {
		s.seen = dedupe.New[uint64](cfg.DedupeTTL, cfg.DedupeSize)
		s.push = push.NewClient(push.Config{
			URL:               strings.TrimSuffix(cfg.Origin, "/") + cfg.NotificationsPath,
			Token:             cfg.Token,
			ReconnectInterval: cfg.ReconnectInterval,
			HTTPClient:        cfg.HTTPClient,
			Dedupe:            s.seen,
			Logger:            logger,
		})
		s.push.OnNotification(s.notifications.Emit)
	}

	s.registerHandlers()
	s.sync.OnChange(s.onSyncChange)
	s.conn.Observe(conn.Handlers{
		OnOpen:    func() { s.sync.Open() },
		OnMessage: s.dispatch.HandleFrame,
		OnClose:   func(error) { s.sync.Close() },
	})

	return s, nil
}

// Start opens the store, loads options and hides, then connects. A store
// that cannot be opened is replaced by an in-memory one for this session.
// Token and option failures are returned and leave the session unstarted,
// so Start may be called again.
func (s *Session) Start(ctx context.Context) (err error) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	defer func() {
		if err != nil {
			s.mu.Lock()
			s.started = false
			s.mu.Unlock()
		}
	}()

	if err := s.checkToken(time.Now()); err != nil {
		return err
	}

	st := s.cfg.Store
	if st == nil {
		opened, err := s.opener.Open(ctx)
		if err != nil {
			s.logger.Warn("store unavailable, not persisting this session",
				"path", s.cfg.StorePath,
				"error", err,
			)
			st = store.NewMockStore()
		} else {
			st = opened
		}
	}
	s.store = st

	opts, err := options.Load(ctx, st, s.logger)
	if err != nil {
		return err
	}
	s.setOptions(opts)

	s.hide = hide.New(s.index, st, s.hideRecursively, s.logger)
	s.hide.OnCountChanged(s.hiddenCount.Emit)
	if err := s.hide.Load(ctx); err != nil {
		s.logger.Warn("hidden posts not restored", "error", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.conn.Run(runCtx)
	}()
	s.conn.Connect()

	if s.push != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.push.Run(runCtx)
		}()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.pruneAfter(runCtx, s.cfg.PruneDelay)
	}()

	s.logger.Info("session started",
		"board", s.cfg.Board,
		"thread", s.cfg.Thread,
		"push", s.push != nil,
	)
	return nil
}

func (s *Session) checkToken(now time.Time) error {
	if s.cfg.Token == "" {
		return nil
	}
	claims, err := auth.Inspect(s.cfg.Token, now)
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return fmt.Errorf("session token: %w", err)
	case err != nil:
		s.logger.Debug("token is not a JWT, sending as-is")
	default:
		s.logger.Info("authenticating", "subject", claims.Subject)
		if claims.ExpiresWithin(now, time.Hour) {
			s.logger.Warn("session token expires soon", "expires_at", claims.ExpiresAt)
		}
	}
	return nil
}

func (s *Session) pruneAfter(ctx context.Context, delay time.Duration) {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	n, err := s.store.PruneExpired(ctx, time.Now())
	if err != nil {
		s.logger.Warn("pruning expired post markers failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("pruned expired post markers", "count", n)
	}
}

// Close stops the connection and notification stream, reports the session
// as disconnected and releases the store if the session opened it.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	s.sync.Close()
	if s.seen != nil {
		s.seen.Close()
	}
	s.status.Close()
	s.hiddenCount.Close()
	s.notifications.Close()

	s.logger.Info("session closed")
	if s.opener != nil {
		return s.opener.Close()
	}
	return nil
}

func (s *Session) onSyncChange(c syncstate.Change) {
	s.status.Emit(c.To)

	switch c.To {
	case syncstate.Syncing:
		s.requestSync()
	case syncstate.Synced:
		s.mu.Lock()
		s.wasSynced = true
		s.mu.Unlock()
	}
}

// requestSync asks the server to stream the session's page. After a
// session has been synced once, the request carries the client ID so the
// server can resume.
func (s *Session) requestSync() {
	s.mu.Lock()
	resync := s.wasSynced
	s.mu.Unlock()

	req := protocol.SyncRequest{Board: s.cfg.Board, Thread: s.cfg.Thread}
	var err error
	if resync {
		err = s.Send(protocol.MessageResynchronise, protocol.ResyncRequest{SyncRequest: req, ID: s.clientID})
	} else {
		err = s.Send(protocol.MessageSynchronise, req)
	}
	if err != nil {
		// The close that follows a failed write drives the retry
		s.logger.Warn("sync request not sent", "resync", resync, "error", err)
	}
}

// Send encodes and writes one message. Only sync requests may be sent while
// the session is disconnected.
func (s *Session) Send(t protocol.MessageType, payload any) error {
	if t != protocol.MessageSynchronise && t != protocol.MessageResynchronise &&
		s.sync.Status() == syncstate.Disconnected {
		return ErrNotReady
	}
	frame, err := protocol.Encode(t, payload)
	if err != nil {
		return err
	}
	return s.conn.Send(frame)
}

// ClientID identifies this session to the server across reconnects.
func (s *Session) ClientID() string {
	return s.clientID
}

// Status returns the current sync status.
func (s *Session) Status() syncstate.Status {
	return s.sync.Status()
}

// OnStatusChanged registers fn to run synchronously on every sync status
// change.
func (s *Session) OnStatusChanged(fn func(syncstate.Status)) (cancel func()) {
	return s.status.Listen(fn)
}

// OnHiddenCountChanged registers fn to run synchronously with the number of
// user hides after every change.
func (s *Session) OnHiddenCountChanged(fn func(int)) (cancel func()) {
	return s.hiddenCount.Listen(fn)
}

// OnNotification registers fn for new-reply notifications from either the
// socket or the notification stream.
func (s *Session) OnNotification(fn func(protocol.Notification)) (cancel func()) {
	return s.notifications.Listen(fn)
}

// Posts exposes the loaded post index.
func (s *Session) Posts() *posts.Index {
	return s.index
}

// Hide hides a post and its dependents. A store failure is returned but the
// post stays hidden for this session.
func (s *Session) Hide(ctx context.Context, id uint64) error {
	if s.hide == nil {
		return ErrNotStarted
	}
	return s.hide.Hide(ctx, id)
}

// ClearHidden unhides everything, in memory and on disk.
func (s *Session) ClearHidden(ctx context.Context) error {
	if s.hide == nil {
		return ErrNotStarted
	}
	return s.hide.ClearHidden(ctx)
}

// IsHidden reports whether a post is hidden.
func (s *Session) IsHidden(id uint64) bool {
	return s.hide != nil && s.hide.IsHidden(id)
}

// HiddenCount returns the number of user hides.
func (s *Session) HiddenCount() int {
	if s.hide == nil {
		return 0
	}
	return s.hide.Count()
}

// Options returns a copy of the current settings.
func (s *Session) Options() options.Options {
	s.optsMu.RLock()
	defer s.optsMu.RUnlock()
	return s.opts
}

func (s *Session) setOptions(o options.Options) {
	s.optsMu.Lock()
	defer s.optsMu.Unlock()
	s.opts = o
}

func (s *Session) hideRecursively() bool {
	s.optsMu.RLock()
	defer s.optsMu.RUnlock()
	return s.opts.HideRecursively
}

// SetOption changes one setting and saves every setting. The change applies
// to this session even if saving fails; the save error is returned so the
// user can be told.
func (s *Session) SetOption(ctx context.Context, key, value string) error {
	if s.store == nil {
		return ErrNotStarted
	}
	o := s.Options()
	if err := o.Set(key, value); err != nil {
		return err
	}
	s.setOptions(o)
	return options.Save(ctx, s.store, o)
}

// CacheThread stores a thread view model.
func (s *Session) CacheThread(ctx context.Context, t *store.Thread) error {
	if s.store == nil {
		return ErrNotStarted
	}
	if t.CachedAt.IsZero() {
		t.CachedAt = time.Now()
	}
	return store.PutThread(ctx, s.store, t)
}

// CachedThread returns a cached thread view model or store.ErrNotFound.
func (s *Session) CachedThread(ctx context.Context, id uint64) (*store.Thread, error) {
	if s.store == nil {
		return nil, ErrNotStarted
	}
	return store.GetThread(ctx, s.store, id)
}

// CacheBoard stores a board listing.
func (s *Session) CacheBoard(ctx context.Context, b *store.Board) error {
	if s.store == nil {
		return ErrNotStarted
	}
	if b.CachedAt.IsZero() {
		b.CachedAt = time.Now()
	}
	return store.PutBoard(ctx, s.store, b)
}

// CachedBoard returns a cached board listing or store.ErrNotFound.
func (s *Session) CachedBoard(ctx context.Context, id string) (*store.Board, error) {
	if s.store == nil {
		return nil, ErrNotStarted
	}
	return store.GetBoard(ctx, s.store, id)
}
