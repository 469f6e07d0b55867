// ABOUTME: Server-sent event client for new-reply notifications
// ABOUTME: Reconnects at a fixed interval and drops replayed notifications

package push

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/2389/threadsync/internal/dedupe"
	"github.com/2389/threadsync/internal/events"
	"github.com/2389/threadsync/internal/protocol"
)

// EventNotification is the SSE event name carrying a notification. Events
// without a name are treated the same way.
const EventNotification = "notification"

// Config holds client settings.
type Config struct {
	URL               string
	Token             string
	ReconnectInterval time.Duration
	HTTPClient        *http.Client
	Dedupe            *dedupe.Cache[uint64] // nil disables suppression
	Logger            *slog.Logger
}

// Client streams notifications until its context ends.
type Client struct {
	url      string
	token    string
	interval time.Duration
	http     *http.Client
	seen     *dedupe.Cache[uint64]
	logger   *slog.Logger

	notifications *events.Emitter[protocol.Notification]

	mu          sync.Mutex
	lastEventID string
}

// NewClient creates a client. Call Run to start streaming.
func NewClient(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.ReconnectInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		url:           cfg.URL,
		token:         cfg.Token,
		interval:      interval,
		http:          httpClient,
		seen:          cfg.Dedupe,
		logger:        logger.With("component", "push"),
		notifications: events.NewEmitter[protocol.Notification]("notification", logger),
	}
}

// OnNotification registers fn for every new notification. The returned
// function removes it.
func (c *Client) OnNotification(fn func(protocol.Notification)) (cancel func()) {
	return c.notifications.Listen(fn)
}

// Run streams until ctx is done, reconnecting after every failure.
func (c *Client) Run(ctx context.Context) error {
	defer c.notifications.Close()

	for {
		err := c.stream(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			c.logger.Warn("notification stream failed", "error", err)
		} else {
			c.logger.Info("notification stream ended")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.interval):
		}
	}
}

func (c *Client) stream(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.Lock()
	if c.lastEventID != "" {
		req.Header.Set("Last-Event-ID", c.lastEventID)
	}
	c.mu.Unlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	c.logger.Info("notification stream connected", "url", c.url)
	return c.parse(ctx, resp.Body)
}

// parse reads SSE events from body until it ends.
func (c *Client) parse(ctx context.Context, body io.Reader) error {
	scanner := bufio.NewScanner(body)

	var eventType, eventID string
	var dataLines []string

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Text()

		// Empty line signals end of event
		if line == "" {
			if len(dataLines) > 0 {
				c.handleEvent(eventType, eventID, strings.Join(dataLines, "\n"))
			}
			eventType, eventID = "", ""
			dataLines = nil
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "":
			// comment / keepalive
		case "event":
			eventType = value
		case "data":
			dataLines = append(dataLines, value)
		case "id":
			eventID = value
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading SSE stream: %w", err)
	}
	return nil
}

func (c *Client) handleEvent(eventType, eventID, data string) {
	if eventID != "" {
		c.mu.Lock()
		c.lastEventID = eventID
		c.mu.Unlock()
	}
	if eventType != "" && eventType != EventNotification {
		c.logger.Debug("ignoring event", "event", eventType)
		return
	}

	var n protocol.Notification
	if err := json.Unmarshal([]byte(data), &n); err != nil {
		c.logger.Warn("dropping undecodable notification", "error", err)
		return
	}
	if c.seen != nil && c.seen.CheckAndMark(n.ID) {
		c.logger.Debug("duplicate notification", "post_id", n.ID)
		return
	}

	c.logger.Info("new reply", "post_id", n.ID, "thread", n.OP, "board", n.Board)
	c.notifications.Emit(n)
}
