// Package subscriber is the client-side counterpart of the relay: it owns
// exactly one live connection for a signed-in identity, announces that
// identity on connect, and keeps a small self-cleaning cache of received
// notifications for UI consumption.
package subscriber

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrNotConnected is returned when an operation needs a live connection.
var ErrNotConnected = errors.New("subscriber: not connected")

// ErrAlreadyConnected is returned by Connect when a connection is live.
var ErrAlreadyConnected = errors.New("subscriber: already connected")

// Identity names the subject this subscriber announces on connect.
type Identity struct {
	SubjectID string
	// Kind is "buyer" or "shop".
	Kind string
}

// Config configures a Subscriber.
type Config struct {
	// URL is the relay's websocket endpoint, e.g. ws://localhost:4000/ws.
	URL      string
	Identity Identity

	// CacheSize and TTL bound the local notification cache. Zero values use
	// the package defaults.
	CacheSize int
	TTL       time.Duration

	// HandshakeTimeout bounds the dial. Zero means the gorilla default.
	HandshakeTimeout time.Duration

	Logger *slog.Logger
}

// Event is one frame received from the relay.
type Event struct {
	Event     string          `json:"event"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// Subscriber maintains one relay connection and the local cache. There is no
// automatic reconnect: a broken connection is reported through Err and the
// caller decides when to dial again, re-syncing from the REST API in the
// meantime.
type Subscriber struct {
	cfg   Config
	cache *Cache

	mu      sync.Mutex
	conn    *websocket.Conn
	dialing bool
	done    chan struct{}
	err     error

	// OnEvent, when set before Connect, observes every received frame in
	// addition to the cache bookkeeping. Called from the read loop.
	OnEvent func(Event)

	logger *slog.Logger
}

// New creates a disconnected subscriber.
func New(cfg Config) *Subscriber {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Subscriber{
		cfg:    cfg,
		cache:  NewCache(cfg.CacheSize, cfg.TTL),
		logger: logger.With("component", "subscriber"),
	}
}

// Connect dials the relay and announces the configured identity. A dial
// failure is returned to the caller; no retry is attempted.
func (s *Subscriber) Connect(ctx context.Context) error {
	// The dialing flag covers the window between the liveness check and the
	// assignment below, so two concurrent Connect calls cannot both dial.
	s.mu.Lock()
	if s.conn != nil || s.dialing {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.dialing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.dialing = false
		s.mu.Unlock()
	}()

	dialer := websocket.Dialer{HandshakeTimeout: s.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("subscriber: dial %s: %w", s.cfg.URL, err)
	}

	announce := map[string]interface{}{
		"event": "addUser",
		"payload": map[string]string{
			"userId":   s.cfg.Identity.SubjectID,
			"userType": s.cfg.Identity.Kind,
		},
	}
	if err := conn.WriteJSON(announce); err != nil {
		_ = conn.Close()
		return fmt.Errorf("subscriber: announce identity: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.done = make(chan struct{})
	s.err = nil
	s.mu.Unlock()

	go s.readLoop(conn, s.done)

	s.logger.Info("connected",
		"subject_id", s.cfg.Identity.SubjectID,
		"subject_kind", s.cfg.Identity.Kind,
	)
	return nil
}

// Close tears the connection down and discards the cache, as on logout.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	s.cache.ClearAll()

	if conn == nil {
		return ErrNotConnected
	}
	return conn.Close()
}

// neverConnected is handed out by Done before the first Connect, so callers
// waiting on a subscriber that never dialed do not block forever.
var neverConnected = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Done is closed when the read loop exits, either from Close or from a
// transport failure. Err reports the cause afterwards. Before the first
// Connect it is already closed.
func (s *Subscriber) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		return neverConnected
	}
	return s.done
}

// Err returns the error that ended the connection, if any.
func (s *Subscriber) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Connected reports whether a live connection exists.
func (s *Subscriber) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Notifications returns the cached entries, newest first.
func (s *Subscriber) Notifications() []Notification { return s.cache.Notifications() }

// UnreadCount returns the number of unread cached entries.
func (s *Subscriber) UnreadCount() int { return s.cache.UnreadCount() }

// MarkAsRead marks one cached entry read (local only).
func (s *Subscriber) MarkAsRead(id string) { s.cache.MarkAsRead(id) }

// MarkAllAsRead marks every cached entry read (local only).
func (s *Subscriber) MarkAllAsRead() { s.cache.MarkAllAsRead() }

// Clear removes one cached entry.
func (s *Subscriber) Clear(id string) { s.cache.Clear(id) }

// ClearAll empties the cache.
func (s *Subscriber) ClearAll() { s.cache.ClearAll() }

func (s *Subscriber) readLoop(conn *websocket.Conn, done chan struct{}) {
	var cause error
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			cause = err
			break
		}

		var event Event
		if err := json.Unmarshal(raw, &event); err != nil {
			s.logger.Warn("dropping malformed frame", "error", err)
			continue
		}

		s.ingest(event)
		if s.OnEvent != nil {
			s.OnEvent(event)
		}
	}

	s.mu.Lock()
	stillCurrent := s.conn == conn
	if stillCurrent {
		s.conn = nil
		s.err = cause
	}
	s.mu.Unlock()

	if stillCurrent {
		s.logger.Info("disconnected", "error", cause)
	}
	close(done)
}

// notificationPayload covers the fields the relay's event kinds share.
type notificationPayload struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Message     string `json:"message"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	ClickAction string `json:"clickAction"`
}

// ingest folds one frame into the cache.
func (s *Subscriber) ingest(event Event) {
	var p notificationPayload
	if len(event.Payload) > 0 {
		// Best effort: order payloads and ad-hoc notifications both decode
		// partially, and whatever is missing just stays blank in the cache.
		_ = json.Unmarshal(event.Payload, &p)
	}

	n := Notification{
		ID:        p.ID,
		Title:     p.Title,
		Message:   p.Message,
		Type:      p.Type,
		Link:      p.ClickAction,
		CreatedAt: event.Timestamp,
	}
	if n.Type == "" {
		n.Type = event.Event
	}

	s.cache.Add(n)
}
