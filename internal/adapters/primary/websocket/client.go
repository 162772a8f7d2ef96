package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/storefront-labs/notify-relay/internal/core/domain"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Outbound buffer per connection. When it fills, the connection is
	// considered dead and detached; the client re-syncs from the durable
	// records on reconnect.
	sendBufferSize = 256
)

// Client is a live connection handle: the middleman between one websocket
// session and the hub. It starts anonymous and becomes identified after the
// peer announces an identity.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound deliveries.
	send chan domain.Delivery

	// identity is set by the announce handler and read during unregister.
	// Guarded by mu because the read pump writes it while the hub reads it.
	// closed is checked under the same lock so a delivery racing CloseSend
	// can never hit a closed channel.
	mu         sync.RWMutex
	identity   domain.Identity
	identified bool
	closed     bool

	// closeOnce ensures the send channel is only closed once.
	closeOnce sync.Once

	logger *slog.Logger
}

// NewClient creates a connection handle in the anonymous state.
func NewClient(hub *Hub, conn *websocket.Conn, logger *slog.Logger) *Client {
	relayConnections.Inc()
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan domain.Delivery, sendBufferSize),
		logger: logger,
	}
}

// Identity returns the announced identity, if any.
func (c *Client) Identity() (domain.Identity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity, c.identified
}

func (c *Client) setIdentity(identity domain.Identity) {
	c.mu.Lock()
	c.identity = identity
	c.identified = true
	c.mu.Unlock()
}

// CloseSend safely closes the send channel exactly once.
func (c *Client) CloseSend() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
		relayConnections.Dec()
	})
}

// deliver queues one delivery without blocking. A full buffer means the peer
// stopped draining; treat it like a transport failure.
func (c *Client) deliver(d domain.Delivery) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- d:
		return true
	default:
		c.logger.Warn("send buffer full, detaching client")
		relayDrops.WithLabelValues(dropReasonBufferFull).Inc()
		go c.hub.Disconnect(c)
		return false
	}
}

// ReadPump pumps messages from the websocket connection to the hub.
// This method runs in its own goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Disconnect(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error("failed to set read deadline", "error", err)
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			break
		}

		c.handleIncomingMessage(message)
	}
}

// WritePump pumps deliveries from the hub to the websocket connection.
// A single writer per connection keeps deliveries in the order the router
// processed them. This method runs in its own goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case d, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("failed to set write deadline", "error", err)
				return
			}

			if !ok {
				// The hub closed the channel. Send close message.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.writeJSON(d); err != nil {
				// Mid-send transport failure: equivalent to disconnect.
				c.logger.Warn("failed to write delivery", "error", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("failed to set write deadline for ping", "error", err)
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
				return
			}
		}
	}
}

// writeJSON writes one delivery frame to the websocket connection.
func (c *Client) writeJSON(d domain.Delivery) error {
	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}

	if err := json.NewEncoder(w).Encode(wireFrame{
		Event:     string(d.Kind),
		Payload:   d.Payload,
		Timestamp: d.Timestamp,
	}); err != nil {
		_ = w.Close()
		return err
	}

	return w.Close()
}

// wireFrame is the outbound message format.
type wireFrame struct {
	Event     string      `json:"event"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// --- Incoming Message Handling ---

// ClientMessage is the structure for messages sent by the peer.
type ClientMessage struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// AddUserPayload announces (or re-announces) the peer's identity.
type AddUserPayload struct {
	UserID   string `json:"userId"`
	UserType string `json:"userType"`
}

// SendNotificationPayload requests delivery of a generic notification.
type SendNotificationPayload struct {
	RecipientID   string `json:"recipientId"`
	RecipientType string `json:"recipientType,omitempty"`
	Message       string `json:"message"`
	Type          string `json:"type"`
}

// NewOrderPayload requests delivery of an order summary to the owning shop.
type NewOrderPayload struct {
	SellerID string          `json:"sellerId"`
	Order    json.RawMessage `json:"order"`
}

// OrderStatusPayload requests delivery of a status change to the owning buyer.
type OrderStatusPayload struct {
	BuyerID string          `json:"buyerId"`
	Order   json.RawMessage `json:"order"`
}

// handleIncomingMessage converts one inbound transport event into an
// announce or forward command. Malformed messages are rejected here and
// never reach the router.
func (c *Client) handleIncomingMessage(message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Warn("failed to unmarshal client message", "error", err)
		return
	}

	switch msg.Event {
	case "addUser":
		c.handleAddUser(msg.Payload)

	case "sendNotification":
		c.handleSendNotification(msg.Payload)

	case "newOrder":
		c.handleNewOrder(msg.Payload)

	case "orderStatusUpdate":
		c.handleOrderStatusUpdate(msg.Payload)

	default:
		c.logger.Debug("received unknown event", "event", msg.Event)
	}
}

func (c *Client) handleAddUser(payload json.RawMessage) {
	var p AddUserPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.logger.Warn("failed to unmarshal addUser payload", "error", err)
		return
	}

	kind, err := domain.ParseSubjectKind(p.UserType)
	if err != nil {
		c.logger.Warn("rejected addUser", "error", err)
		return
	}
	identity := domain.Identity{SubjectID: p.UserID, Kind: kind}
	if err := identity.Validate(); err != nil {
		c.logger.Warn("rejected addUser", "error", err)
		return
	}

	c.hub.Announce(c, identity)
}

func (c *Client) handleSendNotification(payload json.RawMessage) {
	var p SendNotificationPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.logger.Warn("failed to unmarshal sendNotification payload", "error", err)
		return
	}

	kind := domain.KindBuyer
	if p.RecipientType != "" {
		parsed, err := domain.ParseSubjectKind(p.RecipientType)
		if err != nil {
			c.logger.Warn("rejected sendNotification", "error", err)
			return
		}
		kind = parsed
	}

	c.hub.Route(domain.Envelope{
		Kind:   domain.EventNotification,
		Target: domain.Identity{SubjectID: p.RecipientID, Kind: kind},
		Payload: map[string]interface{}{
			"message": p.Message,
			"type":    p.Type,
		},
		Timestamp: time.Now().UTC(),
	})
}

func (c *Client) handleNewOrder(payload json.RawMessage) {
	var p NewOrderPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.logger.Warn("failed to unmarshal newOrder payload", "error", err)
		return
	}

	c.hub.Route(domain.Envelope{
		Kind:      domain.EventNewOrder,
		Target:    domain.Identity{SubjectID: p.SellerID, Kind: domain.KindShop},
		Payload:   p.Order,
		Timestamp: time.Now().UTC(),
	})
}

func (c *Client) handleOrderStatusUpdate(payload json.RawMessage) {
	var p OrderStatusPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.logger.Warn("failed to unmarshal orderStatusUpdate payload", "error", err)
		return
	}

	c.hub.Route(domain.Envelope{
		Kind:      domain.EventOrderStatusUpdated,
		Target:    domain.Identity{SubjectID: p.BuyerID, Kind: domain.KindBuyer},
		Payload:   p.Order,
		Timestamp: time.Now().UTC(),
	})
}
