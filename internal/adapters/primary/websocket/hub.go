package websocket

import (
	"log/slog"

	"github.com/storefront-labs/notify-relay/internal/core/domain"
	"github.com/storefront-labs/notify-relay/internal/core/ports"
)

// BroadcastTarget is the wildcard subject id addressing every connection
// registered under the envelope's subject kind.
const BroadcastTarget = "*"

// Hub owns the connection lifecycle and routes envelopes to registered
// identities. State is process-local and ephemeral: the durable notification
// records are the system of record, so delivery is fire-and-forget with no
// retry, queue, or backpressure.
type Hub struct {
	registry *Registry
	logger   *slog.Logger
}

// Ensure Hub implements the EventRelay port.
var _ ports.EventRelay = (*Hub)(nil)

// NewHub creates a hub routing through the given registry.
func NewHub(registry *Registry, logger *slog.Logger) *Hub {
	return &Hub{
		registry: registry,
		logger:   logger.With("component", "relay_hub"),
	}
}

// Announce transitions a connection to the identified state, registering it
// under the announced identity with last-registration-wins semantics.
// Re-announcing is not an error; announcing a different identity on the same
// connection drops the previous mapping first.
func (h *Hub) Announce(c *Client, identity domain.Identity) {
	if prev, ok := c.Identity(); ok && prev != identity {
		h.registry.unregisterExact(prev, c)
	}
	c.setIdentity(identity)
	h.registry.Register(identity, c)
}

// Disconnect finishes a connection's lifecycle. The registry entry is removed
// only if it still points at this handle, so a stale disconnect arriving
// after a reconnect cannot evict the newer registration. Future deliveries to
// the identity become lookup misses; deliveries already queued on the old
// handle are not recalled.
func (h *Hub) Disconnect(c *Client) {
	h.registry.Unregister(c)
	c.CloseSend()
}

// Route looks up the envelope's target and pushes the delivery to its live
// connection. An unknown target is an expected, normal condition (the target
// is simply offline and will see the durable record on next poll), logged at
// debug only. A target id of "*" broadcasts to every connection of the
// target's kind.
func (h *Hub) Route(envelope domain.Envelope) {
	if err := envelope.Validate(); err != nil {
		h.logger.Warn("rejected malformed envelope", "error", err)
		relayDrops.WithLabelValues(dropReasonMalformed).Inc()
		return
	}

	if envelope.Target.SubjectID == BroadcastTarget {
		h.broadcast(envelope)
		return
	}

	c, ok := h.registry.Lookup(envelope.Target)
	if !ok {
		h.logger.Debug("target offline, dropping event",
			"event", string(envelope.Kind),
			"subject", envelope.Target.String(),
		)
		relayDrops.WithLabelValues(dropReasonOffline).Inc()
		return
	}

	if c.deliver(domain.DeliveryOf(envelope)) {
		relayDeliveries.WithLabelValues(string(envelope.Kind)).Inc()
	}
}

// broadcast fans the envelope out to every connection registered under the
// target kind. The registry snapshot is taken first so no lock is held
// across the send calls.
func (h *Hub) broadcast(envelope domain.Envelope) {
	clients := h.registry.ClientsOfKind(envelope.Target.Kind)
	d := domain.DeliveryOf(envelope)

	for _, c := range clients {
		if c.deliver(d) {
			relayDeliveries.WithLabelValues(string(envelope.Kind)).Inc()
		}
	}

	h.logger.Debug("broadcast",
		"event", string(envelope.Kind),
		"kind", string(envelope.Target.Kind),
		"connections", len(clients),
	)
}

// ConnectedCount returns the number of registered identities, for health
// reporting.
func (h *Hub) ConnectedCount() int {
	return h.registry.Len()
}
