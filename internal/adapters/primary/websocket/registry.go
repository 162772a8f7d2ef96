package websocket

import (
	"log/slog"
	"sync"

	"github.com/storefront-labs/notify-relay/internal/core/domain"
)

// registryKey namespaces registrations by subject kind so a buyer and a shop
// can share the same raw id without colliding.
type registryKey struct {
	kind domain.SubjectKind
	id   string
}

// Registry maps application identities to their single live connection.
// At most one entry exists per identity: registering a new handle for an
// already-registered identity silently replaces the old mapping, and the old
// handle stays orphaned until its own disconnect fires.
type Registry struct {
	// mu serializes every read-then-write sequence. Register's
	// check-and-replace and Unregister's compare-and-delete must each be
	// atomic, otherwise a reconnect racing a stale disconnect can evict the
	// live mapping.
	mu      sync.RWMutex
	entries map[registryKey]*Client

	logger *slog.Logger
}

// NewRegistry creates an empty identity registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		entries: make(map[registryKey]*Client),
		logger:  logger.With("component", "identity_registry"),
	}
}

// Register inserts or replaces the mapping for the identity. Always succeeds.
// A previous handle for the same identity becomes unreachable via Lookup but
// is not closed here; its own disconnect cleans it up.
func (r *Registry) Register(identity domain.Identity, c *Client) {
	k := registryKey{kind: identity.Kind, id: identity.SubjectID}

	r.mu.Lock()
	prev := r.entries[k]
	r.entries[k] = c
	r.mu.Unlock()

	if prev != nil && prev != c {
		r.logger.Debug("registration replaced",
			"subject", identity.String(),
		)
	}
	r.logger.Info("identity registered",
		"subject", identity.String(),
	)
}

// Unregister removes the mapping only if the stored handle is the given one.
// A disconnect from a superseded handle must never evict a newer registration
// for the same identity.
func (r *Registry) Unregister(c *Client) bool {
	identity, ok := c.Identity()
	if !ok {
		// Connection never announced; nothing was registered.
		return false
	}
	k := registryKey{kind: identity.Kind, id: identity.SubjectID}

	r.mu.Lock()
	defer r.mu.Unlock()

	if current, exists := r.entries[k]; exists && current == c {
		delete(r.entries, k)
		r.logger.Info("identity unregistered",
			"subject", identity.String(),
		)
		return true
	}
	return false
}

// unregisterExact removes the mapping for an identity only if it points at
// the given handle. Used when a connection announces a different identity
// than it previously held.
func (r *Registry) unregisterExact(identity domain.Identity, c *Client) {
	k := registryKey{kind: identity.Kind, id: identity.SubjectID}

	r.mu.Lock()
	defer r.mu.Unlock()

	if current, exists := r.entries[k]; exists && current == c {
		delete(r.entries, k)
	}
}

// Lookup returns the live handle for an identity, if any.
func (r *Registry) Lookup(identity domain.Identity) (*Client, bool) {
	k := registryKey{kind: identity.Kind, id: identity.SubjectID}

	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.entries[k]
	return c, ok
}

// ClientsOfKind returns a snapshot of every connection registered under the
// kind. Callers iterate the copy without holding the registry lock.
func (r *Registry) ClientsOfKind(kind domain.SubjectKind) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.entries))
	for k, c := range r.entries {
		if k.kind == kind {
			clients = append(clients, c)
		}
	}
	return clients
}

// Len returns the number of registered identities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
