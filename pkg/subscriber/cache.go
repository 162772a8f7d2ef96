package subscriber

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultCacheSize bounds the in-memory notification list.
	DefaultCacheSize = 20

	// DefaultTTL is how long an entry stays in the cache. Eviction is
	// independent of read state: the durable records behind the REST API
	// remain the source of truth.
	DefaultTTL = 5 * time.Minute
)

// Notification is one entry in the client-side cache. It mirrors, best
// effort, the backend's durable record.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Link      string    `json:"link,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Read      bool      `json:"read"`

	expiresAt time.Time
}

// Cache is a bounded, self-cleaning list of recently received notifications.
// Newest first; the oldest entry is dropped once the cap is exceeded, and
// every entry expires a fixed interval after insertion whether or not it was
// read.
type Cache struct {
	mu      sync.Mutex
	entries []Notification
	cap     int
	ttl     time.Duration

	// now is swappable for tests.
	now func() time.Time
}

// NewCache creates a cache with the given cap and per-entry TTL. Zero values
// fall back to the defaults.
func NewCache(cap int, ttl time.Duration) *Cache {
	if cap <= 0 {
		cap = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		cap: cap,
		ttl: ttl,
		now: time.Now,
	}
}

// Add prepends a notification and enforces the cap. A missing ID gets a
// generated one so later MarkAsRead/Clear calls can address the entry.
func (c *Cache) Add(n Notification) Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.expiresAt = now.Add(c.ttl)

	c.pruneLocked(now)

	c.entries = append([]Notification{n}, c.entries...)
	if len(c.entries) > c.cap {
		c.entries = c.entries[:c.cap]
	}
	return n
}

// Notifications returns the live entries, newest first.
func (c *Cache) Notifications() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneLocked(c.now())

	out := make([]Notification, len(c.entries))
	copy(out, c.entries)
	return out
}

// UnreadCount returns how many live entries are unread.
func (c *Cache) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneLocked(c.now())

	count := 0
	for _, n := range c.entries {
		if !n.Read {
			count++
		}
	}
	return count
}

// MarkAsRead marks one entry read. Unknown ids are ignored. This mutates only
// the local cache; syncing the durable record is a separate REST call.
func (c *Cache) MarkAsRead(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.entries {
		if c.entries[i].ID == id {
			c.entries[i].Read = true
			return
		}
	}
}

// MarkAllAsRead marks every entry read.
func (c *Cache) MarkAllAsRead() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.entries {
		c.entries[i].Read = true
	}
}

// Clear removes one entry.
func (c *Cache) Clear(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.entries {
		if c.entries[i].ID == id {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			return
		}
	}
}

// ClearAll empties the cache.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
}

// pruneLocked drops expired entries. Caller holds mu.
func (c *Cache) pruneLocked(now time.Time) {
	live := c.entries[:0]
	for _, n := range c.entries {
		if n.expiresAt.After(now) {
			live = append(live, n)
		}
	}
	c.entries = live
}
