package subscriber

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives the cache's notion of time.
type fakeClock struct {
	t time.Time
}

func (f *fakeClock) Now() time.Time { return f.t }

func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(cap int, ttl time.Duration) (*Cache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := NewCache(cap, ttl)
	c.now = clock.Now
	return c, clock
}

func TestCache_BoundedToCap(t *testing.T) {
	const size = 20
	c, _ := newTestCache(size, time.Hour)

	for i := 0; i < size+5; i++ {
		c.Add(Notification{Message: fmt.Sprintf("event %d", i)})
	}

	got := c.Notifications()
	require.Len(t, got, size)

	// Newest first; the five oldest were dropped.
	assert.Equal(t, "event 24", got[0].Message)
	assert.Equal(t, "event 5", got[size-1].Message)
}

func TestCache_TTLEvictionIgnoresReadState(t *testing.T) {
	ttl := 5 * time.Minute
	c, clock := newTestCache(20, ttl)

	read := c.Add(Notification{Message: "seen"})
	unread := c.Add(Notification{Message: "not seen"})
	c.MarkAsRead(read.ID)

	clock.Advance(ttl + time.Second)

	got := c.Notifications()
	assert.Empty(t, got)
	assert.Zero(t, c.UnreadCount())

	// Neither survives, read or not.
	for _, n := range got {
		assert.NotEqual(t, read.ID, n.ID)
		assert.NotEqual(t, unread.ID, n.ID)
	}
}

func TestCache_TTLIsPerEntry(t *testing.T) {
	ttl := 5 * time.Minute
	c, clock := newTestCache(20, ttl)

	c.Add(Notification{Message: "old"})
	clock.Advance(4 * time.Minute)
	c.Add(Notification{Message: "fresh"})
	clock.Advance(90 * time.Second) // old is past its TTL, fresh is not

	got := c.Notifications()
	require.Len(t, got, 1)
	assert.Equal(t, "fresh", got[0].Message)
}

func TestCache_UnreadCountAndMarkAsRead(t *testing.T) {
	c, _ := newTestCache(20, time.Hour)

	a := c.Add(Notification{Message: "a"})
	c.Add(Notification{Message: "b"})
	c.Add(Notification{Message: "c"})

	assert.Equal(t, 3, c.UnreadCount())

	c.MarkAsRead(a.ID)
	assert.Equal(t, 2, c.UnreadCount())

	// Unknown ids are ignored
	c.MarkAsRead("nope")
	assert.Equal(t, 2, c.UnreadCount())

	c.MarkAllAsRead()
	assert.Zero(t, c.UnreadCount())
	assert.Len(t, c.Notifications(), 3)
}

func TestCache_ClearAndClearAll(t *testing.T) {
	c, _ := newTestCache(20, time.Hour)

	a := c.Add(Notification{Message: "a"})
	c.Add(Notification{Message: "b"})

	c.Clear(a.ID)
	got := c.Notifications()
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].Message)

	c.ClearAll()
	assert.Empty(t, c.Notifications())
}
