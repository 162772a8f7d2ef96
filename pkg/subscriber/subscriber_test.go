package subscriber_test

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	relayhttp "github.com/storefront-labs/notify-relay/internal/adapters/primary/http"
	ws "github.com/storefront-labs/notify-relay/internal/adapters/primary/websocket"
	"github.com/storefront-labs/notify-relay/internal/config"
	"github.com/storefront-labs/notify-relay/internal/core/domain"
	"github.com/storefront-labs/notify-relay/pkg/subscriber"
)

func startRelay(t *testing.T) (*ws.Hub, string) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	registry := ws.NewRegistry(logger)
	hub := ws.NewHub(registry, logger)

	cfg := &config.Config{}
	cfg.App.Environment = "development"
	cfg.WebSocket.ReadBufferSize = 1024
	cfg.WebSocket.WriteBufferSize = 1024

	server := httptest.NewServer(relayhttp.NewWebSocketHandler(hub, cfg, logger))
	t.Cleanup(server.Close)

	return hub, "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestSubscriber_ReceivesRoutedEvents(t *testing.T) {
	hub, url := startRelay(t)

	sub := subscriber.New(subscriber.Config{
		URL:      url,
		Identity: subscriber.Identity{SubjectID: "buyer-1", Kind: "buyer"},
	})

	received := make(chan subscriber.Event, 1)
	sub.OnEvent = func(e subscriber.Event) { received <- e }

	require.NoError(t, sub.Connect(context.Background()))
	t.Cleanup(func() { _ = sub.Close() })

	// Wait for the announce to land before routing.
	require.Eventually(t, func() bool {
		return hub.ConnectedCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.Route(domain.Envelope{
		Kind:    domain.EventNotification,
		Target:  domain.Identity{SubjectID: "buyer-1", Kind: domain.KindBuyer},
		Payload: map[string]string{"message": "order shipped", "type": "order_update"},
	})

	select {
	case e := <-received:
		assert.Equal(t, "getNotification", e.Event)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}

	require.Eventually(t, func() bool {
		return len(sub.Notifications()) == 1
	}, time.Second, 10*time.Millisecond)

	got := sub.Notifications()[0]
	assert.Equal(t, "order shipped", got.Message)
	assert.Equal(t, "order_update", got.Type)
	assert.False(t, got.Read)
	assert.Equal(t, 1, sub.UnreadCount())
}

func TestSubscriber_ConnectTwiceFails(t *testing.T) {
	_, url := startRelay(t)

	sub := subscriber.New(subscriber.Config{
		URL:      url,
		Identity: subscriber.Identity{SubjectID: "buyer-1", Kind: "buyer"},
	})

	require.NoError(t, sub.Connect(context.Background()))
	t.Cleanup(func() { _ = sub.Close() })

	assert.ErrorIs(t, sub.Connect(context.Background()), subscriber.ErrAlreadyConnected)
}

func TestSubscriber_ConcurrentConnectOpensOneConnection(t *testing.T) {
	_, url := startRelay(t)

	sub := subscriber.New(subscriber.Config{
		URL:      url,
		Identity: subscriber.Identity{SubjectID: "buyer-1", Kind: "buyer"},
	})
	t.Cleanup(func() { _ = sub.Close() })

	const attempts = 4
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		go func() { errs <- sub.Connect(context.Background()) }()
	}

	var connected, rejected int
	for i := 0; i < attempts; i++ {
		select {
		case err := <-errs:
			if err == nil {
				connected++
			} else {
				assert.ErrorIs(t, err, subscriber.ErrAlreadyConnected)
				rejected++
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for Connect results")
		}
	}

	assert.Equal(t, 1, connected)
	assert.Equal(t, attempts-1, rejected)
	assert.True(t, sub.Connected())
}

func TestSubscriber_DoneBeforeConnectIsClosed(t *testing.T) {
	sub := subscriber.New(subscriber.Config{
		URL:      "ws://127.0.0.1:1/ws",
		Identity: subscriber.Identity{SubjectID: "buyer-1", Kind: "buyer"},
	})

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("Done must not block before the first Connect")
	}
}

func TestSubscriber_DialFailureIsReportedNotRetried(t *testing.T) {
	sub := subscriber.New(subscriber.Config{
		URL:              "ws://127.0.0.1:1/ws", // nothing listens here
		Identity:         subscriber.Identity{SubjectID: "buyer-1", Kind: "buyer"},
		HandshakeTimeout: 200 * time.Millisecond,
	})

	err := sub.Connect(context.Background())
	require.Error(t, err)
	assert.False(t, sub.Connected())
}

func TestSubscriber_CloseDiscardsCache(t *testing.T) {
	hub, url := startRelay(t)

	sub := subscriber.New(subscriber.Config{
		URL:      url,
		Identity: subscriber.Identity{SubjectID: "buyer-1", Kind: "buyer"},
	})

	require.NoError(t, sub.Connect(context.Background()))
	require.Eventually(t, func() bool {
		return hub.ConnectedCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.Route(domain.Envelope{
		Kind:    domain.EventNotification,
		Target:  domain.Identity{SubjectID: "buyer-1", Kind: domain.KindBuyer},
		Payload: map[string]string{"message": "hello"},
	})

	require.Eventually(t, func() bool {
		return len(sub.Notifications()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, sub.Close())

	assert.Empty(t, sub.Notifications())
	assert.False(t, sub.Connected())

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("read loop did not exit after close")
	}
}
