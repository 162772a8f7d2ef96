package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/storefront-labs/notify-relay/internal/core/domain"
)

// CreateNotificationParams defines the required input for creating a
// notification record.
type CreateNotificationParams struct {
	Title          string
	Message        string
	Type           string
	Image          string
	UserID         string
	UserKind       string // "buyer" or "shop"; selects the live-delivery namespace
	ShopID         string
	ClickAction    string
	SenderID       string
	ConversationID string
}

// NotificationService defines the core business operations for notifications.
type NotificationService interface {
	Create(ctx context.Context, params CreateNotificationParams) (*domain.Notification, error)
	ListForUser(ctx context.Context, userID string, limit int) ([]*domain.Notification, error)
	MarkRead(ctx context.Context, id uuid.UUID, actorID string) (*domain.Notification, error)
	MarkAllRead(ctx context.Context, actorID string) error
	Delete(ctx context.Context, id uuid.UUID, actorID string) error
	UnreadCount(ctx context.Context, actorID string) (int64, error)
}

// EventRelay is the port for pushing ephemeral events to live connections.
// Delivery is at-most-once and fire-and-forget: an offline target is a normal
// condition, covered by the durable record the caller persisted first.
type EventRelay interface {
	Route(envelope domain.Envelope)
}
