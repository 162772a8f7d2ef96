package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/storefront-labs/notify-relay/internal/core/domain"
)

// ListNotificationsParams defines the input for listing a user's notifications.
type ListNotificationsParams struct {
	UserID string
	Limit  int
	Now    time.Time // expired records (ExpiresAt < Now) are excluded
}

// NotificationRepository is the port for durable notification persistence.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error)
	ListForUser(ctx context.Context, params ListNotificationsParams) ([]*domain.Notification, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.NotificationStatus) error
	MarkAllRead(ctx context.Context, userID string) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteExpired(ctx context.Context, userID string) (int64, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
}

// TransactionManager runs fn atomically: repository calls made with the
// context it passes to fn share one database transaction, committed when fn
// returns nil and rolled back otherwise.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
