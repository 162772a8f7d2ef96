package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/storefront-labs/notify-relay/internal/core/domain"
	apperrors "github.com/storefront-labs/notify-relay/internal/core/errors"
	"github.com/storefront-labs/notify-relay/internal/core/ports"
)

// NotificationService implements business logic for durable notifications.
// The persisted record is the system of record; the live push through the
// relay is best-effort and may be dropped without affecting correctness.
type NotificationService struct {
	repo  ports.NotificationRepository
	tx    ports.TransactionManager
	relay ports.EventRelay
}

var _ ports.NotificationService = (*NotificationService)(nil)

// NewNotificationService creates a new notification service
func NewNotificationService(repo ports.NotificationRepository, tx ports.TransactionManager, relay ports.EventRelay) *NotificationService {
	return &NotificationService{
		repo:  repo,
		tx:    tx,
		relay: relay,
	}
}

// Create persists a notification and then pushes it to the recipient's live
// connection if one exists. Persist-first ordering means a recipient who is
// offline (or whose delivery is dropped) still finds the record on next fetch.
func (s *NotificationService) Create(ctx context.Context, params ports.CreateNotificationParams) (*domain.Notification, error) {
	kind := domain.KindBuyer
	if params.UserKind != "" {
		parsed, err := domain.ParseSubjectKind(params.UserKind)
		if err != nil {
			return nil, apperrors.NewBadRequestError(err, "invalid user kind")
		}
		kind = parsed
	}

	notification, err := domain.NewNotification(domain.NotificationParams{
		Title:          params.Title,
		Message:        params.Message,
		Type:           domain.NotificationType(params.Type),
		Image:          params.Image,
		UserID:         params.UserID,
		ShopID:         params.ShopID,
		ClickAction:    params.ClickAction,
		SenderID:       params.SenderID,
		ConversationID: params.ConversationID,
	})
	if err != nil {
		return nil, err // Validation errors are returned here
	}

	// The insert and the expired-row sweep for the recipient share one
	// transaction: the sweep rides along with every create, so the table
	// stays bounded without a background job.
	var created *domain.Notification
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.repo.Create(ctx, notification)
		if err != nil {
			return err
		}
		_, err = s.repo.DeleteExpired(ctx, created.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	// Fire-and-forget live push. The relay drops the event silently when the
	// recipient has no live connection.
	s.relay.Route(domain.Envelope{
		Kind: domain.EventNotification,
		Target: domain.Identity{
			SubjectID: created.UserID,
			Kind:      kind,
		},
		Payload:   created,
		Timestamp: created.CreatedAt,
	})

	return created, nil
}

// ListForUser returns the caller's notifications, newest first, excluding
// expired records.
func (s *NotificationService) ListForUser(ctx context.Context, userID string, limit int) ([]*domain.Notification, error) {
	if userID == "" {
		return nil, apperrors.ErrRecipientRequired
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	return s.repo.ListForUser(ctx, ports.ListNotificationsParams{
		UserID: userID,
		Limit:  limit,
		Now:    time.Now().UTC(),
	})
}

// MarkRead transitions a single notification to read. Only the owner may do
// this; marking an already-read record is a no-op, not an error.
func (s *NotificationService) MarkRead(ctx context.Context, id uuid.UUID, actorID string) (*domain.Notification, error) {
	notification, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !notification.BelongsTo(actorID) {
		return nil, apperrors.ErrForbidden
	}

	if notification.Status != domain.StatusUnread {
		return notification, nil
	}

	notification.MarkRead()
	if err := s.repo.UpdateStatus(ctx, id, notification.Status); err != nil {
		return nil, err
	}

	return notification, nil
}

// MarkAllRead marks every unread notification of the caller as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, actorID string) error {
	if actorID == "" {
		return apperrors.ErrRecipientRequired
	}
	return s.repo.MarkAllRead(ctx, actorID)
}

// Delete removes a notification. Only the owner may delete it.
func (s *NotificationService) Delete(ctx context.Context, id uuid.UUID, actorID string) error {
	notification, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if !notification.BelongsTo(actorID) {
		return apperrors.ErrForbidden
	}

	return s.repo.Delete(ctx, id)
}

// UnreadCount returns how many unread, unexpired notifications the caller has.
func (s *NotificationService) UnreadCount(ctx context.Context, actorID string) (int64, error) {
	if actorID == "" {
		return 0, apperrors.ErrRecipientRequired
	}
	return s.repo.CountUnread(ctx, actorID)
}
