package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/storefront-labs/notify-relay/internal/core/domain"
	apperrors "github.com/storefront-labs/notify-relay/internal/core/errors"
	"github.com/storefront-labs/notify-relay/internal/core/ports"
)

// NotificationRepository is the secondary adapter for notification persistence.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

// Ensure NotificationRepository implements the ports.NotificationRepository interface.
var _ ports.NotificationRepository = (*NotificationRepository)(nil)

// NewNotificationRepository creates a new notification repository.
func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

const notificationColumns = `id, title, message, status, type, image, user_id, shop_id,
	click_action, sender_id, conversation_id, created_at, expires_at`

func scanNotification(row pgx.Row) (*domain.Notification, error) {
	var n domain.Notification
	err := row.Scan(
		&n.ID,
		&n.Title,
		&n.Message,
		&n.Status,
		&n.Type,
		&n.Image,
		&n.UserID,
		&n.ShopID,
		&n.ClickAction,
		&n.SenderID,
		&n.ConversationID,
		&n.CreatedAt,
		&n.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// Create persists a new notification record.
func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	query := `
		INSERT INTO notifications (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + notificationColumns

	row := GetDBTX(ctx, r.pool).QueryRow(ctx, query,
		n.ID, n.Title, n.Message, n.Status, n.Type, n.Image, n.UserID, n.ShopID,
		n.ClickAction, n.SenderID, n.ConversationID, n.CreatedAt, n.ExpiresAt,
	)
	return scanNotification(row)
}

// GetByID retrieves a single notification by its ID.
func (r *NotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`

	n, err := scanNotification(GetDBTX(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotificationNotFound
		}
		return nil, err
	}
	return n, nil
}

// ListForUser returns a user's notifications, newest first, excluding records
// past their expiry.
func (r *NotificationRepository) ListForUser(ctx context.Context, params ports.ListNotificationsParams) ([]*domain.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE user_id = $1 AND expires_at > $2
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := GetDBTX(ctx, r.pool).Query(ctx, query, params.UserID, params.Now, params.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := make([]*domain.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// UpdateStatus sets the read state of a single record.
func (r *NotificationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.NotificationStatus) error {
	query := `UPDATE notifications SET status = $2 WHERE id = $1`

	tag, err := GetDBTX(ctx, r.pool).Exec(ctx, query, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotificationNotFound
	}
	return nil
}

// MarkAllRead marks every unread notification of the user as read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) error {
	query := `UPDATE notifications SET status = $2 WHERE user_id = $1 AND status = $3`

	_, err := GetDBTX(ctx, r.pool).Exec(ctx, query, userID, domain.StatusRead, domain.StatusUnread)
	return err
}

// Delete removes a notification record.
func (r *NotificationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM notifications WHERE id = $1`

	tag, err := GetDBTX(ctx, r.pool).Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotificationNotFound
	}
	return nil
}

// DeleteExpired removes the user's expired records and reports how many
// went. Called from the create path inside the same transaction, so the
// sweep and the insert land or fail together.
func (r *NotificationRepository) DeleteExpired(ctx context.Context, userID string) (int64, error) {
	query := `DELETE FROM notifications WHERE user_id = $1 AND expires_at <= NOW()`

	tag, err := GetDBTX(ctx, r.pool).Exec(ctx, query, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CountUnread returns the number of unread, unexpired notifications.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	query := `
		SELECT COUNT(*) FROM notifications
		WHERE user_id = $1 AND status = $2 AND expires_at > NOW()`

	var count int64
	err := GetDBTX(ctx, r.pool).QueryRow(ctx, query, userID, domain.StatusUnread).Scan(&count)
	return count, err
}
