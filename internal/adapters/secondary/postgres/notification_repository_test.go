package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/storefront-labs/notify-relay/internal/core/domain"
	apperrors "github.com/storefront-labs/notify-relay/internal/core/errors"
	"github.com/storefront-labs/notify-relay/internal/core/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper to build a valid notification for a user
func testNotification(t *testing.T, userID string) *domain.Notification {
	t.Helper()
	n, err := domain.NewNotification(domain.NotificationParams{
		Title:   "Order shipped",
		Message: "Your order is on its way",
		Type:    domain.TypeOrderUpdate,
		UserID:  userID,
	})
	require.NoError(t, err)
	return n
}

func TestNotificationRepository_CreateGet(t *testing.T) {
	resetNotifications(t)
	ctx := context.Background()
	repo := NewNotificationRepository(testPool)

	n := testNotification(t, "buyer-1")
	n.ShopID = "shop-7"
	n.ClickAction = "/orders/42"

	created, err := repo.Create(ctx, n)
	require.NoError(t, err, "Failed to create notification")
	assert.Equal(t, n.ID, created.ID)

	found, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err, "Failed to get notification by ID")

	assert.Equal(t, "Order shipped", found.Title)
	assert.Equal(t, domain.StatusUnread, found.Status)
	assert.Equal(t, domain.TypeOrderUpdate, found.Type)
	assert.Equal(t, "buyer-1", found.UserID)
	assert.Equal(t, "shop-7", found.ShopID)
	assert.Equal(t, "/orders/42", found.ClickAction)
	assert.False(t, found.ExpiresAt.IsZero())
}

func TestNotificationRepository_GetByID_NotFound(t *testing.T) {
	resetNotifications(t)
	ctx := context.Background()
	repo := NewNotificationRepository(testPool)

	_, err := repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotificationNotFound)
}

func TestNotificationRepository_ListForUser(t *testing.T) {
	resetNotifications(t)
	ctx := context.Background()
	repo := NewNotificationRepository(testPool)

	for i := 0; i < 3; i++ {
		_, err := repo.Create(ctx, testNotification(t, "buyer-1"))
		require.NoError(t, err)
	}
	_, err := repo.Create(ctx, testNotification(t, "buyer-2"))
	require.NoError(t, err)

	// An expired record must not show up
	expired := testNotification(t, "buyer-1")
	expired.ExpiresAt = time.Now().UTC().Add(-time.Hour)
	_, err = repo.Create(ctx, expired)
	require.NoError(t, err)

	list, err := repo.ListForUser(ctx, ports.ListNotificationsParams{
		UserID: "buyer-1",
		Limit:  10,
		Now:    time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Len(t, list, 3)
	for _, n := range list {
		assert.Equal(t, "buyer-1", n.UserID)
	}

	// Limit caps the result
	list, err = repo.ListForUser(ctx, ports.ListNotificationsParams{
		UserID: "buyer-1",
		Limit:  2,
		Now:    time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestNotificationRepository_UpdateStatus(t *testing.T) {
	resetNotifications(t)
	ctx := context.Background()
	repo := NewNotificationRepository(testPool)

	created, err := repo.Create(ctx, testNotification(t, "buyer-1"))
	require.NoError(t, err)

	err = repo.UpdateStatus(ctx, created.ID, domain.StatusRead)
	require.NoError(t, err)

	found, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRead, found.Status)

	err = repo.UpdateStatus(ctx, uuid.New(), domain.StatusRead)
	assert.ErrorIs(t, err, apperrors.ErrNotificationNotFound)
}

func TestNotificationRepository_MarkAllRead(t *testing.T) {
	resetNotifications(t)
	ctx := context.Background()
	repo := NewNotificationRepository(testPool)

	for i := 0; i < 3; i++ {
		_, err := repo.Create(ctx, testNotification(t, "buyer-1"))
		require.NoError(t, err)
	}
	other, err := repo.Create(ctx, testNotification(t, "buyer-2"))
	require.NoError(t, err)

	require.NoError(t, repo.MarkAllRead(ctx, "buyer-1"))

	count, err := repo.CountUnread(ctx, "buyer-1")
	require.NoError(t, err)
	assert.Zero(t, count)

	// Other users are untouched
	foundOther, err := repo.GetByID(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnread, foundOther.Status)
}

func TestNotificationRepository_Delete(t *testing.T) {
	resetNotifications(t)
	ctx := context.Background()
	repo := NewNotificationRepository(testPool)

	created, err := repo.Create(ctx, testNotification(t, "buyer-1"))
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, created.ID))

	_, err = repo.GetByID(ctx, created.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotificationNotFound)

	err = repo.Delete(ctx, created.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotificationNotFound)
}

func TestNotificationRepository_CountUnread(t *testing.T) {
	resetNotifications(t)
	ctx := context.Background()
	repo := NewNotificationRepository(testPool)

	for i := 0; i < 2; i++ {
		_, err := repo.Create(ctx, testNotification(t, "buyer-1"))
		require.NoError(t, err)
	}
	read := testNotification(t, "buyer-1")
	read.Status = domain.StatusRead
	_, err := repo.Create(ctx, read)
	require.NoError(t, err)

	count, err := repo.CountUnread(ctx, "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestNotificationRepository_DeleteExpired(t *testing.T) {
	resetNotifications(t)
	ctx := context.Background()
	repo := NewNotificationRepository(testPool)

	expired := testNotification(t, "buyer-1")
	expired.ExpiresAt = time.Now().Add(-time.Hour)
	_, err := repo.Create(ctx, expired)
	require.NoError(t, err)

	live := testNotification(t, "buyer-1")
	_, err = repo.Create(ctx, live)
	require.NoError(t, err)

	otherUser := testNotification(t, "buyer-2")
	otherUser.ExpiresAt = time.Now().Add(-time.Hour)
	_, err = repo.Create(ctx, otherUser)
	require.NoError(t, err)

	removed, err := repo.DeleteExpired(ctx, "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = repo.GetByID(ctx, expired.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotificationNotFound)

	// The live record and the other user's rows are untouched
	_, err = repo.GetByID(ctx, live.ID)
	require.NoError(t, err)
	_, err = repo.GetByID(ctx, otherUser.ID)
	require.NoError(t, err)
}

func TestTxManager_WithTransaction(t *testing.T) {
	resetNotifications(t)
	ctx := context.Background()
	repo := NewNotificationRepository(testPool)
	tm := NewTxManager(testPool)

	n := testNotification(t, "buyer-1")

	// A failing function rolls the insert back
	err := tm.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := repo.Create(ctx, n); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	_, err = repo.GetByID(ctx, n.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotificationNotFound)

	// A successful function commits
	err = tm.WithTransaction(ctx, func(ctx context.Context) error {
		_, err := repo.Create(ctx, n)
		return err
	})
	require.NoError(t, err)

	found, err := repo.GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, n.ID, found.ID)
}

// TestTxManager_SweepSharesTheCreateTransaction exercises the create path's
// pairing: a sweep failure must take the insert down with it.
func TestTxManager_SweepSharesTheCreateTransaction(t *testing.T) {
	resetNotifications(t)
	ctx := context.Background()
	repo := NewNotificationRepository(testPool)
	tm := NewTxManager(testPool)

	expired := testNotification(t, "buyer-1")
	expired.ExpiresAt = time.Now().Add(-time.Hour)
	_, err := repo.Create(ctx, expired)
	require.NoError(t, err)

	n := testNotification(t, "buyer-1")
	err = tm.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := repo.Create(ctx, n); err != nil {
			return err
		}
		if _, err := repo.DeleteExpired(ctx, "buyer-1"); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	// Rollback restored the expired row and discarded the insert
	_, err = repo.GetByID(ctx, expired.ID)
	require.NoError(t, err)
	_, err = repo.GetByID(ctx, n.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotificationNotFound)
}
