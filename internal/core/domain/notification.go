package domain

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/storefront-labs/notify-relay/internal/core/errors"
)

// NotificationStatus tracks the read state of a durable notification record.
type NotificationStatus string

const (
	StatusUnread   NotificationStatus = "unread"
	StatusRead     NotificationStatus = "read"
	StatusArchived NotificationStatus = "archived"
)

// Valid reports whether the status is a known value.
func (s NotificationStatus) Valid() bool {
	switch s {
	case StatusUnread, StatusRead, StatusArchived:
		return true
	}
	return false
}

// NotificationType categorizes notifications for filtering and rendering.
type NotificationType string

const (
	TypeOrder       NotificationType = "order"
	TypeOrderUpdate NotificationType = "order_update"
	TypeProduct     NotificationType = "product"
	TypeOffer       NotificationType = "offer"
	TypePayment     NotificationType = "payment"
	TypeSystem      NotificationType = "system"
	TypeMessage     NotificationType = "message"
	TypePromotion   NotificationType = "promotion"
	TypeWishlist    NotificationType = "wishlist"
	TypeRestock     NotificationType = "restock"
)

var notificationTypes = map[NotificationType]struct{}{
	TypeOrder:       {},
	TypeOrderUpdate: {},
	TypeProduct:     {},
	TypeOffer:       {},
	TypePayment:     {},
	TypeSystem:      {},
	TypeMessage:     {},
	TypePromotion:   {},
	TypeWishlist:    {},
	TypeRestock:     {},
}

// Valid reports whether the type is a known value.
func (t NotificationType) Valid() bool {
	_, ok := notificationTypes[t]
	return ok
}

// DefaultNotificationTTL is how long a durable record is kept before it is
// considered expired and excluded from listings.
const DefaultNotificationTTL = 30 * 24 * time.Hour

// Notification is the durable record backing a delivered (or missed) live
// event. It is the system of record: the relay's ephemeral delivery must
// never be the only path through which a client learns of it.
type Notification struct {
	ID             uuid.UUID          `json:"id"`
	Title          string             `json:"title"`
	Message        string             `json:"message"`
	Status         NotificationStatus `json:"status"`
	Type           NotificationType   `json:"type"`
	Image          string             `json:"image,omitempty"`
	UserID         string             `json:"userId"`
	ShopID         string             `json:"shopId,omitempty"`
	ClickAction    string             `json:"clickAction,omitempty"`
	SenderID       string             `json:"senderId,omitempty"`
	ConversationID string             `json:"conversationId,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
	ExpiresAt      time.Time          `json:"expiresAt"`
}

// NotificationParams holds the validated input for creating a notification.
type NotificationParams struct {
	Title          string
	Message        string
	Type           NotificationType
	Image          string
	UserID         string
	ShopID         string
	ClickAction    string
	SenderID       string
	ConversationID string
}

// Validate checks required fields and enum membership.
func (p NotificationParams) Validate() error {
	if p.Title == "" {
		return apperrors.ErrTitleRequired
	}
	if p.Message == "" {
		return apperrors.ErrMessageRequired
	}
	if p.UserID == "" {
		return apperrors.ErrRecipientRequired
	}
	if !p.Type.Valid() {
		return apperrors.ErrInvalidType
	}
	return nil
}

// NewNotification builds an unread notification with the default expiry.
func NewNotification(params NotificationParams) (*Notification, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Notification{
		ID:             uuid.New(),
		Title:          params.Title,
		Message:        params.Message,
		Status:         StatusUnread,
		Type:           params.Type,
		Image:          params.Image,
		UserID:         params.UserID,
		ShopID:         params.ShopID,
		ClickAction:    params.ClickAction,
		SenderID:       params.SenderID,
		ConversationID: params.ConversationID,
		CreatedAt:      now,
		ExpiresAt:      now.Add(DefaultNotificationTTL),
	}, nil
}

// MarkRead transitions the record to read. Archived records stay archived.
func (n *Notification) MarkRead() {
	if n.Status == StatusUnread {
		n.Status = StatusRead
	}
}

// IsExpired reports whether the record is past its expiry.
func (n *Notification) IsExpired(now time.Time) bool {
	return n.ExpiresAt.Before(now)
}

// BelongsTo reports whether the record is owned by the given subject id.
func (n *Notification) BelongsTo(subjectID string) bool {
	return n.UserID == subjectID
}
