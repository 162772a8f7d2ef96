package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/storefront-labs/notify-relay/internal/adapters/primary/http/middleware"
	"github.com/storefront-labs/notify-relay/internal/auth"
	"github.com/storefront-labs/notify-relay/internal/core/domain"
	apperrors "github.com/storefront-labs/notify-relay/internal/core/errors"
	"github.com/storefront-labs/notify-relay/internal/core/ports"
)

const maxNotificationsPerPage = 100

// NotificationHandler handles HTTP requests for durable notifications
type NotificationHandler struct {
	service      ports.NotificationService
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(
	service ports.NotificationService,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *NotificationHandler {
	return &NotificationHandler{
		service:      service,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "notification"),
	}
}

// Router sets up a new chi Router for all notification routes.
func (h *NotificationHandler) Router() http.Handler {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes sets up the routing for all notification endpoints.
func (h *NotificationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleList)
	r.Post("/", h.HandleCreate)
	r.Get("/unread-count", h.HandleUnreadCount)
	r.Put("/read-all", h.HandleMarkAllRead)

	r.Route("/{notificationID}", func(r chi.Router) {
		r.Put("/read", h.HandleMarkRead)
		r.Delete("/", h.HandleDelete)
	})
}

// --- Request/Response DTOs ---

// CreateNotificationRequest defines the expected JSON body for creating a
// notification. The authenticated caller is recorded as the sender.
type CreateNotificationRequest struct {
	Title          string `json:"title"`
	Message        string `json:"message"`
	Type           string `json:"type"`
	Image          string `json:"image"`
	UserID         string `json:"userId"`
	UserKind       string `json:"userKind"`
	ShopID         string `json:"shopId"`
	ClickAction    string `json:"clickAction"`
	ConversationID string `json:"conversationId"`
}

// NotificationDTO defines the JSON response for notifications.
type NotificationDTO struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Message        string `json:"message"`
	Status         string `json:"status"`
	Type           string `json:"type"`
	Image          string `json:"image,omitempty"`
	UserID         string `json:"userId"`
	ShopID         string `json:"shopId,omitempty"`
	ClickAction    string `json:"clickAction,omitempty"`
	SenderID       string `json:"senderId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	CreatedAt      string `json:"createdAt"`
	ExpiresAt      string `json:"expiresAt"`
}

func toNotificationDTO(n *domain.Notification) NotificationDTO {
	return NotificationDTO{
		ID:             n.ID.String(),
		Title:          n.Title,
		Message:        n.Message,
		Status:         string(n.Status),
		Type:           string(n.Type),
		Image:          n.Image,
		UserID:         n.UserID,
		ShopID:         n.ShopID,
		ClickAction:    n.ClickAction,
		SenderID:       n.SenderID,
		ConversationID: n.ConversationID,
		CreatedAt:      n.CreatedAt.Format(time.RFC3339),
		ExpiresAt:      n.ExpiresAt.Format(time.RFC3339),
	}
}

func toNotificationDTOs(notifications []*domain.Notification) []NotificationDTO {
	response := make([]NotificationDTO, 0, len(notifications))
	for _, n := range notifications {
		response = append(response, toNotificationDTO(n))
	}
	return response
}

// --- Handlers ---

// HandleList handles GET /notifications
func (h *NotificationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > maxNotificationsPerPage {
			h.errorHandler.Handle(w, r, apperrors.NewBadRequestError(apperrors.ErrBadRequest, "limit must be between 1 and 100"))
			return
		}
		limit = parsed
	}

	notifications, err := h.service.ListForUser(r.Context(), claims.SubjectID, limit)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteList(w, toNotificationDTOs(notifications))
}

// HandleCreate handles POST /notifications
func (h *NotificationHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}

	var req CreateNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorHandler.Handle(w, r, apperrors.NewBadRequestError(err, "invalid request body"))
		return
	}

	params := ports.CreateNotificationParams{
		Title:          req.Title,
		Message:        req.Message,
		Type:           req.Type,
		Image:          req.Image,
		UserID:         req.UserID,
		UserKind:       req.UserKind,
		ShopID:         req.ShopID,
		ClickAction:    req.ClickAction,
		SenderID:       claims.SubjectID,
		ConversationID: req.ConversationID,
	}

	notification, err := h.service.Create(r.Context(), params)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("notification created",
		"notification_id", notification.ID,
		"recipient_id", notification.UserID,
		"sender_id", claims.SubjectID,
	)

	WriteCreated(w, toNotificationDTO(notification))
}

// HandleMarkRead handles PUT /notifications/{notificationID}/read
func (h *NotificationHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}

	id, err := h.parseNotificationID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	notification, err := h.service.MarkRead(r.Context(), id, claims.SubjectID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteSuccess(w, toNotificationDTO(notification))
}

// HandleMarkAllRead handles PUT /notifications/read-all
func (h *NotificationHandler) HandleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}

	if err := h.service.MarkAllRead(r.Context(), claims.SubjectID); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteNoContent(w)
}

// HandleDelete handles DELETE /notifications/{notificationID}
func (h *NotificationHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}

	id, err := h.parseNotificationID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := h.service.Delete(r.Context(), id, claims.SubjectID); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteNoContent(w)
}

// HandleUnreadCount handles GET /notifications/unread-count
func (h *NotificationHandler) HandleUnreadCount(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}

	count, err := h.service.UnreadCount(r.Context(), claims.SubjectID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteSuccess(w, map[string]int64{"count": count})
}

// --- Helpers ---

func (h *NotificationHandler) getClaims(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := mw.ClaimsFromContext(r.Context())
	if !ok {
		WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error: "Not authorized",
			Code:  "UNAUTHORIZED",
		})
		return nil, false
	}
	return claims, true
}

func (h *NotificationHandler) parseNotificationID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "notificationID")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.NewBadRequestError(err, "notification id must be a valid UUID")
	}
	return id, nil
}
