package http

import (
	"context"
	"encoding/json"
	"log/slog"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	mw "github.com/storefront-labs/notify-relay/internal/adapters/primary/http/middleware"
	"github.com/storefront-labs/notify-relay/internal/auth"
	"github.com/storefront-labs/notify-relay/internal/core/domain"
	apperrors "github.com/storefront-labs/notify-relay/internal/core/errors"
	"github.com/storefront-labs/notify-relay/internal/core/mocks"
	"github.com/storefront-labs/notify-relay/internal/core/ports"
)

func newTestNotificationHandler(svc ports.NotificationService) *NotificationHandler {
	logger := slog.New(slog.DiscardHandler)
	return NewNotificationHandler(svc, NewErrorHandler(logger), logger)
}

// withClaims attaches validated claims the way JWTMiddleware would.
func withClaims(r *stdhttp.Request, subjectID string, kind domain.SubjectKind) *stdhttp.Request {
	claims := &auth.Claims{SubjectID: subjectID, SubjectKind: kind}
	ctx := context.WithValue(r.Context(), mw.SubjectClaimsKey, claims)
	return r.WithContext(ctx)
}

func TestNotificationHandler_HandleCreate(t *testing.T) {
	t.Run("creates and returns 201", func(t *testing.T) {
		mockSvc := mocks.NewMockNotificationService()
		h := newTestNotificationHandler(mockSvc)

		stored := &domain.Notification{
			ID:      uuid.New(),
			Title:   "Order shipped",
			Message: "On its way",
			Status:  domain.StatusUnread,
			Type:    domain.TypeOrderUpdate,
			UserID:  "buyer-1",
		}

		mockSvc.On("Create", mock.Anything, mock.MatchedBy(func(p ports.CreateNotificationParams) bool {
			return p.Title == "Order shipped" && p.UserID == "buyer-1" && p.SenderID == "shop-9"
		})).Return(stored, nil)

		body := `{"title":"Order shipped","message":"On its way","type":"order_update","userId":"buyer-1"}`
		req := httptest.NewRequest(stdhttp.MethodPost, "/", strings.NewReader(body))
		req = withClaims(req, "shop-9", domain.KindShop)
		rec := httptest.NewRecorder()

		h.Router().ServeHTTP(rec, req)

		require.Equal(t, stdhttp.StatusCreated, rec.Code)

		var dto NotificationDTO
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&dto))
		assert.Equal(t, stored.ID.String(), dto.ID)
		assert.Equal(t, "unread", dto.Status)
		mockSvc.AssertExpectations(t)
	})

	t.Run("rejects unauthenticated requests", func(t *testing.T) {
		mockSvc := mocks.NewMockNotificationService()
		h := newTestNotificationHandler(mockSvc)

		req := httptest.NewRequest(stdhttp.MethodPost, "/", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()

		h.Router().ServeHTTP(rec, req)

		assert.Equal(t, stdhttp.StatusUnauthorized, rec.Code)
		mockSvc.AssertNotCalled(t, "Create")
	})

	t.Run("maps validation errors to 400", func(t *testing.T) {
		mockSvc := mocks.NewMockNotificationService()
		h := newTestNotificationHandler(mockSvc)

		mockSvc.On("Create", mock.Anything, mock.Anything).
			Return(nil, apperrors.ErrTitleRequired)

		req := httptest.NewRequest(stdhttp.MethodPost, "/", strings.NewReader(`{"message":"x"}`))
		req = withClaims(req, "shop-9", domain.KindShop)
		rec := httptest.NewRecorder()

		h.Router().ServeHTTP(rec, req)

		assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)
	})
}

func TestNotificationHandler_HandleList(t *testing.T) {
	t.Run("lists for the authenticated subject", func(t *testing.T) {
		mockSvc := mocks.NewMockNotificationService()
		h := newTestNotificationHandler(mockSvc)

		mockSvc.On("ListForUser", mock.Anything, "buyer-1", 50).
			Return([]*domain.Notification{
				{ID: uuid.New(), Title: "A", UserID: "buyer-1", Status: domain.StatusUnread, Type: domain.TypeOrder},
				{ID: uuid.New(), Title: "B", UserID: "buyer-1", Status: domain.StatusRead, Type: domain.TypeOrder},
			}, nil)

		req := httptest.NewRequest(stdhttp.MethodGet, "/", nil)
		req = withClaims(req, "buyer-1", domain.KindBuyer)
		rec := httptest.NewRecorder()

		h.Router().ServeHTTP(rec, req)

		require.Equal(t, stdhttp.StatusOK, rec.Code)

		var resp ListResponse[NotificationDTO]
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, 2, resp.Count)
		mockSvc.AssertExpectations(t)
	})

	t.Run("rejects an out-of-range limit", func(t *testing.T) {
		mockSvc := mocks.NewMockNotificationService()
		h := newTestNotificationHandler(mockSvc)

		req := httptest.NewRequest(stdhttp.MethodGet, "/?limit=9999", nil)
		req = withClaims(req, "buyer-1", domain.KindBuyer)
		rec := httptest.NewRecorder()

		h.Router().ServeHTTP(rec, req)

		assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)
		mockSvc.AssertNotCalled(t, "ListForUser")
	})
}

func TestNotificationHandler_HandleMarkRead(t *testing.T) {
	t.Run("marks a record read", func(t *testing.T) {
		mockSvc := mocks.NewMockNotificationService()
		h := newTestNotificationHandler(mockSvc)

		id := uuid.New()
		mockSvc.On("MarkRead", mock.Anything, id, "buyer-1").
			Return(&domain.Notification{ID: id, UserID: "buyer-1", Status: domain.StatusRead, Type: domain.TypeOrder}, nil)

		req := httptest.NewRequest(stdhttp.MethodPut, "/"+id.String()+"/read", nil)
		req = withClaims(req, "buyer-1", domain.KindBuyer)
		rec := httptest.NewRecorder()

		h.Router().ServeHTTP(rec, req)

		assert.Equal(t, stdhttp.StatusOK, rec.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("rejects a malformed id", func(t *testing.T) {
		mockSvc := mocks.NewMockNotificationService()
		h := newTestNotificationHandler(mockSvc)

		req := httptest.NewRequest(stdhttp.MethodPut, "/not-a-uuid/read", nil)
		req = withClaims(req, "buyer-1", domain.KindBuyer)
		rec := httptest.NewRecorder()

		h.Router().ServeHTTP(rec, req)

		assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)
		mockSvc.AssertNotCalled(t, "MarkRead")
	})

	t.Run("maps not found to 404", func(t *testing.T) {
		mockSvc := mocks.NewMockNotificationService()
		h := newTestNotificationHandler(mockSvc)

		id := uuid.New()
		mockSvc.On("MarkRead", mock.Anything, id, "buyer-1").
			Return(nil, apperrors.ErrNotificationNotFound)

		req := httptest.NewRequest(stdhttp.MethodPut, "/"+id.String()+"/read", nil)
		req = withClaims(req, "buyer-1", domain.KindBuyer)
		rec := httptest.NewRecorder()

		h.Router().ServeHTTP(rec, req)

		assert.Equal(t, stdhttp.StatusNotFound, rec.Code)
	})

	t.Run("maps foreign ownership to 403", func(t *testing.T) {
		mockSvc := mocks.NewMockNotificationService()
		h := newTestNotificationHandler(mockSvc)

		id := uuid.New()
		mockSvc.On("MarkRead", mock.Anything, id, "intruder").
			Return(nil, apperrors.ErrForbidden)

		req := httptest.NewRequest(stdhttp.MethodPut, "/"+id.String()+"/read", nil)
		req = withClaims(req, "intruder", domain.KindBuyer)
		rec := httptest.NewRecorder()

		h.Router().ServeHTTP(rec, req)

		assert.Equal(t, stdhttp.StatusForbidden, rec.Code)
	})
}

func TestNotificationHandler_HandleUnreadCount(t *testing.T) {
	mockSvc := mocks.NewMockNotificationService()
	h := newTestNotificationHandler(mockSvc)

	mockSvc.On("UnreadCount", mock.Anything, "buyer-1").Return(int64(7), nil)

	req := httptest.NewRequest(stdhttp.MethodGet, "/unread-count", nil)
	req = withClaims(req, "buyer-1", domain.KindBuyer)
	rec := httptest.NewRecorder()

	h.Router().ServeHTTP(rec, req)

	require.Equal(t, stdhttp.StatusOK, rec.Code)

	var resp struct {
		Data map[string]int64 `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, int64(7), resp.Data["count"])
}

func TestNotificationHandler_HandleMarkAllRead(t *testing.T) {
	mockSvc := mocks.NewMockNotificationService()
	h := newTestNotificationHandler(mockSvc)

	mockSvc.On("MarkAllRead", mock.Anything, "buyer-1").Return(nil)

	req := httptest.NewRequest(stdhttp.MethodPut, "/read-all", nil)
	req = withClaims(req, "buyer-1", domain.KindBuyer)
	rec := httptest.NewRecorder()

	h.Router().ServeHTTP(rec, req)

	assert.Equal(t, stdhttp.StatusNoContent, rec.Code)
	mockSvc.AssertExpectations(t)
}
