package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	wsAdapter "github.com/storefront-labs/notify-relay/internal/adapters/primary/websocket"
	"github.com/storefront-labs/notify-relay/internal/config"
)

// WebSocketHandler upgrades HTTP requests to relay connections. The upgrade
// itself is unauthenticated: identity is announced over the socket and
// trusted as given, with session authentication delegated to the storefront
// backend that issues the page.
type WebSocketHandler struct {
	hub      *wsAdapter.Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *wsAdapter.Hub, cfg *config.Config, logger *slog.Logger) *WebSocketHandler {
	handler := &WebSocketHandler{
		hub:    hub,
		logger: logger,
	}

	handler.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: cfg.WebSocket.WriteBufferSize,
		CheckOrigin:     handler.makeOriginChecker(cfg),
	}

	return handler
}

// makeOriginChecker creates an origin checking function based on configuration
func (h *WebSocketHandler) makeOriginChecker(cfg *config.Config) func(r *http.Request) bool {
	allowedOrigin := cfg.WebSocket.AllowedOrigin

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		// In development mode, allow all origins (but log a warning)
		if cfg.IsDevelopment() {
			if origin != "" {
				h.logger.Warn("allowing websocket connection in development mode",
					"origin", origin,
					"remote_addr", r.RemoteAddr,
				)
			}
			return true
		}

		// No origin header (same-origin request or non-browser client)
		if origin == "" {
			return true
		}

		parsedOrigin, err := url.Parse(origin)
		if err != nil {
			h.logger.Warn("failed to parse websocket origin",
				"origin", origin,
				"error", err,
			)
			return false
		}

		allowed, err := url.Parse(allowedOrigin)
		if err != nil || allowed.Host == "" {
			// Raw host in config rather than a full URL.
			if strings.EqualFold(parsedOrigin.Host, allowedOrigin) {
				return true
			}
		} else if strings.EqualFold(parsedOrigin.Host, allowed.Host) {
			return true
		}

		h.logger.Warn("websocket connection rejected due to origin",
			"origin", origin,
			"remote_addr", r.RemoteAddr,
			"allowed_origin", allowedOrigin,
		)
		return false
	}
}

// ServeHTTP handles WebSocket connection requests
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade websocket connection",
			"request_id", requestID,
			"error", err,
		)
		return
	}

	h.logger.Info("websocket connection established",
		"request_id", requestID,
		"remote_addr", r.RemoteAddr,
	)

	// The connection starts anonymous; an addUser event identifies it.
	client := wsAdapter.NewClient(h.hub, conn, h.logger.With("remote_addr", r.RemoteAddr))

	go client.WritePump()
	go client.ReadPump()
}
