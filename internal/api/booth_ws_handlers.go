// Package api provides HTTP handlers for booth WebSocket subscriptions.
package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/onnwee/polabooth/internal/middleware"
	"github.com/onnwee/polabooth/internal/photo"
)

// BoothWebSocketHandlers holds dependencies for WebSocket handlers.
type BoothWebSocketHandlers struct {
	broadcaster *photo.Broadcaster
	upgrader    websocket.Upgrader
}

// NewBoothWebSocketHandlers creates a new BoothWebSocketHandlers instance.
// allowedOrigins is the same allowlist the CORS middleware uses; an empty
// list disables the origin check.
func NewBoothWebSocketHandlers(broadcaster *photo.Broadcaster, allowedOrigins []string) *BoothWebSocketHandlers {
	return &BoothWebSocketHandlers{
		broadcaster: broadcaster,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// originChecker builds the upgrade-time origin check. Requests without an
// Origin header (same-origin, non-browser clients) are accepted.
func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowedOrigins) == 0 {
			return true
		}
		for _, allowed := range allowedOrigins {
			if strings.EqualFold(origin, allowed) {
				return true
			}
		}
		return false
	}
}

// SubscribeToBoothEvents handles WebSocket connections for real-time booth updates.
// GET /booth/ws
func (h *BoothWebSocketHandlers) SubscribeToBoothEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Upgrade HTTP connection to WebSocket
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.ErrorContext(ctx, "failed to upgrade websocket connection", "error", err)
		return
	}

	// Subscribe to events
	h.broadcaster.Subscribe(conn)

	requestID := middleware.GetRequestID(ctx)
	slog.InfoContext(ctx, "websocket client subscribed to booth events",
		"request_id", requestID,
	)

	// Handle connection lifecycle
	defer func() {
		h.broadcaster.Unsubscribe(conn)
		conn.Close()
		slog.InfoContext(ctx, "websocket client unsubscribed",
			"request_id", requestID,
		)
	}()

	// Keep connection alive - read messages to detect disconnection
	// We don't expect clients to send messages, but we need to read to detect when they disconnect
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.WarnContext(ctx, "websocket connection closed unexpectedly", "error", err)
			}
			break
		}
	}
}
