package handler

import (
	"net/http"
	"slices"

	"konferans/backend/internal/signaling"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(h.AllowedOrigins, origin) {
		return true
	}
	h.log.Warn().Str("origin", origin).Msg("Rejecting WebSocket upgrade from unlisted origin")
	return false
}

func (h *Handler) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		HandshakeTimeout: signaling.HandshakeTimeout,
		ReadBufferSize:   signaling.FrameBufferSize,
		WriteBufferSize:  signaling.FrameBufferSize,
		CheckOrigin:      h.checkOrigin,
	}
}

// ServeWebSocket upgrades the request and runs one signaling client on it.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	conn, err := h.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := signaling.NewWebSocketClient(conn, h.Relay, h.Manager, h.log)
	if !h.Manager.Register(client) {
		h.log.Warn().Str("client_id", client.GetClientID()).Msg("Server shutting down, refusing connection")
		_ = conn.Close()
		return
	}

	client.Run()
}
