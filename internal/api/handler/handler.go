package handler

import (
	"net/http"

	"konferans/backend/internal/rooms"
	"konferans/backend/internal/signaling"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Handler holds the services behind the HTTP surface.
type Handler struct {
	Rooms   *rooms.Service
	Relay   *signaling.Relay
	Manager *signaling.Manager
	Secret  []byte

	// AllowedOrigins restricts WebSocket upgrades; empty accepts any origin.
	AllowedOrigins []string

	log zerolog.Logger
}

func NewHandler(roomsSvc *rooms.Service, relay *signaling.Relay, manager *signaling.Manager, secret []byte, logger zerolog.Logger) *Handler {
	return &Handler{
		Rooms:   roomsSvc,
		Relay:   relay,
		Manager: manager,
		Secret:  secret,
		log:     logger.With().Str("component", "http").Logger(),
	}
}

// RegisterRoutes mounts every endpoint on r.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", h.Health)

	r.POST("/rooms", h.CreateRoom)
	r.GET("/rooms/:id", h.GetRoom)
	r.POST("/rooms/:id/credits", h.AddCredit)

	r.GET("/ws", h.ServeWebSocket)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": h.Manager.Count()})
}
