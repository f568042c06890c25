package handler

import (
	"net/http"

	"konferans/backend/internal/rooms"

	"github.com/gin-gonic/gin"
)

// CreateRoom allocates a room and hands the creator an owner token for it.
func (h *Handler) CreateRoom(c *gin.Context) {
	roomID, err := h.Rooms.CreateRoom(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to create room")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create room"})
		return
	}

	token, err := generateOwnerToken(h.Secret, roomID)
	if err != nil {
		h.log.Error().Err(err).Str("room_id", roomID).Msg("Failed to sign owner token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}

	h.log.Info().Str("room_id", roomID).Msg("Room created")
	c.JSON(http.StatusCreated, gin.H{"room_id": roomID, "owner_token": token})
}

// GetRoom returns the room view. Expired free sessions answer 410.
func (h *Handler) GetRoom(c *gin.Context) {
	roomID := c.Param("id")

	view, err := h.Rooms.GetRoomView(c.Request.Context(), roomID)
	if err != nil {
		h.log.Error().Err(err).Str("room_id", roomID).Msg("Failed to load room")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load room"})
		return
	}
	if view == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}
	if view.Expired {
		c.JSON(http.StatusGone, gin.H{"error": rooms.ExpiredMessage})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"room_id":         view.RoomID,
		"elapsed_minutes": view.ElapsedMinutes,
		"credits":         view.Credits,
		"is_owner":        h.isOwner(c, roomID),
	})
}

// AddCredit adds one credit to the room. Unknown rooms are ignored.
func (h *Handler) AddCredit(c *gin.Context) {
	roomID := c.Param("id")

	if err := h.Rooms.AddCredit(c.Request.Context(), roomID); err != nil {
		h.log.Error().Err(err).Str("room_id", roomID).Msg("Failed to add credit")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add credit"})
		return
	}
	c.Status(http.StatusNoContent)
}
