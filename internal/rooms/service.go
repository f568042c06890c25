// Package rooms exposes the operations the page layer needs: creating rooms,
// adding credits and the read-only room view.
package rooms

import (
	"context"
	"fmt"
	"strings"
	"time"

	"konferans/backend/internal/config"
	"konferans/backend/internal/models"
	"konferans/backend/internal/storage"

	"github.com/google/uuid"
)

// Service fronts the Room Store for the HTTP layer and the admin CLI.
type Service struct {
	Storage storage.Storage
	Now     storage.Clock
	NewID   func() string
}

// NewService creates a rooms service. A nil clock means time.Now.
func NewService(s storage.Storage, now storage.Clock) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{Storage: s, Now: now, NewID: NewRoomID}
}

// NewRoomID returns a short random identifier cut from a UUID.
func NewRoomID() string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return id[:config.RoomIDLength]
}

// CreateRoom allocates a fresh room and returns its id.
func (s *Service) CreateRoom(ctx context.Context) (string, error) {
	id := s.NewID()
	if _, err := s.Storage.Create(ctx, id); err != nil {
		return "", fmt.Errorf("create room: %w", err)
	}
	return id, nil
}

// AddCredit adds one credit. Absent rooms are ignored.
func (s *Service) AddCredit(ctx context.Context, roomID string) error {
	if _, err := s.Storage.AddCredit(ctx, roomID); err != nil {
		return fmt.Errorf("add credit to %s: %w", roomID, err)
	}
	return nil
}

// GetRoomView projects the room for display. It returns nil when the room does not exist.
func (s *Service) GetRoomView(ctx context.Context, roomID string) (*models.RoomView, error) {
	room, err := s.Storage.Get(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("get room %s: %w", roomID, err)
	}
	if room == nil {
		return nil, nil
	}

	d := Evaluate(room, s.Now())
	return &models.RoomView{
		RoomID:         room.ID,
		Exists:         true,
		ElapsedMinutes: d.ElapsedMinutes,
		Credits:        room.Credits,
		Expired:        d.Verdict == Expired,
	}, nil
}
