package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// RoomSession is the Postgres record of a room's lifetime, kept for operators.
// It is history only; live room state never reads from it.
type RoomSession struct {
	// ID identifies one lifetime of a room. Room ids may repeat after deletion.
	ID     string `gorm:"primaryKey" json:"id"`
	RoomID string `gorm:"type:text;not null;index" json:"room_id"`
	// Participants lists every username that joined, in first-join order.
	Participants pq.StringArray `gorm:"type:text[]" json:"participants"`
	// Credits mirrors the room counter at the last recorded write.
	Credits   int        `json:"credits"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	// Recreated is true when the session began with a join on an unknown id.
	Recreated bool `json:"recreated"`
}

// BeforeCreate assigns a UUID when the session has no ID yet.
func (s *RoomSession) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return
}
