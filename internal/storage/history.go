package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"konferans/backend/internal/models"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// History records room lifetimes for operators. It is never read by the relay.
type History interface {
	RoomStarted(ctx context.Context, room *models.Room, recreated bool) error
	ParticipantJoined(ctx context.Context, roomID, username string) error
	CreditsChanged(ctx context.Context, roomID string, credits int) error
	RoomClosed(ctx context.Context, roomID string, at time.Time) error
	Recent(ctx context.Context, limit int) ([]models.RoomSession, error)
}

// PostgresHistory stores RoomSession rows through gorm.
type PostgresHistory struct {
	DB *gorm.DB
}

// NewPostgresHistory migrates the history table and returns the recorder.
func NewPostgresHistory(db *gorm.DB) (*PostgresHistory, error) {
	if err := db.AutoMigrate(&models.RoomSession{}); err != nil {
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return &PostgresHistory{DB: db}, nil
}

// openSession scopes a query to the latest session of roomID that has not ended.
func (h *PostgresHistory) openSession(ctx context.Context, roomID string) *gorm.DB {
	latest := h.DB.WithContext(ctx).Model(&models.RoomSession{}).
		Select("id").
		Where("room_id = ? AND ended_at IS NULL", roomID).
		Order("started_at desc").
		Limit(1)
	return h.DB.WithContext(ctx).Model(&models.RoomSession{}).Where("id = (?)", latest)
}

func (h *PostgresHistory) RoomStarted(ctx context.Context, room *models.Room, recreated bool) error {
	// A room id replaced by create closes whatever session was still open under it.
	if err := h.RoomClosed(ctx, room.ID, room.StartTime); err != nil {
		return err
	}
	session := models.RoomSession{
		RoomID:       room.ID,
		Participants: append([]string{}, room.Users...),
		Credits:      room.Credits,
		StartedAt:    room.StartTime,
		Recreated:    recreated,
	}
	if err := h.DB.WithContext(ctx).Create(&session).Error; err != nil {
		return fmt.Errorf("history: start %s: %w", room.ID, err)
	}
	return nil
}

func (h *PostgresHistory) ParticipantJoined(ctx context.Context, roomID, username string) error {
	err := h.openSession(ctx, roomID).
		Where("NOT (? = ANY(participants))", username).
		Update("participants", gorm.Expr("array_append(participants, ?)", username)).Error
	if err != nil {
		return fmt.Errorf("history: join %s: %w", roomID, err)
	}
	return nil
}

func (h *PostgresHistory) CreditsChanged(ctx context.Context, roomID string, credits int) error {
	if err := h.openSession(ctx, roomID).Update("credits", credits).Error; err != nil {
		return fmt.Errorf("history: credits %s: %w", roomID, err)
	}
	return nil
}

func (h *PostgresHistory) RoomClosed(ctx context.Context, roomID string, at time.Time) error {
	if err := h.openSession(ctx, roomID).Update("ended_at", at).Error; err != nil {
		return fmt.Errorf("history: close %s: %w", roomID, err)
	}
	return nil
}

func (h *PostgresHistory) Recent(ctx context.Context, limit int) ([]models.RoomSession, error) {
	var sessions []models.RoomSession
	err := h.DB.WithContext(ctx).Order("started_at desc").Limit(limit).Find(&sessions).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	return sessions, nil
}

// HistoryStore records successful writes of the wrapped Storage into a History.
// Recording is best-effort: failures are logged and never change the result.
type HistoryStore struct {
	Storage
	history History
	now     Clock
	log     zerolog.Logger
}

// WithHistory decorates store so room lifetimes land in history.
func WithHistory(store Storage, history History, now Clock, logger zerolog.Logger) *HistoryStore {
	if now == nil {
		now = time.Now
	}
	return &HistoryStore{
		Storage: store,
		history: history,
		now:     now,
		log:     logger.With().Str("component", "history").Logger(),
	}
}

func (s *HistoryStore) record(roomID string, err error) {
	if err != nil {
		s.log.Error().Err(err).Str("room_id", roomID).Msg("Failed to record room history")
	}
}

func (s *HistoryStore) Create(ctx context.Context, id string) (*models.Room, error) {
	room, err := s.Storage.Create(ctx, id)
	if err == nil && room != nil {
		s.record(id, s.history.RoomStarted(ctx, room, false))
	}
	return room, err
}

func (s *HistoryStore) AddCredit(ctx context.Context, id string) (*models.Room, error) {
	room, err := s.Storage.AddCredit(ctx, id)
	if err == nil && room != nil {
		s.record(id, s.history.CreditsChanged(ctx, id, room.Credits))
	}
	return room, err
}

func (s *HistoryStore) Join(ctx context.Context, id, username string) (JoinResult, error) {
	res, err := s.Storage.Join(ctx, id, username)
	if err != nil {
		return res, err
	}
	if res.Created {
		s.record(id, s.history.RoomStarted(ctx, res.Room, true))
	} else if res.Added {
		s.record(id, s.history.ParticipantJoined(ctx, id, username))
	}
	return res, nil
}

func (s *HistoryStore) Leave(ctx context.Context, id, username string) (LeaveResult, error) {
	res, err := s.Storage.Leave(ctx, id, username)
	if err == nil && res.Deleted {
		s.record(id, s.history.RoomClosed(ctx, id, s.now()))
	}
	return res, err
}
