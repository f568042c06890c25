package storage

import (
	"context"
	"errors"

	"konferans/backend/internal/models"

	"github.com/rs/zerolog"
)

// FallbackStore serves from primary and switches a call to secondary when the
// primary backend is unavailable. Rooms written during an outage live only in
// secondary; there is no reconciliation once primary recovers.
type FallbackStore struct {
	primary   Storage
	secondary Storage
	log       zerolog.Logger
}

// NewFallbackStore builds a degraded-mode wrapper around primary.
func NewFallbackStore(primary, secondary Storage, logger zerolog.Logger) *FallbackStore {
	return &FallbackStore{
		primary:   primary,
		secondary: secondary,
		log:       logger.With().Str("component", "fallback_store").Logger(),
	}
}

func (s *FallbackStore) degrade(op, id string, err error) bool {
	if !errors.Is(err, ErrUnavailable) {
		return false
	}
	s.log.Warn().Err(err).Str("op", op).Str("room_id", id).Msg("Primary room store unavailable, using in-process store")
	return true
}

func (s *FallbackStore) Create(ctx context.Context, id string) (*models.Room, error) {
	room, err := s.primary.Create(ctx, id)
	if s.degrade("create", id, err) {
		return s.secondary.Create(ctx, id)
	}
	return room, err
}

func (s *FallbackStore) Get(ctx context.Context, id string) (*models.Room, error) {
	room, err := s.primary.Get(ctx, id)
	if s.degrade("get", id, err) {
		return s.secondary.Get(ctx, id)
	}
	return room, err
}

func (s *FallbackStore) AddCredit(ctx context.Context, id string) (*models.Room, error) {
	room, err := s.primary.AddCredit(ctx, id)
	if s.degrade("add_credit", id, err) {
		return s.secondary.AddCredit(ctx, id)
	}
	return room, err
}

func (s *FallbackStore) Join(ctx context.Context, id, username string) (JoinResult, error) {
	res, err := s.primary.Join(ctx, id, username)
	if s.degrade("join", id, err) {
		return s.secondary.Join(ctx, id, username)
	}
	return res, err
}

func (s *FallbackStore) Leave(ctx context.Context, id, username string) (LeaveResult, error) {
	res, err := s.primary.Leave(ctx, id, username)
	if s.degrade("leave", id, err) {
		return s.secondary.Leave(ctx, id, username)
	}
	return res, err
}
