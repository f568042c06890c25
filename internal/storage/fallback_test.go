package storage_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"konferans/backend/internal/models"
	"konferans/backend/internal/storage"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestFallbackStore_UsesPrimaryWhenHealthy(t *testing.T) {
	primary := new(MockStorage)
	secondary := storage.NewMemoryStore(nil)
	s := storage.NewFallbackStore(primary, secondary, zerolog.Nop())

	room := &models.Room{ID: "r1", Users: []string{}}
	primary.On("Get", mock.Anything, "r1").Return(room, nil)

	got, err := s.Get(context.Background(), "r1")

	require.NoError(t, err)
	assert.Same(t, room, got)
	primary.AssertExpectations(t)
}

func TestFallbackStore_DegradesOnUnavailable(t *testing.T) {
	primary := new(MockStorage)
	secondary := storage.NewMemoryStore(nil)
	s := storage.NewFallbackStore(primary, secondary, zerolog.Nop())

	down := fmt.Errorf("%w: connection refused", storage.ErrUnavailable)
	primary.On("Join", mock.Anything, "r1", "alice").Return(storage.JoinResult{}, down)
	primary.On("Get", mock.Anything, "r1").Return(nil, down)

	res, err := s.Join(context.Background(), "r1", "alice")
	require.NoError(t, err)
	assert.True(t, res.Added)

	room, err := s.Get(context.Background(), "r1")
	require.NoError(t, err)
	require.NotNil(t, room)
	assert.Equal(t, []string{"alice"}, room.Users)
}

func TestFallbackStore_PassesThroughOtherErrors(t *testing.T) {
	primary := new(MockStorage)
	secondary := new(MockStorage)
	s := storage.NewFallbackStore(primary, secondary, zerolog.Nop())

	boom := errors.New("decode failure")
	primary.On("Leave", mock.Anything, "r1", "alice").Return(storage.LeaveResult{}, boom)

	_, err := s.Leave(context.Background(), "r1", "alice")

	assert.ErrorIs(t, err, boom)
	secondary.AssertNotCalled(t, "Leave", mock.Anything, mock.Anything, mock.Anything)
}
