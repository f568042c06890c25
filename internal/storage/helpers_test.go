package storage_test

import (
	"context"
	"sync"
	"time"

	"konferans/backend/internal/models"
	"konferans/backend/internal/storage"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// MockStorage is a testify mock of storage.Storage.
type MockStorage struct {
	mock.Mock
}

func roomArg(args mock.Arguments, i int) *models.Room {
	if args.Get(i) == nil {
		return nil
	}
	return args.Get(i).(*models.Room)
}

func (m *MockStorage) Create(ctx context.Context, id string) (*models.Room, error) {
	args := m.Called(ctx, id)
	return roomArg(args, 0), args.Error(1)
}

func (m *MockStorage) Get(ctx context.Context, id string) (*models.Room, error) {
	args := m.Called(ctx, id)
	return roomArg(args, 0), args.Error(1)
}

func (m *MockStorage) AddCredit(ctx context.Context, id string) (*models.Room, error) {
	args := m.Called(ctx, id)
	return roomArg(args, 0), args.Error(1)
}

func (m *MockStorage) Join(ctx context.Context, id, username string) (storage.JoinResult, error) {
	args := m.Called(ctx, id, username)
	return args.Get(0).(storage.JoinResult), args.Error(1)
}

func (m *MockStorage) Leave(ctx context.Context, id, username string) (storage.LeaveResult, error) {
	args := m.Called(ctx, id, username)
	return args.Get(0).(storage.LeaveResult), args.Error(1)
}

// MockHistory is a testify mock of storage.History.
type MockHistory struct {
	mock.Mock
}

func (m *MockHistory) RoomStarted(ctx context.Context, room *models.Room, recreated bool) error {
	return m.Called(ctx, room, recreated).Error(0)
}

func (m *MockHistory) ParticipantJoined(ctx context.Context, roomID, username string) error {
	return m.Called(ctx, roomID, username).Error(0)
}

func (m *MockHistory) CreditsChanged(ctx context.Context, roomID string, credits int) error {
	return m.Called(ctx, roomID, credits).Error(0)
}

func (m *MockHistory) RoomClosed(ctx context.Context, roomID string, at time.Time) error {
	return m.Called(ctx, roomID, at).Error(0)
}

func (m *MockHistory) Recent(ctx context.Context, limit int) ([]models.RoomSession, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]models.RoomSession), args.Error(1)
}

func zerologNop() zerolog.Logger {
	return zerolog.Nop()
}
