package rooms_test

import (
	"context"
	"testing"
	"time"

	"konferans/backend/internal/config"
	"konferans/backend/internal/rooms"
	"konferans/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newService() (*rooms.Service, *clock) {
	c := &clock{now: t0}
	return rooms.NewService(storage.NewMemoryStore(c.Now), c.Now), c
}

func TestNewRoomID(t *testing.T) {
	a := rooms.NewRoomID()
	b := rooms.NewRoomID()

	assert.Len(t, a, config.RoomIDLength)
	assert.NotEqual(t, a, b)
}

func TestService_CreateRoom(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	id, err := svc.CreateRoom(ctx)
	require.NoError(t, err)

	view, err := svc.GetRoomView(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.True(t, view.Exists)
	assert.Equal(t, id, view.RoomID)
	assert.Equal(t, 0, view.Credits)
	assert.False(t, view.Expired)
}

func TestService_GetRoomViewAbsent(t *testing.T) {
	svc, _ := newService()

	view, err := svc.GetRoomView(context.Background(), "nope")

	assert.NoError(t, err)
	assert.Nil(t, view)
}

func TestService_AddCreditCountsUp(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	id, _ := svc.CreateRoom(ctx)

	for i := 0; i < 4; i++ {
		require.NoError(t, svc.AddCredit(ctx, id))
	}

	view, _ := svc.GetRoomView(ctx, id)
	assert.Equal(t, 4, view.Credits)
	assert.NoError(t, svc.AddCredit(ctx, "absent"))
}

func TestService_ViewAppliesExpiryRule(t *testing.T) {
	svc, c := newService()
	ctx := context.Background()
	id, _ := svc.CreateRoom(ctx)

	c.now = t0.Add(41 * time.Minute)
	view, err := svc.GetRoomView(ctx, id)
	require.NoError(t, err)
	assert.True(t, view.Expired)
	assert.InDelta(t, 41.0, view.ElapsedMinutes, 1e-9)

	require.NoError(t, svc.AddCredit(ctx, id))
	view, _ = svc.GetRoomView(ctx, id)
	assert.False(t, view.Expired)
}
