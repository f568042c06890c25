package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"konferans/backend/internal/api/handler"
	"konferans/backend/internal/models"
	"konferans/backend/internal/rooms"
	"konferans/backend/internal/signaling"
	"konferans/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
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

type fixture struct {
	router  *gin.Engine
	handler *handler.Handler
	store   *storage.MemoryStore
	clock   *fakeClock
	manager *signaling.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clock := &fakeClock{now: time.Now()}
	store := storage.NewMemoryStore(clock.Now)
	relay := signaling.NewRelay(store, signaling.NewGroups(zerolog.Nop()), clock.Now, zerolog.Nop())
	manager := signaling.NewManager(zerolog.Nop())
	go manager.Run()
	t.Cleanup(manager.Stop)

	h := handler.NewHandler(rooms.NewService(store, clock.Now), relay, manager, secret, zerolog.Nop())
	r := gin.New()
	h.RegisterRoutes(r)

	return &fixture{router: r, handler: h, store: store, clock: clock, manager: manager}
}

func (f *fixture) do(method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) createRoom(t *testing.T) (string, string) {
	t.Helper()
	w := f.do(http.MethodPost, "/rooms", "")
	require.Equal(t, http.StatusCreated, w.Code)

	var body struct {
		RoomID     string `json:"room_id"`
		OwnerToken string `json:"owner_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.RoomID, 8)
	require.NotEmpty(t, body.OwnerToken)
	return body.RoomID, body.OwnerToken
}

type roomBody struct {
	RoomID         string  `json:"room_id"`
	ElapsedMinutes float64 `json:"elapsed_minutes"`
	Credits        int     `json:"credits"`
	IsOwner        bool    `json:"is_owner"`
}

func decodeRoom(t *testing.T, w *httptest.ResponseRecorder) roomBody {
	t.Helper()
	var body roomBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestCreateAndViewRoom(t *testing.T) {
	f := newFixture(t)
	roomID, token := f.createRoom(t)

	room, err := f.store.Get(context.Background(), roomID)
	require.NoError(t, err)
	require.NotNil(t, room)
	assert.Empty(t, room.Users)

	f.clock.Advance(12 * time.Minute)
	w := f.do(http.MethodGet, "/rooms/"+roomID, token)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeRoom(t, w)
	assert.Equal(t, roomID, body.RoomID)
	assert.InDelta(t, 12.0, body.ElapsedMinutes, 0.001)
	assert.Equal(t, 0, body.Credits)
	assert.True(t, body.IsOwner)

	w = f.do(http.MethodGet, "/rooms/"+roomID, "")
	assert.False(t, decodeRoom(t, w).IsOwner)
}

func TestOwnerTokenIsBoundToRoom(t *testing.T) {
	f := newFixture(t)
	roomA, tokenA := f.createRoom(t)
	roomB, _ := f.createRoom(t)
	require.NotEqual(t, roomA, roomB)

	w := f.do(http.MethodGet, "/rooms/"+roomB, tokenA)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decodeRoom(t, w).IsOwner)

	w = f.do(http.MethodGet, "/rooms/"+roomA, "not-a-jwt")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decodeRoom(t, w).IsOwner)
}

func TestGetRoom_NotFound(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/rooms/missing", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetRoom_ExpiredUntilCredited(t *testing.T) {
	f := newFixture(t)
	roomID, _ := f.createRoom(t)

	f.clock.Advance(41 * time.Minute)
	w := f.do(http.MethodGet, "/rooms/"+roomID, "")
	assert.Equal(t, http.StatusGone, w.Code)

	w = f.do(http.MethodPost, "/rooms/"+roomID+"/credits", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(http.MethodGet, "/rooms/"+roomID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decodeRoom(t, w).Credits)
}

func TestAddCredit_UnknownRoomIsNoop(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/rooms/ghost/credits", "")

	assert.Equal(t, http.StatusNoContent, w.Code)
	room, err := f.store.Get(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, room)
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	env, err := models.NewEnvelope(event, data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(env))
}

func recv(t *testing.T, conn *websocket.Conn) models.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env models.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestWebSocketSignalingRoundTrip(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()
	roomID, _ := f.createRoom(t)

	alice := dial(t, srv)
	send(t, alice, models.EventJoin, map[string]string{"room": roomID, "username": "alice"})
	env := recv(t, alice)
	assert.Equal(t, models.EventUserJoined, env.Event)
	assert.JSONEq(t, `{"username":"alice"}`, string(env.Data))

	bob := dial(t, srv)
	send(t, bob, models.EventJoin, map[string]string{"room": roomID, "username": "bob"})
	assert.JSONEq(t, `{"username":"bob"}`, string(recv(t, alice).Data))
	assert.JSONEq(t, `{"username":"bob"}`, string(recv(t, bob).Data))

	offer := map[string]any{"room": roomID, "offer": map[string]string{"type": "offer", "sdp": "v=0"}}
	send(t, bob, models.EventOffer, offer)
	env = recv(t, alice)
	assert.Equal(t, models.EventOffer, env.Event)
	want, _ := json.Marshal(offer)
	assert.JSONEq(t, string(want), string(env.Data))

	send(t, alice, models.EventJoin, map[string]string{"room": roomID, "username": "   "})
	env = recv(t, alice)
	assert.Equal(t, models.EventError, env.Event)
	assert.JSONEq(t, `{"message":"Invalid username"}`, string(env.Data))

	require.NoError(t, bob.Close())
	env = recv(t, alice)
	assert.Equal(t, models.EventUserLeft, env.Event)
	assert.JSONEq(t, `{"username":"bob"}`, string(env.Data))

	assert.Eventually(t, func() bool {
		room, err := f.store.Get(context.Background(), roomID)
		return err == nil && room != nil && len(room.Users) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestWebSocketOriginAllowList(t *testing.T) {
	f := newFixture(t)
	f.handler.AllowedOrigins = []string{"https://meet.example.com"}
	srv := httptest.NewServer(f.router)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://meet.example.com"}})
	require.NoError(t, err)
	conn.Close()
}
