package signaling_test

import (
	"encoding/json"
	"sync"
	"time"

	"konferans/backend/internal/models"
)

// MockClient records everything the relay sends to it.
type MockClient struct {
	id string

	mu       sync.Mutex
	roomID   string
	username string
	joined   bool
	closed   bool
	received []models.Envelope
	full     bool
}

func newMockClient(id string) *MockClient {
	return &MockClient{id: id}
}

func (c *MockClient) GetClientID() string { return c.id }

func (c *MockClient) GetMembership() (string, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID, c.username, c.joined
}

func (c *MockClient) SetMembership(roomID, username string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID, c.username, c.joined = roomID, username, true
}

func (c *MockClient) ClearMembership() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID, c.username, c.joined = "", "", false
}

func (c *MockClient) Send(env models.Envelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.full {
		return false
	}
	c.received = append(c.received, env)
	return true
}

func (c *MockClient) Run() {}

func (c *MockClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *MockClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Drain returns and forgets everything received so far.
func (c *MockClient) Drain() []models.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.received
	c.received = nil
	return out
}

func events(envs []models.Envelope) []string {
	out := make([]string, 0, len(envs))
	for _, e := range envs {
		out = append(out, e.Event)
	}
	return out
}

func message(env models.Envelope) string {
	var p models.NoticePayload
	_ = json.Unmarshal(env.Data, &p)
	return p.Message
}

func username(env models.Envelope) string {
	var p models.UserPayload
	_ = json.Unmarshal(env.Data, &p)
	return p.Username
}

func frame(event string, data any) []byte {
	env, err := models.NewEnvelope(event, data)
	if err != nil {
		panic(err)
	}
	raw, err := json.Marshal(env)
	if err != nil {
		panic(err)
	}
	return raw
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
