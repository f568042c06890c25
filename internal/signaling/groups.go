package signaling

import (
	"sync"

	"konferans/backend/internal/models"

	"github.com/rs/zerolog"
)

// Groups maps room ids to the connections subscribed to their broadcasts.
// Fan-out works on a snapshot taken under the read lock, so concurrent
// subscribe/unsubscribe never drops or duplicates delivery within one send.
type Groups struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Client
	log   zerolog.Logger
}

// NewGroups creates an empty group table.
func NewGroups(logger zerolog.Logger) *Groups {
	return &Groups{
		rooms: make(map[string]map[string]Client),
		log:   logger.With().Str("component", "groups").Logger(),
	}
}

// Join subscribes c to roomID. Subscribing twice is harmless.
func (g *Groups) Join(roomID string, c Client) {
	g.mu.Lock()
	defer g.mu.Unlock()

	members, ok := g.rooms[roomID]
	if !ok {
		members = make(map[string]Client)
		g.rooms[roomID] = members
	}
	members[c.GetClientID()] = c
}

// Leave unsubscribes c from roomID and drops the group once it is empty.
func (g *Groups) Leave(roomID string, c Client) {
	g.mu.Lock()
	defer g.mu.Unlock()

	members, ok := g.rooms[roomID]
	if !ok {
		return
	}
	delete(members, c.GetClientID())
	if len(members) == 0 {
		delete(g.rooms, roomID)
	}
}

// IsMember reports whether c is subscribed to roomID.
func (g *Groups) IsMember(roomID string, c Client) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, ok := g.rooms[roomID][c.GetClientID()]
	return ok
}

// Members returns a snapshot of the connections subscribed to roomID.
func (g *Groups) Members(roomID string) []Client {
	g.mu.RLock()
	defer g.mu.RUnlock()

	members := g.rooms[roomID]
	out := make([]Client, 0, len(members))
	for _, c := range members {
		out = append(out, c)
	}
	return out
}

// Broadcast sends env to every member of roomID except exclude (which may be nil)
// and returns how many connections accepted it.
func (g *Groups) Broadcast(roomID string, env models.Envelope, exclude Client) int {
	excludeID := ""
	if exclude != nil {
		excludeID = exclude.GetClientID()
	}

	sent := 0
	for _, c := range g.Members(roomID) {
		if c.GetClientID() == excludeID {
			continue
		}
		if g.SendTo(c, env) {
			sent++
		}
	}
	return sent
}

// SendTo delivers env to a single connection.
func (g *Groups) SendTo(c Client, env models.Envelope) bool {
	if c.Send(env) {
		return true
	}
	g.log.Warn().Str("client_id", c.GetClientID()).Str("event", env.Event).Msg("Client send buffer full or closed, dropping message")
	return false
}
