// Package signaling relays WebRTC handshake messages between the participants
// of a room. It never inspects offer/answer/candidate blobs beyond the room
// field used for routing.
//
// Failure policy: join and leave report a generic error to the requester;
// offer, answer and ice_candidate are best-effort and only log failures.
package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"konferans/backend/internal/config"
	"konferans/backend/internal/models"
	"konferans/backend/internal/rooms"
	"konferans/backend/internal/storage"

	"github.com/rs/zerolog"
)

const (
	msgInvalidUsername = "Invalid username"
	msgJoinFailed      = "Failed to join room"
	msgLeaveFailed     = "Failed to leave room"
)

var errMalformed = errors.New("malformed payload")

// Relay is the event state machine behind every signaling connection.
type Relay struct {
	store   storage.Storage
	groups  *Groups
	now     storage.Clock
	timeout time.Duration
	log     zerolog.Logger
}

// NewRelay wires the relay to a Room Store and broadcast groups. A nil clock means time.Now.
func NewRelay(store storage.Storage, groups *Groups, now storage.Clock, logger zerolog.Logger) *Relay {
	if now == nil {
		now = time.Now
	}
	return &Relay{
		store:   store,
		groups:  groups,
		now:     now,
		timeout: config.StorageCallTimeout,
		log:     logger.With().Str("component", "relay").Logger(),
	}
}

// Groups exposes the broadcast groups the relay fans out to.
func (r *Relay) Groups() *Groups {
	return r.groups
}

// NormalizeUsername trims surrounding whitespace and keeps at most 20 characters.
func NormalizeUsername(raw string) string {
	name := strings.TrimSpace(raw)
	if utf8.RuneCountInString(name) <= config.MaxUsernameLength {
		return name
	}
	return string([]rune(name)[:config.MaxUsernameLength])
}

// Handle decodes one inbound frame and dispatches it. It never panics and never
// returns an error: everything is converted into notices or log lines.
func (r *Relay) Handle(ctx context.Context, c Client, frame []byte) {
	var env models.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		r.log.Warn().Err(err).Str("client_id", c.GetClientID()).Msg("Dropping undecodable frame")
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Str("client_id", c.GetClientID()).Str("event", env.Event).Interface("panic", rec).Msg("Recovered from panic in event handler")
			switch env.Event {
			case models.EventJoin:
				r.groups.SendTo(c, models.NoticeEnvelope(models.EventError, msgJoinFailed))
			case models.EventLeave:
				r.groups.SendTo(c, models.NoticeEnvelope(models.EventError, msgLeaveFailed))
			}
		}
	}()

	switch env.Event {
	case models.EventJoin:
		r.Join(ctx, c, env.Data)
	case models.EventLeave:
		r.Leave(ctx, c, env.Data)
	case models.EventOffer:
		r.Offer(ctx, c, env.Data)
	case models.EventAnswer:
		r.Answer(ctx, c, env.Data)
	case models.EventICECandidate:
		r.ICECandidate(ctx, c, env.Data)
	default:
		r.log.Debug().Str("client_id", c.GetClientID()).Str("event", env.Event).Msg("Ignoring unknown event")
	}
}

func decodeMembership(data json.RawMessage) (roomID, username string, err error) {
	var p models.MembershipPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return "", "", fmt.Errorf("%w: %v", errMalformed, err)
	}
	if p.Room == nil || *p.Room == "" || p.Username == nil {
		return "", "", fmt.Errorf("%w: room and username are required", errMalformed)
	}
	return *p.Room, NormalizeUsername(*p.Username), nil
}

func decodeRoom(data json.RawMessage) (string, error) {
	var p models.RoomPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return "", fmt.Errorf("%w: %v", errMalformed, err)
	}
	if p.Room == nil || *p.Room == "" {
		return "", fmt.Errorf("%w: room is required", errMalformed)
	}
	return *p.Room, nil
}

func (r *Relay) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

// Join subscribes c to the room, upserts the membership and announces new users.
func (r *Relay) Join(ctx context.Context, c Client, data json.RawMessage) {
	roomID, username, err := decodeMembership(data)
	if err != nil {
		r.log.Warn().Err(err).Str("client_id", c.GetClientID()).Msg("Rejecting join")
		r.groups.SendTo(c, models.NoticeEnvelope(models.EventError, msgJoinFailed))
		return
	}
	if username == "" {
		r.groups.SendTo(c, models.NoticeEnvelope(models.EventError, msgInvalidUsername))
		return
	}

	// One membership per connection: a join elsewhere first leaves the old room.
	if prevRoom, prevUser, ok := c.GetMembership(); ok && (prevRoom != roomID || prevUser != username) {
		r.release(ctx, c, prevRoom, prevUser)
	}

	wasSubscribed := r.groups.IsMember(roomID, c)
	r.groups.Join(roomID, c)

	sctx, cancel := r.withTimeout(ctx)
	res, err := r.store.Join(sctx, roomID, username)
	cancel()
	if err != nil {
		if !wasSubscribed {
			r.groups.Leave(roomID, c)
		}
		r.log.Error().Err(err).Str("room_id", roomID).Str("client_id", c.GetClientID()).Msg("Failed to join room")
		r.groups.SendTo(c, models.NoticeEnvelope(models.EventError, msgJoinFailed))
		return
	}

	c.SetMembership(roomID, username)
	if res.Created {
		r.log.Warn().Str("room_id", roomID).Str("username", username).Msg("Join re-created a room that was not in the store")
	}
	if res.Added {
		env, _ := models.NewEnvelope(models.EventUserJoined, models.UserPayload{Username: username})
		r.groups.Broadcast(roomID, env, nil)
		r.log.Info().Str("room_id", roomID).Str("username", username).Int("members", len(res.Room.Users)).Msg("User joined")
	}
}

// Leave unsubscribes c, removes the user from the room and notifies whoever remains.
func (r *Relay) Leave(ctx context.Context, c Client, data json.RawMessage) {
	roomID, username, err := decodeMembership(data)
	if err != nil {
		r.log.Warn().Err(err).Str("client_id", c.GetClientID()).Msg("Rejecting leave")
		r.groups.SendTo(c, models.NoticeEnvelope(models.EventError, msgLeaveFailed))
		return
	}

	if err := r.leave(ctx, c, roomID, username); err != nil {
		r.log.Error().Err(err).Str("room_id", roomID).Str("client_id", c.GetClientID()).Msg("Failed to leave room")
		r.groups.SendTo(c, models.NoticeEnvelope(models.EventError, msgLeaveFailed))
	}
}

func (r *Relay) leave(ctx context.Context, c Client, roomID, username string) error {
	r.groups.Leave(roomID, c)
	if curRoom, curUser, ok := c.GetMembership(); ok && curRoom == roomID && curUser == username {
		c.ClearMembership()
	}

	sctx, cancel := r.withTimeout(ctx)
	res, err := r.store.Leave(sctx, roomID, username)
	cancel()
	if err != nil {
		return err
	}

	switch {
	case res.Deleted:
		r.log.Info().Str("room_id", roomID).Str("username", username).Msg("Last user left, room deleted")
	case res.Removed:
		env, _ := models.NewEnvelope(models.EventUserLeft, models.UserPayload{Username: username})
		r.groups.Broadcast(roomID, env, nil)
		r.log.Info().Str("room_id", roomID).Str("username", username).Int("members", len(res.Room.Users)).Msg("User left")
	}
	return nil
}

// sharedMembership reports whether a connection other than c is subscribed to
// roomID under the same username.
func (r *Relay) sharedMembership(c Client, roomID, username string) bool {
	for _, m := range r.groups.Members(roomID) {
		if m.GetClientID() == c.GetClientID() {
			continue
		}
		if mRoom, mUser, ok := m.GetMembership(); ok && mRoom == roomID && mUser == username {
			return true
		}
	}
	return false
}

// release leaves roomID on behalf of c without reporting failures to it. The
// username stays in the room while another connection still holds it.
func (r *Relay) release(ctx context.Context, c Client, roomID, username string) {
	if r.sharedMembership(c, roomID, username) {
		r.groups.Leave(roomID, c)
		c.ClearMembership()
		r.log.Debug().Str("room_id", roomID).Str("username", username).Str("client_id", c.GetClientID()).Msg("Username still held by another connection, keeping membership")
		return
	}
	if err := r.leave(ctx, c, roomID, username); err != nil {
		r.log.Error().Err(err).Str("room_id", roomID).Str("client_id", c.GetClientID()).Msg("Failed to release membership")
	}
}

// Disconnect runs the leave cleanup for a connection that went away without leaving.
func (r *Relay) Disconnect(ctx context.Context, c Client) {
	roomID, username, ok := c.GetMembership()
	if !ok {
		return
	}
	r.log.Debug().Str("room_id", roomID).Str("client_id", c.GetClientID()).Msg("Cleaning up after disconnect")
	r.release(ctx, c, roomID, username)
}

// Offer forwards the call offer to everyone else in the room. Offers are never
// subject to the free-session check, so a call can always be initiated.
func (r *Relay) Offer(_ context.Context, c Client, data json.RawMessage) {
	roomID, err := decodeRoom(data)
	if err != nil {
		r.log.Warn().Err(err).Str("client_id", c.GetClientID()).Str("event", models.EventOffer).Msg("Dropping signal")
		return
	}
	r.forward(c, roomID, models.EventOffer, data)
}

// Answer forwards an answer unless the room's free session is over.
func (r *Relay) Answer(ctx context.Context, c Client, data json.RawMessage) {
	r.relayGuarded(ctx, c, models.EventAnswer, data)
}

// ICECandidate forwards a candidate unless the room's free session is over.
func (r *Relay) ICECandidate(ctx context.Context, c Client, data json.RawMessage) {
	r.relayGuarded(ctx, c, models.EventICECandidate, data)
}

func (r *Relay) relayGuarded(ctx context.Context, c Client, event string, data json.RawMessage) {
	logger := r.log.With().Str("client_id", c.GetClientID()).Str("event", event).Logger()

	roomID, err := decodeRoom(data)
	if err != nil {
		logger.Warn().Err(err).Msg("Dropping signal")
		return
	}

	sctx, cancel := r.withTimeout(ctx)
	room, err := r.store.Get(sctx, roomID)
	cancel()
	if err != nil {
		logger.Error().Err(err).Str("room_id", roomID).Msg("Room lookup failed, dropping signal")
		return
	}

	if room != nil {
		d := rooms.Evaluate(room, r.now())
		switch d.Verdict {
		case rooms.Expired:
			r.groups.SendTo(c, models.NoticeEnvelope(models.EventError, rooms.ExpiredMessage))
			r.groups.Leave(roomID, c)
			logger.Info().Str("room_id", roomID).Float64("elapsed_minutes", d.ElapsedMinutes).Msg("Free session expired, sender ejected")
			return
		case rooms.Warn:
			r.groups.Broadcast(roomID, models.NoticeEnvelope(models.EventWarning, rooms.WarningMessage(d.RemainingMinutes)), nil)
		}
	}

	r.forward(c, roomID, event, data)
}

func (r *Relay) forward(c Client, roomID, event string, data json.RawMessage) {
	env := models.Envelope{Event: event, Data: data}
	n := r.groups.Broadcast(roomID, env, c)
	r.log.Debug().Str("room_id", roomID).Str("event", event).Int("recipients", n).Msg("Signal forwarded")
}
