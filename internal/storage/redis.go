package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"konferans/backend/internal/config"
	"konferans/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

// Every write runs as one Lua script, so a room's read-modify-write is atomic on
// the Redis side and distinct rooms never contend.
// Room layout: a hash {prefix}{id} with start_time (unix ms), credits and owner,
// plus a list {prefix}{id}:users in first-join order. Replies carry the room
// state as {start_time, credits, owner, users...} after the operation flags.

const snapshotLua = `
local function snapshot(reply)
	local meta = redis.call('HMGET', KEYS[1], 'start_time', 'credits', 'owner')
	table.insert(reply, meta[1])
	table.insert(reply, meta[2])
	table.insert(reply, meta[3] or '')
	for _, u in ipairs(redis.call('LRANGE', KEYS[2], 0, -1)) do
		table.insert(reply, u)
	end
	return reply
end
`

var createScript = redis.NewScript(snapshotLua + `
redis.call('DEL', KEYS[1], KEYS[2])
redis.call('HSET', KEYS[1], 'start_time', ARGV[1], 'credits', '0')
redis.call('EXPIRE', KEYS[1], ARGV[2])
return snapshot({})
`)

var getScript = redis.NewScript(snapshotLua + `
if redis.call('EXISTS', KEYS[1]) == 0 then
	return {0}
end
return snapshot({1})
`)

var addCreditScript = redis.NewScript(snapshotLua + `
if redis.call('EXISTS', KEYS[1]) == 0 then
	return {0}
end
redis.call('HINCRBY', KEYS[1], 'credits', 1)
redis.call('EXPIRE', KEYS[1], ARGV[1])
redis.call('EXPIRE', KEYS[2], ARGV[1])
return snapshot({1})
`)

var joinScript = redis.NewScript(snapshotLua + `
local created = 0
if redis.call('EXISTS', KEYS[1]) == 0 then
	redis.call('DEL', KEYS[2])
	redis.call('HSET', KEYS[1], 'start_time', ARGV[1], 'credits', '0')
	created = 1
end
local added = 1
for _, u in ipairs(redis.call('LRANGE', KEYS[2], 0, -1)) do
	if u == ARGV[3] then
		added = 0
		break
	end
end
if added == 1 then
	redis.call('RPUSH', KEYS[2], ARGV[3])
end
redis.call('EXPIRE', KEYS[1], ARGV[2])
redis.call('EXPIRE', KEYS[2], ARGV[2])
return snapshot({created, added})
`)

var leaveScript = redis.NewScript(snapshotLua + `
if redis.call('EXISTS', KEYS[1]) == 0 then
	return {0, 0, 0}
end
local removed = redis.call('LREM', KEYS[2], 1, ARGV[2])
if removed == 0 then
	return snapshot({1, 0, 0})
end
if redis.call('LLEN', KEYS[2]) == 0 then
	redis.call('DEL', KEYS[1], KEYS[2])
	return {1, 1, 1}
end
redis.call('EXPIRE', KEYS[1], ARGV[1])
redis.call('EXPIRE', KEYS[2], ARGV[1])
return snapshot({1, 1, 0})
`)

// RedisStore keeps rooms in Redis with a native storage TTL.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	now       Clock
	ttl       time.Duration
}

// NewRedisStore wraps client. An empty prefix defaults to "room:".
func NewRedisStore(client *redis.Client, keyPrefix string, now Clock) *RedisStore {
	if client == nil {
		panic("redis client cannot be nil for RedisStore")
	}
	if keyPrefix == "" {
		keyPrefix = "room:"
	}
	if now == nil {
		now = time.Now
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		now:       now,
		ttl:       config.RoomTTL,
	}
}

func (s *RedisStore) keys(id string) []string {
	meta := s.keyPrefix + id
	return []string{meta, meta + ":users"}
}

func (s *RedisStore) ttlSeconds() int64 {
	return int64(s.ttl / time.Second)
}

func unavailable(op, id string, err error) error {
	return fmt.Errorf("%w: redis %s %s: %w", ErrUnavailable, op, id, err)
}

func (s *RedisStore) Create(ctx context.Context, id string) (*models.Room, error) {
	vals, err := createScript.Run(ctx, s.client, s.keys(id), s.now().UnixMilli(), s.ttlSeconds()).Slice()
	if err != nil {
		return nil, unavailable("create", id, err)
	}
	return parseRoom(id, vals)
}

func (s *RedisStore) Get(ctx context.Context, id string) (*models.Room, error) {
	vals, err := getScript.Run(ctx, s.client, s.keys(id)).Slice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, unavailable("get", id, err)
	}
	if flag(vals, 0) == 0 {
		return nil, nil
	}
	return parseRoom(id, vals[1:])
}

func (s *RedisStore) AddCredit(ctx context.Context, id string) (*models.Room, error) {
	vals, err := addCreditScript.Run(ctx, s.client, s.keys(id), s.ttlSeconds()).Slice()
	if err != nil {
		return nil, unavailable("add_credit", id, err)
	}
	if flag(vals, 0) == 0 {
		return nil, nil
	}
	return parseRoom(id, vals[1:])
}

func (s *RedisStore) Join(ctx context.Context, id, username string) (JoinResult, error) {
	vals, err := joinScript.Run(ctx, s.client, s.keys(id), s.now().UnixMilli(), s.ttlSeconds(), username).Slice()
	if err != nil {
		return JoinResult{}, unavailable("join", id, err)
	}
	if len(vals) < 2 {
		return JoinResult{}, fmt.Errorf("redis join %s: short reply", id)
	}
	room, err := parseRoom(id, vals[2:])
	if err != nil {
		return JoinResult{}, err
	}
	return JoinResult{
		Room:    room,
		Created: flag(vals, 0) == 1,
		Added:   flag(vals, 1) == 1,
	}, nil
}

func (s *RedisStore) Leave(ctx context.Context, id, username string) (LeaveResult, error) {
	vals, err := leaveScript.Run(ctx, s.client, s.keys(id), s.ttlSeconds(), username).Slice()
	if err != nil {
		return LeaveResult{}, unavailable("leave", id, err)
	}
	if flag(vals, 0) == 0 {
		return LeaveResult{}, nil
	}
	res := LeaveResult{
		Removed: flag(vals, 1) == 1,
		Deleted: flag(vals, 2) == 1,
	}
	if res.Deleted {
		return res, nil
	}
	if res.Room, err = parseRoom(id, vals[3:]); err != nil {
		return LeaveResult{}, err
	}
	return res, nil
}

// TTL reports the remaining storage lifetime of the room entry.
func (s *RedisStore) TTL(ctx context.Context, id string) (time.Duration, error) {
	d, err := s.client.TTL(ctx, s.keys(id)[0]).Result()
	if err != nil {
		return 0, unavailable("ttl", id, err)
	}
	return d, nil
}

func flag(vals []any, i int) int64 {
	if i >= len(vals) {
		return 0
	}
	n, _ := toInt64(vals[i])
	return n
}

func toInt64(v any) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("unexpected reply type %T", v)
	}
}

// parseRoom decodes {start_time, credits, owner, users...}.
func parseRoom(id string, vals []any) (*models.Room, error) {
	if len(vals) < 3 {
		return nil, fmt.Errorf("redis room %s: short reply", id)
	}
	startMs, err := toInt64(vals[0])
	if err != nil {
		return nil, fmt.Errorf("redis room %s: start_time: %w", id, err)
	}
	credits, err := toInt64(vals[1])
	if err != nil {
		return nil, fmt.Errorf("redis room %s: credits: %w", id, err)
	}

	room := models.NewRoom(id, time.UnixMilli(startMs))
	room.Credits = int(credits)
	if owner, ok := vals[2].(string); ok && owner != "" {
		room.Owner = &owner
	}
	for _, v := range vals[3:] {
		if u, ok := v.(string); ok {
			room.Users = append(room.Users, u)
		}
	}
	return room, nil
}
