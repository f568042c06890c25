package storage

import (
	"context"
	"slices"
	"sync"
	"time"

	"konferans/backend/internal/config"
	"konferans/backend/internal/models"

	"github.com/rs/zerolog"
)

type memoryEntry struct {
	mu        sync.Mutex
	room      *models.Room
	expiresAt time.Time
	dead      bool
}

// MemoryStore is the in-process Room Store. Each room has its own lock; the
// index lock is only held for map lookups.
// A plain map has no native TTL, so expiry is checked on access and by Sweep.
type MemoryStore struct {
	mu    sync.Mutex
	rooms map[string]*memoryEntry
	now   Clock
	ttl   time.Duration
}

// NewMemoryStore creates an empty store. A nil clock means time.Now.
func NewMemoryStore(now Clock) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		rooms: make(map[string]*memoryEntry),
		now:   now,
		ttl:   config.RoomTTL,
	}
}

// lock returns the locked entry for id. With create set a placeholder entry is
// allocated when none exists; otherwise nil is returned for absent rooms.
func (s *MemoryStore) lock(id string, create bool) *memoryEntry {
	for {
		s.mu.Lock()
		e, ok := s.rooms[id]
		if !ok {
			if !create {
				s.mu.Unlock()
				return nil
			}
			e = &memoryEntry{}
			s.rooms[id] = e
		}
		s.mu.Unlock()

		e.mu.Lock()
		if e.dead {
			e.mu.Unlock()
			continue
		}
		if e.room != nil && !s.now().Before(e.expiresAt) {
			s.removeLocked(id, e)
			e.mu.Unlock()
			continue
		}
		if e.room == nil && !create {
			e.mu.Unlock()
			return nil
		}
		return e
	}
}

// removeLocked drops e from the index. e.mu must be held.
func (s *MemoryStore) removeLocked(id string, e *memoryEntry) {
	e.dead = true
	e.room = nil
	s.mu.Lock()
	if s.rooms[id] == e {
		delete(s.rooms, id)
	}
	s.mu.Unlock()
}

func (s *MemoryStore) touchLocked(e *memoryEntry) {
	e.expiresAt = s.now().Add(s.ttl)
}

func (s *MemoryStore) Create(_ context.Context, id string) (*models.Room, error) {
	e := s.lock(id, true)
	defer e.mu.Unlock()

	e.room = models.NewRoom(id, s.now())
	s.touchLocked(e)
	return e.room.Clone(), nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.Room, error) {
	e := s.lock(id, false)
	if e == nil {
		return nil, nil
	}
	defer e.mu.Unlock()
	return e.room.Clone(), nil
}

func (s *MemoryStore) AddCredit(_ context.Context, id string) (*models.Room, error) {
	e := s.lock(id, false)
	if e == nil {
		return nil, nil
	}
	defer e.mu.Unlock()

	e.room.Credits++
	s.touchLocked(e)
	return e.room.Clone(), nil
}

func (s *MemoryStore) Join(_ context.Context, id, username string) (JoinResult, error) {
	e := s.lock(id, true)
	defer e.mu.Unlock()

	var res JoinResult
	if e.room == nil {
		e.room = models.NewRoom(id, s.now())
		res.Created = true
	}
	if !e.room.HasUser(username) {
		e.room.Users = append(e.room.Users, username)
		res.Added = true
	}
	s.touchLocked(e)
	res.Room = e.room.Clone()
	return res, nil
}

func (s *MemoryStore) Leave(_ context.Context, id, username string) (LeaveResult, error) {
	e := s.lock(id, false)
	if e == nil {
		return LeaveResult{}, nil
	}
	defer e.mu.Unlock()

	idx := slices.Index(e.room.Users, username)
	if idx < 0 {
		return LeaveResult{Room: e.room.Clone()}, nil
	}
	e.room.Users = slices.Delete(e.room.Users, idx, idx+1)
	if len(e.room.Users) == 0 {
		s.removeLocked(id, e)
		return LeaveResult{Removed: true, Deleted: true}, nil
	}
	s.touchLocked(e)
	return LeaveResult{Room: e.room.Clone(), Removed: true}, nil
}

// Len reports the number of indexed entries, expired ones included until swept.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

// Sweep removes every entry whose storage TTL has passed and returns how many were dropped.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	ids := make([]string, 0, len(s.rooms))
	entries := make([]*memoryEntry, 0, len(s.rooms))
	for id, e := range s.rooms {
		ids = append(ids, id)
		entries = append(entries, e)
	}
	s.mu.Unlock()

	now := s.now()
	removed := 0
	for i, e := range entries {
		e.mu.Lock()
		if !e.dead && e.room != nil && !now.Before(e.expiresAt) {
			s.removeLocked(ids[i], e)
			removed++
		}
		e.mu.Unlock()
	}
	return removed
}

// RunJanitor sweeps expired rooms every interval until ctx is done.
func (s *MemoryStore) RunJanitor(ctx context.Context, interval time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				logger.Debug().Int("count", n).Msg("Swept expired rooms")
			}
		}
	}
}
