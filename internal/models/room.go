package models

import (
	"slices"
	"time"
)

// Room is the live state of one signaling room.
// Users keeps first-join order and never holds the same name twice.
type Room struct {
	// ID is the short opaque identifier used in room URLs.
	ID string `json:"id"`
	// Users are the display names currently joined.
	Users []string `json:"users"`
	// Owner is kept for compatibility and is never assigned by the relay.
	Owner *string `json:"owner"`
	// StartTime is fixed when the room is created.
	StartTime time.Time `json:"start_time"`
	// Credits extend the free session window. It only grows.
	Credits int `json:"credits"`
}

// NewRoom returns an empty room started at now.
func NewRoom(id string, now time.Time) *Room {
	return &Room{
		ID:        id,
		Users:     []string{},
		StartTime: now,
	}
}

// HasUser reports whether username is a member.
func (r *Room) HasUser(username string) bool {
	return slices.Contains(r.Users, username)
}

// Elapsed is the time since the room started, clamped at zero.
func (r *Room) Elapsed(now time.Time) time.Duration {
	d := now.Sub(r.StartTime)
	if d < 0 {
		return 0
	}
	return d
}

// Clone returns a deep copy so callers cannot mutate store state.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	c := *r
	c.Users = slices.Clone(r.Users)
	if c.Users == nil {
		c.Users = []string{}
	}
	if r.Owner != nil {
		owner := *r.Owner
		c.Owner = &owner
	}
	return &c
}

// RoomView is the read-only projection served to the page layer.
type RoomView struct {
	RoomID         string  `json:"room_id"`
	Exists         bool    `json:"exists"`
	ElapsedMinutes float64 `json:"elapsed_minutes"`
	Credits        int     `json:"credits"`
	Expired        bool    `json:"expired"`
}
