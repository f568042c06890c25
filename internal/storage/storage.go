// Package storage holds the Room Store: the only shared mutable state of the relay.
// Every implementation linearizes operations on one room id and never blocks
// operations on other ids.
package storage

import (
	"context"
	"errors"
	"time"

	"konferans/backend/internal/models"
)

// ErrUnavailable marks failures of the storage backend itself, as opposed to
// absent rooms, which are reported as nil results.
var ErrUnavailable = errors.New("storage unavailable")

// Clock returns the current wall-clock time.
type Clock func() time.Time

// Storage is the Room Store contract consumed by the relay and the rooms service.
type Storage interface {
	// Create inserts an empty room with zero credits started now, replacing any entry with the same id.
	Create(ctx context.Context, id string) (*models.Room, error)
	// Get returns nil when the room was never created, was deleted or has expired.
	Get(ctx context.Context, id string) (*models.Room, error)
	// AddCredit increments the credit counter. Absent rooms yield nil without error.
	AddCredit(ctx context.Context, id string) (*models.Room, error)
	// Join upserts the room and appends username when it is not a member yet.
	Join(ctx context.Context, id, username string) (JoinResult, error)
	// Leave removes username and deletes the room when nobody is left.
	Leave(ctx context.Context, id, username string) (LeaveResult, error)
}

// JoinResult describes the outcome of Join.
type JoinResult struct {
	Room *models.Room
	// Added is false when username was already a member.
	Added bool
	// Created is true when the room did not exist and was upserted.
	Created bool
}

// LeaveResult describes the outcome of Leave.
type LeaveResult struct {
	// Room is the remaining state, nil when absent or deleted.
	Room *models.Room
	// Removed is true when username was a member.
	Removed bool
	// Deleted is true when the leave emptied the room.
	Deleted bool
}
