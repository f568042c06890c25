package signaling

import "konferans/backend/internal/models"

// Client is the interface for one signaling connection.
// It abstracts the transport so the relay and broadcast groups can treat
// every connection the same way.
type Client interface {
	// GetClientID returns the connection identity used for "exclude sender".
	GetClientID() string

	// GetMembership returns the room and username this connection joined as.
	// ok is false while the connection is not in any room.
	GetMembership() (roomID, username string, ok bool)
	// SetMembership records the connection's current room membership.
	SetMembership(roomID, username string)
	// ClearMembership returns the connection to the unjoined state.
	ClearMembership()

	// Send queues env for delivery without blocking. It reports false when the
	// message could not be queued (buffer full or connection closed).
	Send(env models.Envelope) bool

	// Run starts the client's read and write pumps.
	Run()
	// Close shuts down the outbound side of the connection.
	Close()
}
