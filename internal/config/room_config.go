package config

import "time"

const (
	// Usernames
	MaxUsernameLength = 20

	// Free session window
	FreeSessionWarnAfter = 30 * time.Minute
	FreeSessionLimit     = 40 * time.Minute

	// Storage
	RoomTTL            = time.Hour
	RoomIDLength       = 8
	MemorySweepPeriod  = time.Minute
	StorageCallTimeout = 3 * time.Second

	// Owner token
	OwnerTokenTTL    = 24 * time.Hour
	OwnerTokenIssuer = "konferans-relay"
)
