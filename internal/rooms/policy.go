package rooms

import (
	"fmt"
	"time"

	"konferans/backend/internal/config"
	"konferans/backend/internal/models"
)

// Verdict is the outcome of the free-session check for one room.
type Verdict int

const (
	// Allow means signaling continues without notice.
	Allow Verdict = iota
	// Warn means the free window is about to close; signaling still continues.
	Warn
	// Expired means the free window is over and no credits were added.
	Expired
)

func (v Verdict) String() string {
	switch v {
	case Allow:
		return "allow"
	case Warn:
		return "warn"
	case Expired:
		return "expired"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Decision carries the verdict and the numbers it was derived from.
type Decision struct {
	Verdict        Verdict
	ElapsedMinutes float64
	// RemainingMinutes is only meaningful for Warn.
	RemainingMinutes float64
}

// Evaluate applies the free-session rule: past the limit without credits the
// room is expired, past the warning mark without credits a warning is due.
// Any positive credit count lifts both.
func Evaluate(room *models.Room, now time.Time) Decision {
	elapsed := room.Elapsed(now).Minutes()
	d := Decision{Verdict: Allow, ElapsedMinutes: elapsed}
	if room.Credits > 0 {
		return d
	}

	limit := config.FreeSessionLimit.Minutes()
	switch {
	case elapsed > limit:
		d.Verdict = Expired
	case elapsed > config.FreeSessionWarnAfter.Minutes():
		d.Verdict = Warn
		d.RemainingMinutes = limit - elapsed
	}
	return d
}

// WarningMessage is the room-wide notice sent while the free window is closing.
func WarningMessage(remainingMinutes float64) string {
	return fmt.Sprintf("Free session ends in %.1f minutes. Add credits to continue.", remainingMinutes)
}

// ExpiredMessage is sent to a participant whose free session is over.
const ExpiredMessage = "Session expired. Please add credits to continue."
