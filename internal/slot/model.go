package slot

import (
	"time"

	"github.com/google/uuid"
)

// Slot is a fixed-duration bookable calendar unit. Slots are provisioned
// ahead of time; the booking flow only flips Reserved.
type Slot struct {
	ID        uuid.UUID
	StartTime time.Time
	Duration  time.Duration
	Reserved  bool
}

// End returns the instant the slot stops occupying the calendar.
func (s Slot) End() time.Time {
	return s.StartTime.Add(s.Duration)
}

// Block is a run of consecutive free slots long enough to seat a group.
type Block struct {
	StartSlotID uuid.UUID
	StartTime   time.Time
	EndTime     time.Time
}
