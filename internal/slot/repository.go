package slot

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSlotNotFound = errors.New("slot not found")

	// ErrSlotConflict means the reserved flag already matched the target
	// state: someone else reserved the slot first, or a release raced a
	// release. Callers should re-query availability and retry.
	ErrSlotConflict = errors.New("slot reservation state already changed")
)

// Store contains all DB interactions on the slot calendar.
type Store interface {
	GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error)

	// SetReserved transitions reserved false->true or true->false as a
	// single conditional update. It fails with ErrSlotConflict when the
	// flag is already in the requested state.
	SetReserved(ctx context.Context, id uuid.UUID, reserved bool) error

	// GetFreeSlotAt returns the free slot starting exactly at start, used
	// to re-derive consecutive chains at booking time.
	GetFreeSlotAt(ctx context.Context, start time.Time) (*Slot, error)

	ListFreeBetween(ctx context.Context, from, to time.Time) ([]Slot, error)
	ListFreeEarliest(ctx context.Context, from, to time.Time, limit int) ([]Slot, error)

	// ReleaseOrphaned frees reserved slots that no appointment references
	// and that were not reserved within the last minute, so an in-flight
	// booking between its reserve and insert steps is never swept.
	// Used by the reconcile worker, returns the ids it repaired.
	ReleaseOrphaned(ctx context.Context) ([]uuid.UUID, error)
}
