package booking

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrTooFewPatients rejects consecutive bookings below the family
	// minimum; single bookings use BookSingle.
	ErrTooFewPatients = errors.New("consecutive booking requires at least two patients")

	// ErrChainUnavailable means the consecutive run starting at the
	// requested slot no longer exists; callers should re-query blocks.
	ErrChainUnavailable = errors.New("consecutive slots are no longer available")

	// ErrBlockBeingBooked means another booker holds the start-slot lock.
	ErrBlockBeingBooked = errors.New("these slots are currently being booked, please retry")
)

// PartialFailureError reports a multi-step booking that failed after some
// steps committed. CompensationErr is non-nil when the rollback itself
// could not complete, in which case the listed ids need manual
// reconciliation (the reconcile worker frees orphaned reservations).
type PartialFailureError struct {
	ReservedSlotIDs []uuid.UUID
	AppointmentIDs  []uuid.UUID
	Cause           error
	CompensationErr error
}

func (e *PartialFailureError) Error() string {
	if e.CompensationErr != nil {
		return fmt.Sprintf("consecutive booking failed after %d reservations and %d appointments committed, compensation also failed: %v (cause: %v)",
			len(e.ReservedSlotIDs), len(e.AppointmentIDs), e.CompensationErr, e.Cause)
	}
	return fmt.Sprintf("consecutive booking failed, %d committed steps rolled back: %v",
		len(e.ReservedSlotIDs)+len(e.AppointmentIDs), e.Cause)
}

func (e *PartialFailureError) Unwrap() error {
	return e.Cause
}

// ReconciliationError is returned when a cancel deleted the appointment
// but could not release the slot: the calendar now under-counts until the
// reconcile worker sweeps.
type ReconciliationError struct {
	AppointmentID uuid.UUID
	SlotID        uuid.UUID
	Cause         error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("appointment %s deleted but slot %s release failed, needs reconciliation: %v",
		e.AppointmentID, e.SlotID, e.Cause)
}

func (e *ReconciliationError) Unwrap() error {
	return e.Cause
}
