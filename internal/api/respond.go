package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pearldental/clinic-booking/internal/access"
	"github.com/pearldental/clinic-booking/internal/assistant"
	"github.com/pearldental/clinic-booking/internal/booking"
	"github.com/pearldental/clinic-booking/internal/patient"
	redisclient "github.com/pearldental/clinic-booking/internal/redis"
	"github.com/pearldental/clinic-booking/internal/slot"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// handleDomainError maps sentinel errors onto the API error taxonomy.
// Anything unmapped is a 500; partial failures stay 500 but keep their
// committed-step detail in the response body.
func handleDomainError(w http.ResponseWriter, err error) {
	var partial *booking.PartialFailureError
	var reconcile *booking.ReconciliationError

	switch {
	case errors.Is(err, slot.ErrInvalidDateRange),
		errors.Is(err, slot.ErrInvalidLimit),
		errors.Is(err, slot.ErrInvalidBlockSize),
		errors.Is(err, booking.ErrInvalidAppointmentType),
		errors.Is(err, booking.ErrTooFewPatients),
		errors.Is(err, patient.ErrMissingFields),
		errors.Is(err, patient.ErrDefaultPatientProtected),
		errors.Is(err, assistant.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())

	case errors.Is(err, access.ErrAccessDenied),
		errors.Is(err, patient.ErrNotOwned):
		writeError(w, http.StatusForbidden, "access_denied", err.Error())

	case errors.Is(err, slot.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, patient.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())

	case errors.Is(err, slot.ErrSlotConflict):
		writeError(w, http.StatusConflict, "slot_already_booked", "slot was claimed by another booking, query availability again")
	case errors.Is(err, booking.ErrChainUnavailable):
		writeError(w, http.StatusConflict, "slots_unavailable", err.Error())
	case errors.Is(err, booking.ErrBlockBeingBooked),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slots_being_booked", "these slots are currently being booked, please retry shortly")

	case errors.As(err, &partial):
		writeError(w, http.StatusInternalServerError, "booking_partial_failure", partial.Error())
	case errors.As(err, &reconcile):
		writeError(w, http.StatusInternalServerError, "cancel_needs_reconciliation", reconcile.Error())

	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
