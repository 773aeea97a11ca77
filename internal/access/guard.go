// Package access decides whether a resource belongs to the calling
// account. The guard fails closed: any lookup error, not just a clear
// mismatch, denies the operation.
package access

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/pearldental/clinic-booking/internal/booking"
	"github.com/pearldental/clinic-booking/internal/patient"
)

// ErrAccessDenied deliberately does not say whether the resource exists.
var ErrAccessDenied = errors.New("resource not found or not owned by account")

type Guard struct {
	patients patient.Repository
	appts    booking.Repository
}

func NewGuard(patients patient.Repository, appts booking.Repository) *Guard {
	return &Guard{patients: patients, appts: appts}
}

func (g *Guard) OwnsPatient(ctx context.Context, accountID, patientID uuid.UUID) error {
	p, err := g.patients.GetPatientByID(ctx, patientID)
	if err != nil {
		return ErrAccessDenied
	}
	if p.AccountID != accountID {
		return ErrAccessDenied
	}
	return nil
}

func (g *Guard) OwnsAppointment(ctx context.Context, accountID, appointmentID uuid.UUID) (*booking.Appointment, error) {
	appt, err := g.appts.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, ErrAccessDenied
	}
	if err := g.OwnsPatient(ctx, accountID, appt.PatientID); err != nil {
		return nil, err
	}
	return appt, nil
}
