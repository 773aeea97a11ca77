package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all DB interactions related to appointments and the
// account/patient lookups the booking flows need.
type Repository interface {
	CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	DeleteAppointment(ctx context.Context, id uuid.UUID) error

	// ListUpcomingByAccount returns the account's appointments whose slot
	// starts at or after now, ordered soonest first.
	ListUpcomingByAccount(ctx context.Context, accountID uuid.UUID, now time.Time) ([]AppointmentDetail, error)

	GetAccountEmail(ctx context.Context, accountID uuid.UUID) (string, error)
	GetPatientContact(ctx context.Context, patientID uuid.UUID) (name, phone string, err error)
}

// OwnershipGuard answers whether a resource belongs to the calling
// account. Implementations must fail closed: any lookup error denies.
type OwnershipGuard interface {
	OwnsPatient(ctx context.Context, accountID, patientID uuid.UUID) error

	// OwnsAppointment returns the appointment when it is owned, so callers
	// avoid a second fetch.
	OwnsAppointment(ctx context.Context, accountID, appointmentID uuid.UUID) (*Appointment, error)
}

// Notifier delivers booking-related email. Confirmation and cancellation
// mail is best effort; the emergency request IS the operation and its
// delivery error propagates.
type Notifier interface {
	BookingConfirmed(ctx context.Context, accountEmail string, details []AppointmentDetail) error
	AppointmentCancelled(ctx context.Context, accountEmail string, detail AppointmentDetail) error
	EmergencyRequested(ctx context.Context, req EmergencyRequest) error
}

// EmergencyRequest is forwarded to the clinic's management inbox.
type EmergencyRequest struct {
	AccountEmail string
	PatientName  string
	Phone        string
	Description  string
}
