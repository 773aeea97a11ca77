package booking

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type AppointmentType string

const (
	TypeCleaning       AppointmentType = "Cleaning"
	TypeGeneralCheckup AppointmentType = "General Checkup"
	TypeEmergency      AppointmentType = "Emergency"
)

var ErrInvalidAppointmentType = errors.New("invalid appointment type")

// ParseAppointmentType validates free-form input against the fixed enum.
func ParseAppointmentType(raw string) (AppointmentType, error) {
	switch AppointmentType(raw) {
	case TypeCleaning, TypeGeneralCheckup, TypeEmergency:
		return AppointmentType(raw), nil
	}
	return "", ErrInvalidAppointmentType
}

// Appointment references exactly one slot; that slot stays reserved for
// as long as the appointment is live.
type Appointment struct {
	ID              uuid.UUID
	PatientID       uuid.UUID
	SlotID          uuid.UUID
	AppointmentType AppointmentType
	AdditionalNotes string
	CreatedAt       time.Time
}

// AppointmentDetail hydrates an appointment with what callers show users.
type AppointmentDetail struct {
	Appointment
	PatientName string
	SlotTime    time.Time
}
