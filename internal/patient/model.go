package patient

import (
	"time"

	"github.com/google/uuid"
)

type Account struct {
	ID               uuid.UUID
	Email            string
	DefaultPatientID *uuid.UUID
	CreatedAt        time.Time
}

type Patient struct {
	ID                uuid.UUID
	AccountID         uuid.UUID
	FullName          string
	DateOfBirth       time.Time
	Phone             string
	InsuranceProvider *string
	SelfPay           bool
	CreatedAt         time.Time
}
