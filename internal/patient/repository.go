package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrPatientNotFound = errors.New("patient not found")
)

// Repository contains all DB interactions on accounts and patients.
type Repository interface {
	GetAccountByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	ListPatientsByAccount(ctx context.Context, accountID uuid.UUID) ([]Patient, error)

	CreatePatient(ctx context.Context, p Patient) (*Patient, error)
	UpdatePatient(ctx context.Context, p Patient) (*Patient, error)
	DeletePatient(ctx context.Context, id uuid.UUID) error
}
