package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrMissingFields = errors.New("full name, phone, and date of birth are required")

	// ErrDefaultPatientProtected guards the account's default patient: it
	// anchors family bookings and must always exist.
	ErrDefaultPatientProtected = errors.New("the default patient cannot be deleted")

	ErrNotOwned = errors.New("patient does not belong to the account")
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

type Input struct {
	FullName          string
	DateOfBirth       time.Time
	Phone             string
	InsuranceProvider *string
	SelfPay           bool
}

func (in Input) validate() error {
	if strings.TrimSpace(in.FullName) == "" || strings.TrimSpace(in.Phone) == "" || in.DateOfBirth.IsZero() {
		return ErrMissingFields
	}
	return nil
}

func (s *Service) List(ctx context.Context, accountID uuid.UUID) ([]Patient, error) {
	patients, err := s.repo.ListPatientsByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	return patients, nil
}

func (s *Service) Add(ctx context.Context, accountID uuid.UUID, in Input) (*Patient, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	created, err := s.repo.CreatePatient(ctx, Patient{
		AccountID:         accountID,
		FullName:          in.FullName,
		DateOfBirth:       in.DateOfBirth,
		Phone:             in.Phone,
		InsuranceProvider: in.InsuranceProvider,
		SelfPay:           in.SelfPay,
	})
	if err != nil {
		return nil, fmt.Errorf("create patient: %w", err)
	}
	return created, nil
}

func (s *Service) Update(ctx context.Context, accountID, patientID uuid.UUID, in Input) (*Patient, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	existing, err := s.ownedPatient(ctx, accountID, patientID)
	if err != nil {
		return nil, err
	}

	existing.FullName = in.FullName
	existing.DateOfBirth = in.DateOfBirth
	existing.Phone = in.Phone
	existing.InsuranceProvider = in.InsuranceProvider
	existing.SelfPay = in.SelfPay

	updated, err := s.repo.UpdatePatient(ctx, *existing)
	if err != nil {
		return nil, fmt.Errorf("update patient: %w", err)
	}
	return updated, nil
}

// Delete removes a patient. The account's default patient is protected
// here, not in storage.
func (s *Service) Delete(ctx context.Context, accountID, patientID uuid.UUID) error {
	if _, err := s.ownedPatient(ctx, accountID, patientID); err != nil {
		return err
	}

	account, err := s.repo.GetAccountByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	if account.DefaultPatientID != nil && *account.DefaultPatientID == patientID {
		return ErrDefaultPatientProtected
	}

	if err := s.repo.DeletePatient(ctx, patientID); err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	return nil
}

func (s *Service) ownedPatient(ctx context.Context, accountID, patientID uuid.UUID) (*Patient, error) {
	p, err := s.repo.GetPatientByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if p.AccountID != accountID {
		return nil, ErrNotOwned
	}
	return p, nil
}
