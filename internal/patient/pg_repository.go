package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pearldental/clinic-booking/internal/db"
)

type PgRepository struct {
	db db.Querier
}

func NewPgRepository(q db.Querier) *PgRepository {
	return &PgRepository{db: q}
}

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	var defaultPatientID *uuid.UUID

	err := row.Scan(
		&a.ID,
		&a.Email,
		&defaultPatientID,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	a.DefaultPatientID = defaultPatientID
	return &a, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var insurance *string

	err := row.Scan(
		&p.ID,
		&p.AccountID,
		&p.FullName,
		&p.DateOfBirth,
		&p.Phone,
		&insurance,
		&p.SelfPay,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.InsuranceProvider = insurance
	return &p, nil
}

func (r *PgRepository) GetAccountByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, email, default_patient_id, created_at
		FROM accounts
		WHERE id = $1
	`, id)
	return scanAccount(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, account_id, full_name, dob, phone, insurance_provider, self_pay, created_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) ListPatientsByAccount(ctx context.Context, accountID uuid.UUID) ([]Patient, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, account_id, full_name, dob, phone, insurance_provider, self_pay, created_at
		FROM patients
		WHERE account_id = $1
		ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	var result []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) CreatePatient(ctx context.Context, p Patient) (*Patient, error) {
	id := uuid.New()

	row := r.db.QueryRow(ctx, `
		INSERT INTO patients (id, account_id, full_name, dob, phone, insurance_provider, self_pay, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		RETURNING id, account_id, full_name, dob, phone, insurance_provider, self_pay, created_at
	`, id, p.AccountID, p.FullName, p.DateOfBirth, p.Phone, p.InsuranceProvider, p.SelfPay)

	return scanPatient(row)
}

func (r *PgRepository) UpdatePatient(ctx context.Context, p Patient) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE patients
		SET full_name = $2,
		    dob = $3,
		    phone = $4,
		    insurance_provider = $5,
		    self_pay = $6
		WHERE id = $1
		RETURNING id, account_id, full_name, dob, phone, insurance_provider, self_pay, created_at
	`, p.ID, p.FullName, p.DateOfBirth, p.Phone, p.InsuranceProvider, p.SelfPay)

	return scanPatient(row)
}

func (r *PgRepository) DeletePatient(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM patients WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}
