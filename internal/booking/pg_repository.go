package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

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

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.SlotID,
		&a.AppointmentType,
		&a.AdditionalNotes,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	id := uuid.New()

	row := r.db.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, slot_id, appointment_type, additional_notes, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id, patient_id, slot_id, appointment_type, additional_notes, created_at
	`, id, a.PatientID, a.SlotID, a.AppointmentType, a.AdditionalNotes)

	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, patient_id, slot_id, appointment_type, additional_notes, created_at
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM appointments WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) ListUpcomingByAccount(ctx context.Context, accountID uuid.UUID, now time.Time) ([]AppointmentDetail, error) {
	rows, err := r.db.Query(ctx, `
		SELECT a.id, a.patient_id, a.slot_id, a.appointment_type, a.additional_notes, a.created_at,
		       p.full_name, ts.start_time
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		JOIN time_slots ts ON ts.id = a.slot_id
		WHERE p.account_id = $1
		  AND ts.start_time >= $2
		ORDER BY ts.start_time ASC
	`, accountID, now)
	if err != nil {
		return nil, fmt.Errorf("list upcoming appointments: %w", err)
	}
	defer rows.Close()

	var result []AppointmentDetail
	for rows.Next() {
		var d AppointmentDetail
		err := rows.Scan(
			&d.ID,
			&d.PatientID,
			&d.SlotID,
			&d.AppointmentType,
			&d.AdditionalNotes,
			&d.CreatedAt,
			&d.PatientName,
			&d.SlotTime,
		)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) GetAccountEmail(ctx context.Context, accountID uuid.UUID) (string, error) {
	var email string
	err := r.db.QueryRow(ctx, `
		SELECT email FROM accounts WHERE id = $1
	`, accountID).Scan(&email)
	if err != nil {
		return "", fmt.Errorf("account %s email: %w", accountID, err)
	}
	return email, nil
}

func (r *PgRepository) GetPatientContact(ctx context.Context, patientID uuid.UUID) (string, string, error) {
	var name, phone string
	err := r.db.QueryRow(ctx, `
		SELECT full_name, phone FROM patients WHERE id = $1
	`, patientID).Scan(&name, &phone)
	if err != nil {
		return "", "", fmt.Errorf("patient %s contact: %w", patientID, err)
	}
	return name, phone, nil
}
