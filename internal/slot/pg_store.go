package slot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pearldental/clinic-booking/internal/db"
)

type PgStore struct {
	db db.Querier
}

func NewPgStore(q db.Querier) *PgStore {
	return &PgStore{db: q}
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	var durationMinutes int

	err := row.Scan(
		&s.ID,
		&s.StartTime,
		&durationMinutes,
		&s.Reserved,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	s.Duration = time.Duration(durationMinutes) * time.Minute
	return &s, nil
}

func (r *PgStore) GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, start_time, duration_minutes, reserved
		FROM time_slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

// SetReserved is the linchpin of the no-double-booking invariant: the
// state check and the write are one statement, so two racing bookers can
// never both see reserved=false.
func (r *PgStore) SetReserved(ctx context.Context, id uuid.UUID, reserved bool) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE time_slots
		SET reserved = $2,
		    reserved_at = CASE WHEN $2 THEN now() ELSE NULL END
		WHERE id = $1
		  AND reserved = NOT $2
	`, id, reserved)
	if err != nil {
		return fmt.Errorf("set reserved: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// Zero rows means the slot is missing or already in the target
		// state. The follow-up read only classifies the failure, the
		// mutation above stays a single round trip.
		if _, err := r.GetSlot(ctx, id); err != nil {
			return err
		}
		return ErrSlotConflict
	}

	return nil
}

func (r *PgStore) GetFreeSlotAt(ctx context.Context, start time.Time) (*Slot, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, start_time, duration_minutes, reserved
		FROM time_slots
		WHERE start_time = $1
		  AND reserved = false
	`, start)
	return scanSlot(row)
}

func (r *PgStore) ListFreeBetween(ctx context.Context, from, to time.Time) ([]Slot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, start_time, duration_minutes, reserved
		FROM time_slots
		WHERE reserved = false
		  AND start_time >= $1
		  AND start_time < $2
		ORDER BY start_time
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list free slots: %w", err)
	}
	defer rows.Close()

	return collectSlots(rows)
}

func (r *PgStore) ListFreeEarliest(ctx context.Context, from, to time.Time, limit int) ([]Slot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, start_time, duration_minutes, reserved
		FROM time_slots
		WHERE reserved = false
		  AND start_time >= $1
		  AND start_time < $2
		ORDER BY start_time
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("list earliest slots: %w", err)
	}
	defer rows.Close()

	return collectSlots(rows)
}

func (r *PgStore) ReleaseOrphaned(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		UPDATE time_slots
		SET reserved = false, reserved_at = NULL
		WHERE reserved = true
		  AND (reserved_at IS NULL OR reserved_at < now() - interval '1 minute')
		  AND NOT EXISTS (
			SELECT 1 FROM appointments a WHERE a.slot_id = time_slots.id
		  )
		RETURNING id
	`)
	if err != nil {
		return nil, fmt.Errorf("release orphaned slots: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}

func collectSlots(rows pgx.Rows) ([]Slot, error) {
	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
