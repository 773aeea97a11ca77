package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pearldental/clinic-booking/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	days := envInt("SEED_DAYS", 30)
	accounts := envInt("SEED_ACCOUNTS", 200)
	tzName := os.Getenv("CLINIC_TIMEZONE")
	if tzName == "" {
		tzName = "America/Los_Angeles"
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		log.Fatalf("load timezone: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedSlots(context.Background(), pool, loc, days); err != nil {
		log.Fatalf("seed slots: %v", err)
	}
	if err := seedAccounts(context.Background(), pool, accounts); err != nil {
		log.Fatalf("seed accounts: %v", err)
	}

	log.Println("seed complete")
}

// seedSlots fills the calendar with 15-minute slots, 9:00 to 20:00 in the
// clinic timezone, starting tomorrow.
func seedSlots(ctx context.Context, pool *pgxpool.Pool, loc *time.Location, days int) error {
	log.Printf("seeding %d days of slots", days)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	first := time.Now().In(loc).AddDate(0, 0, 1)
	count := 0
	for d := 0; d < days; d++ {
		day := first.AddDate(0, 0, d)
		open := time.Date(day.Year(), day.Month(), day.Day(), 9, 0, 0, 0, loc)
		close := time.Date(day.Year(), day.Month(), day.Day(), 20, 0, 0, 0, loc)

		for start := open; start.Before(close); start = start.Add(15 * time.Minute) {
			_, err := tx.Exec(ctx, `
				INSERT INTO time_slots (id, start_time, duration_minutes, reserved)
				VALUES ($1, $2, 15, false)
				ON CONFLICT (start_time) DO NOTHING
			`, uuid.New(), start)
			if err != nil {
				return err
			}
			count++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Printf("%d slots seeded", count)
	return nil
}

// seedAccounts creates accounts, each with a default patient and, for
// some, extra family members.
func seedAccounts(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d accounts", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		accountID := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO accounts (id, email, created_at)
			VALUES ($1, $2, now())
		`, accountID, gofakeit.Email())
		if err != nil {
			return err
		}

		defaultPatientID, err := insertPatient(ctx, tx, accountID)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE accounts SET default_patient_id = $2 WHERE id = $1
		`, accountID, defaultPatientID)
		if err != nil {
			return err
		}

		// roughly a third of the accounts are families
		for extra := gofakeit.Number(0, 3) - 1; extra > 0; extra-- {
			if _, err := insertPatient(ctx, tx, accountID); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("accounts seeded")
	return nil
}

func insertPatient(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (uuid.UUID, error) {
	id := uuid.New()
	var insurance *string
	selfPay := gofakeit.Bool()
	if !selfPay {
		provider := gofakeit.Company()
		insurance = &provider
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO patients (id, account_id, full_name, dob, phone, insurance_provider, self_pay, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
	`, id, accountID, gofakeit.Name(),
		gofakeit.DateRange(time.Now().AddDate(-80, 0, 0), time.Now().AddDate(-5, 0, 0)),
		gofakeit.Phone(), insurance, selfPay)
	return id, err
}

func envInt(key string, def int) int {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return def
}
