package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pearldental/clinic-booking/internal/config"
	"github.com/pearldental/clinic-booking/internal/db"
)

// simulate fires concurrent booking and cancellation traffic at a running
// api-server and reports how contention resolved: every slot must end up
// with at most one appointment, losers must see 409s, not errors.

type SimConfig struct {
	APIBaseURL string
	Duration   time.Duration
	Workers    int
}

type account struct {
	id        uuid.UUID
	patientID uuid.UUID
	token     string
}

type DataPool struct {
	accounts []account
	slots    []uuid.UUID

	mu           sync.RWMutex
	appointments map[uuid.UUID]uuid.UUID // appointment -> owning account
}

func (dp *DataPool) addAppointment(apptID, accountID uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments[apptID] = accountID
}

func (dp *DataPool) takeAppointment(accountID uuid.UUID) (uuid.UUID, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	for apptID, owner := range dp.appointments {
		if owner == accountID {
			delete(dp.appointments, apptID)
			return apptID, true
		}
	}
	return uuid.Nil, false
}

type counters struct {
	booked    atomic.Int64
	conflicts atomic.Int64
	cancelled atomic.Int64
	errors    atomic.Int64
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulate starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	sim := SimConfig{
		APIBaseURL: envString("SIM_API_URL", "http://localhost:"+cfg.HTTPPort),
		Duration:   envDuration("SIM_DURATION", 30*time.Second),
		Workers:    envInt("SIM_WORKERS", 20),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	cancel()
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	dp, err := loadPool(context.Background(), pool, cfg.JWTSecret)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	log.Printf("loaded %d accounts and %d free slots", len(dp.accounts), len(dp.slots))
	if len(dp.accounts) == 0 || len(dp.slots) == 0 {
		log.Fatal("run cmd/seed first")
	}

	var c counters
	runCtx, stop := context.WithTimeout(context.Background(), sim.Duration)
	defer stop()

	var wg sync.WaitGroup
	for i := 0; i < sim.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			runWorker(runCtx, sim, dp, &c, worker)
		}(i)
	}
	wg.Wait()

	fmt.Println("---- simulation results ----")
	fmt.Printf("booked:    %d\n", c.booked.Load())
	fmt.Printf("conflicts: %d (losers of slot races, expected under contention)\n", c.conflicts.Load())
	fmt.Printf("cancelled: %d\n", c.cancelled.Load())
	fmt.Printf("errors:    %d (anything non-2xx/409 is a bug)\n", c.errors.Load())
}

func runWorker(ctx context.Context, sim SimConfig, dp *DataPool, c *counters, worker int) {
	client := &http.Client{Timeout: 10 * time.Second}
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)))

	for ctx.Err() == nil {
		acct := dp.accounts[rng.Intn(len(dp.accounts))]

		// mostly book, sometimes cancel something we own
		if rng.Float64() < 0.8 {
			slotID := dp.slots[rng.Intn(len(dp.slots))]
			book(ctx, client, sim, dp, c, acct, slotID)
		} else if apptID, ok := dp.takeAppointment(acct.id); ok {
			cancelAppointment(ctx, client, sim, c, acct, apptID)
		}
	}
}

func book(ctx context.Context, client *http.Client, sim SimConfig, dp *DataPool, c *counters, acct account, slotID uuid.UUID) {
	body, _ := json.Marshal(map[string]string{
		"patient_id":       acct.patientID.String(),
		"slot_id":          slotID.String(),
		"appointment_type": "Cleaning",
	})

	resp, err := doJSON(ctx, client, http.MethodPost, sim.APIBaseURL+"/schedule/book", acct.token, body)
	if err != nil {
		c.errors.Add(1)
		return
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusCreated:
		var created struct {
			ID uuid.UUID `json:"id"`
		}
		if json.NewDecoder(resp.Body).Decode(&created) == nil {
			dp.addAppointment(created.ID, acct.id)
		}
		c.booked.Add(1)
	case http.StatusConflict:
		c.conflicts.Add(1)
	default:
		c.errors.Add(1)
	}
}

func cancelAppointment(ctx context.Context, client *http.Client, sim SimConfig, c *counters, acct account, apptID uuid.UUID) {
	resp, err := doJSON(ctx, client, http.MethodDelete, sim.APIBaseURL+"/appointments/"+apptID.String(), acct.token, nil)
	if err != nil {
		c.errors.Add(1)
		return
	}
	defer drain(resp)

	if resp.StatusCode == http.StatusNoContent {
		c.cancelled.Add(1)
	} else {
		c.errors.Add(1)
	}
}

func doJSON(ctx context.Context, client *http.Client, method, url, token string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	return client.Do(req)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

// loadPool pulls accounts with their default patient and the free slot
// ids, and signs a token per account the way the identity provider would.
func loadPool(ctx context.Context, pool db.Querier, jwtSecret string) (*DataPool, error) {
	dp := &DataPool{appointments: make(map[uuid.UUID]uuid.UUID)}

	rows, err := pool.Query(ctx, `
		SELECT id, default_patient_id FROM accounts
		WHERE default_patient_id IS NOT NULL
		LIMIT 500
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var a account
		if err := rows.Scan(&a.id, &a.patientID); err != nil {
			return nil, err
		}
		a.token, err = signToken(jwtSecret, a.id)
		if err != nil {
			return nil, err
		}
		dp.accounts = append(dp.accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slotRows, err := pool.Query(ctx, `
		SELECT id FROM time_slots WHERE NOT reserved ORDER BY start_time LIMIT 2000
	`)
	if err != nil {
		return nil, err
	}
	defer slotRows.Close()
	for slotRows.Next() {
		var id uuid.UUID
		if err := slotRows.Scan(&id); err != nil {
			return nil, err
		}
		dp.slots = append(dp.slots, id)
	}
	return dp, slotRows.Err()
}

func signToken(secret string, accountID uuid.UUID) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": accountID.String(),
		"exp": time.Now().Add(2 * time.Hour).Unix(),
	})
	return token.SignedString([]byte(secret))
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if v, err := time.ParseDuration(raw); err == nil {
			return v
		}
	}
	return def
}
