package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/pearldental/clinic-booking/internal/config"
	"github.com/pearldental/clinic-booking/internal/db"
	"github.com/pearldental/clinic-booking/internal/observability/metrics"
	"github.com/pearldental/clinic-booking/internal/slot"
)

// The reconcile worker closes the cancel inconsistency window: a cancel
// deletes the appointment before releasing the slot, so a crash in
// between leaves a reserved slot nothing references. Each sweep frees
// those slots.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("reconcile-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running reconcile worker in env=%s interval=%s", cfg.Env, cfg.WorkerInterval)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	store := slot.NewPgStore(pgPool)
	bookingMetrics := metrics.NewBookingMetrics(nil)

	// Run once at startup
	runOnce(rootCtx, store, bookingMetrics, cfg.RequestTimeout)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Println("shutting down reconcile-worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, store, bookingMetrics, cfg.RequestTimeout)
		}
	}
}

func runOnce(ctx context.Context, store *slot.PgStore, m *metrics.BookingMetrics, timeout time.Duration) {
	sweepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	freed, err := store.ReleaseOrphaned(sweepCtx)
	if err != nil {
		log.Printf("sweep failed: %v", err)
		return
	}

	if len(freed) > 0 {
		m.ObserveReconciledSlots(len(freed))
		log.Printf("freed %d orphaned slot reservations", len(freed))
		for _, id := range freed {
			log.Printf("  released slot %s", id)
		}
	}
}
