package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/pearldental/clinic-booking/internal/access"
	"github.com/pearldental/clinic-booking/internal/api"
	"github.com/pearldental/clinic-booking/internal/assistant"
	"github.com/pearldental/clinic-booking/internal/auth"
	"github.com/pearldental/clinic-booking/internal/booking"
	"github.com/pearldental/clinic-booking/internal/config"
	"github.com/pearldental/clinic-booking/internal/db"
	"github.com/pearldental/clinic-booking/internal/notify"
	"github.com/pearldental/clinic-booking/internal/observability/metrics"
	"github.com/pearldental/clinic-booking/internal/patient"
	redisclient "github.com/pearldental/clinic-booking/internal/redis"
	"github.com/pearldental/clinic-booking/internal/slot"
	"github.com/pearldental/clinic-booking/pkg/logging"
)

const version = "1.0.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	logger := logging.New(cfg.LogLevel)

	log.Printf("running in env=%s http_port=%s", cfg.Env, cfg.HTTPPort)

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

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Printf("error closing redis: %v", err)
		}
	}()
	log.Println("connected to Redis")

	slotStore := slot.NewPgStore(pgPool)
	bookingRepo := booking.NewPgRepository(pgPool)
	patientRepo := patient.NewPgRepository(pgPool)

	engine, err := slot.NewEngine(slotStore, cfg)
	if err != nil {
		log.Fatalf("availability engine error: %v", err)
	}

	emailSender := buildEmailSender(rootCtx, cfg, logger)
	notifier := notify.NewService(emailSender, cfg.ManagementEmail, logger)
	bookingMetrics := metrics.NewBookingMetrics(nil)

	bookings := booking.NewService(booking.Deps{
		Slots:        slotStore,
		Repo:         bookingRepo,
		Guard:        access.NewGuard(patientRepo, bookingRepo),
		Locker:       redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL),
		Notifier:     notifier,
		Metrics:      bookingMetrics,
		Logger:       logger,
		SlotDuration: cfg.SlotDuration,
	})
	patients := patient.NewService(patientRepo)

	var chat *assistant.Service
	if cfg.GeminiAPIKey != "" {
		oracle, err := assistant.NewGeminiClient(rootCtx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			log.Fatalf("gemini client error: %v", err)
		}
		defer func() { _ = oracle.Close() }()

		dispatcher := assistant.NewDispatcher(engine, bookings, bookingMetrics, logger)
		transcripts := assistant.NewTranscriptStore(rdb, cfg.ChatContextWindow)
		chat = assistant.NewService(oracle, dispatcher, transcripts, patients, bookings, engine.Location(), logger)
		log.Printf("chat assistant enabled model=%s", cfg.GeminiModelID)
	} else {
		log.Println("GEMINI_API_KEY not set, chat assistant disabled")
	}

	router := api.NewRouter(api.RouterConfig{
		Engine:   engine,
		Bookings: bookings,
		Patients: patients,
		Chat:     chat,
		Verifier: auth.NewVerifier(cfg.JWTSecret),
		PgPool:   pgPool,
		Redis:    rdb,
		Logger:   logger,
		Env:      cfg.Env,
		Version:  version,
	})

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: 2 * cfg.RequestTimeout,
		IdleTimeout:  time.Minute,
	}

	go func() {
		log.Printf("listening on :%s", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-rootCtx.Done()
	log.Println("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}

func buildEmailSender(ctx context.Context, cfg config.Config, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger)
		if sender == nil {
			log.Fatal("EMAIL_PROVIDER=sendgrid but SENDGRID_API_KEY is not set")
		}
		return sender
	case "ses":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			log.Fatalf("aws config error: %v", err)
		}
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger)
	default:
		return notify.NewStubEmailSender(logger)
	}
}
