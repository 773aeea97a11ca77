package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/pearldental/clinic-booking/internal/assistant"
	"github.com/pearldental/clinic-booking/internal/auth"
	"github.com/pearldental/clinic-booking/internal/booking"
	"github.com/pearldental/clinic-booking/internal/patient"
	"github.com/pearldental/clinic-booking/internal/slot"
	"github.com/pearldental/clinic-booking/pkg/logging"
)

type RouterConfig struct {
	Engine   *slot.Engine
	Bookings *booking.Service
	Patients *patient.Service
	Chat     *assistant.Service
	Verifier *auth.Verifier
	PgPool   *pgxpool.Pool
	Redis    *redis.Client
	Logger   *logging.Logger
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Unauthenticated surface
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Everything else requires a verified account token
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Verifier))

		r.Route("/schedule", func(r chi.Router) {
			r.Get("/slots", listSlotsHandler(cfg.Engine))
			r.Get("/slots/earliest", listEarliestSlotsHandler(cfg.Engine))
			r.Get("/slots/family", listFamilySlotsHandler(cfg.Engine))
			r.Post("/book", bookHandler(cfg.Bookings))
			r.Post("/book/family", bookFamilyHandler(cfg.Bookings))
			r.Post("/emergency", emergencyHandler(cfg.Bookings))
		})

		r.Get("/appointments", listAppointmentsHandler(cfg.Bookings))
		r.Delete("/appointments/{id}", cancelAppointmentHandler(cfg.Bookings))

		r.Route("/patients", func(r chi.Router) {
			r.Get("/", listPatientsHandler(cfg.Patients))
			r.Post("/", addPatientHandler(cfg.Patients))
			r.Put("/{id}", updatePatientHandler(cfg.Patients))
			r.Delete("/{id}", deletePatientHandler(cfg.Patients))
		})

		if cfg.Chat != nil {
			r.Post("/chat", chatHandler(cfg.Chat))
		}
	})

	return r
}
