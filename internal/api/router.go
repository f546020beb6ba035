package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type RouterConfig struct {
	Scheduler    SchedulerService
	Availability AvailabilityService
	Bulk         BulkService
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Env          string
	Version      string
	Log          zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Post("/appointments", createAppointmentHandler(cfg.Scheduler))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Scheduler))
	r.Put("/appointments/{id}/move", moveAppointmentHandler(cfg.Scheduler))
	r.Post("/appointments/{id}/status", changeStatusHandler(cfg.Scheduler))
	r.Post("/appointments/bulk-reprogram", bulkReprogramHandler(cfg.Bulk))
	r.Get("/availability", availabilityHandler(cfg.Availability))

	return r
}
