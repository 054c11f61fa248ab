package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/caregrid/scheduling/internal/scheduling"
)

type RouterConfig struct {
	Service *scheduling.Service
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Logger  zerolog.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Slot endpoints
	r.Post("/slots/generate", generateSlotsHandler(cfg.Service))
	r.Get("/slots/free", listFreeSlotsHandler(cfg.Service))

	// Appointment endpoints
	r.Post("/appointments", createAppointmentHandler(cfg.Service))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/confirm", transitionHandler(cfg.Service, scheduling.StatusConfirmed))
	r.Post("/appointments/{id}/cancel", transitionHandler(cfg.Service, scheduling.StatusCancelled))
	r.Post("/appointments/{id}/complete", transitionHandler(cfg.Service, scheduling.StatusCompleted))
	r.Post("/appointments/{id}/reschedule", rescheduleHandler(cfg.Service))

	return r
}
