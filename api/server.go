/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, the middleware stack and the route table.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. RequestLogger: One zap line per request
  3. Recoverer:     Panic recovery (500 instead of crash)
  4. CORS:          Cross-origin requests for the frontend
  5. Identity:      Caller identity from trusted headers (/api routes only)

ROUTE GROUPS:
  /api/health          Liveness and database check (no identity needed)
  /api/shifts/*        Shift lifecycle
  /api/leave/*         Leave requests, balances and reports
  /api/notifications/* In-app inbox
  /api/admin/reset     Database reset (only when EnableReset)

SECURITY NOTE:
  Identity headers are trusted as-is. The server must sit behind a gateway
  that authenticates callers and strips client-supplied identity headers.

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Identity and request logging
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type RouterConfig struct {
	AllowedOrigins []string
	EnableReset    bool // exposes POST /api/admin/reset; never in production
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig, log *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", HeaderActorID, HeaderActorRole, HeaderOrganizationID},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
	}))

	r.Get("/api/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Use(Identity)

		r.Route("/shifts", func(r chi.Router) {
			r.Get("/", h.ListShifts)
			r.Post("/", h.CreateShift)
			r.Post("/open", h.CreateOpenShift)
			r.Post("/import", h.ImportShifts)
			r.Post("/reminders/run", h.RunReminders)
			r.Get("/mine", h.ListMyShifts)
			r.Get("/available", h.ListOpenShifts)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetShift)
				r.Put("/", h.UpdateShift)
				r.Delete("/", h.DeleteShift)
				r.Post("/claim", h.ClaimShift)
				r.Post("/clock-in", h.ClockIn)
				r.Post("/clock-out", h.ClockOut)
				r.Post("/complete", h.CompleteShift)
				r.Post("/review", h.ReviewShift)
				r.Post("/cancel", h.CancelShift)
				r.Post("/missed", h.MarkMissed)
			})
		})

		r.Route("/leave", func(r chi.Router) {
			r.Route("/requests", func(r chi.Router) {
				r.Get("/", h.ListTeamLeave)
				r.Post("/", h.SubmitLeave)
				r.Get("/mine", h.ListMyLeave)
				r.Post("/{id}/review", h.ReviewLeave)
				r.Post("/{id}/cancel", h.CancelLeave)
			})
			r.Post("/assign", h.AssignLeave)

			r.Get("/balance", h.GetBalance)
			r.Route("/balances", func(r chi.Router) {
				r.Get("/", h.ListBalances)
				r.Put("/{staffId}", h.SetEntitlement)
				r.Post("/{staffId}/carry-over", h.CarryOver)
				r.Get("/{staffId}/history", h.BalanceHistory)
			})

			r.Get("/report", h.LeaveReport)
			r.Get("/stats", h.LeaveStats)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.ListNotifications)
			r.Post("/read-all", h.MarkAllNotificationsRead)
			r.Post("/{id}/read", h.MarkNotificationRead)
		})

		if cfg.EnableReset {
			r.Post("/admin/reset", h.Reset)
		}
	})

	return r
}

// Reset clears all data. Managers only, and only when the route is enabled.
// POST /api/admin/reset
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if !actorFrom(r).IsManager() {
		writeError(w, http.StatusForbidden, CodeForbidden, "only managers can reset data")
		return
	}
	if err := h.Store.Reset(r.Context()); err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	h.log.Warn("database reset", zap.String("actor", actorFrom(r).ID))
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
