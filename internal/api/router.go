package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func SetupRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.HandleHealth)
	r.Get("/ws", h.HandleWebSocket)

	r.Post("/api/auth/login", h.HandleLogin)
	r.Post("/pair/create-session", h.auth.RequireJWT(h.HandleCreateSession))

	r.Get("/api/predictions/latest", h.HandleLatest)
	r.Get("/api/predictions/history", h.HandleHistory)
	r.Get("/api/sites/summary", h.HandleSitesSummary)

	r.Get("/api/alerts", h.HandleAlerts)
	r.Post("/api/alerts/{id}/ack", h.auth.RequireJWT(h.HandleAckAlert))
	r.Get("/api/call-log", h.auth.RequireJWT(h.HandleCallLog))

	return r
}
