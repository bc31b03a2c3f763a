package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/tinybingo-backend/internal/ws"
)

func SetupRoutes(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	// Public routes
	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second))
		r.Get("/healthz", Healthz(d))
		r.Post("/rooms", CreateRoom(d))
		r.Get("/rooms/{code}", GetRoom(d))
		if d.Archive != nil {
			r.Get("/matches/recent", RecentMatches(d))
			r.Get("/matches/{id}", GetMatch(d))
		}
	})

	// Long-lived; no handler timeout.
	r.Get("/ws", ws.Handler(d.Hub, ws.Options{Logger: d.Logger, OriginPatterns: d.OriginPatterns}))
	return r
}
