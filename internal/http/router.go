package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	Reservations *ReservationHandler
	Availability *AvailabilityHandler
	Directory    *DirectoryHandler
	History      *HistoryHandler
	Middleware   []func(http.Handler) http.Handler
}

// NewRouter mounts every configured handler. Handlers left nil are not routed.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	for _, mw := range cfg.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		newResponder(nil).writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if cfg.Directory != nil {
		r.Route("/owners", func(r chi.Router) {
			r.Get("/", cfg.Directory.Owners)
			r.Get("/centres", cfg.Directory.Centres)
		})
		r.Get("/rooms", cfg.Directory.Rooms)
	}

	if cfg.Availability != nil {
		r.Get("/availability", cfg.Availability.Query)
	}

	if cfg.Reservations != nil {
		r.Route("/reservations", func(r chi.Router) {
			r.Get("/", cfg.Reservations.Search)
			r.Post("/", cfg.Reservations.Create)
			r.Get("/upcoming", cfg.Reservations.Upcoming)
			r.Put("/{id}", cfg.Reservations.Update)
			r.Delete("/{id}", cfg.Reservations.Delete)
		})
	}

	if cfg.History != nil {
		r.Route("/history", func(r chi.Router) {
			r.Get("/", cfg.History.List)
			r.Get("/verify", cfg.History.Verify)
		})
	}

	return r
}
