package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"vidforge/server/internal/http/handlers"
	"vidforge/server/internal/middleware"
)

// Options tunes the cross-cutting middleware.
type Options struct {
	RateLimitPerMin int
	DefaultLocale   string
	CountryLookup   middleware.CountryLookup
	AllowedOrigins  []string
}

// NewRouter wires the full API surface.
func NewRouter(app *handlers.App, opts Options) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP, chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(app.Logger))
	if len(opts.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(opts.AllowedOrigins))
	}
	if opts.RateLimitPerMin > 0 {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
	}
	r.Use(middleware.I18N(opts.DefaultLocale, opts.CountryLookup))

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/models", app.ListModels)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth())
		r.Post("/v1/generations", app.Generate)
		r.Get("/v1/generations", app.ListGenerations)
		r.Get("/v1/generations/{id}", app.GetGeneration)
		r.Post("/v1/generations/{id}/materialize", app.RetryMaterialize)
		r.Get("/v1/credits", app.GetCredits)
	})

	return r
}
