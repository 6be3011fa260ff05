package routes

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/sourcehub/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sourcehub/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/sourcehub/internal/httpserver/mw"
)

func init() { Register("sources", registerSources, middleware.Timeout(30*time.Second)) }

func registerSources(r chi.Router, d deps.Deps) {
	guard := mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger)
	probe := mw.RateLimit(mw.RateLimitConfig{
		Burst:           d.TestRateBurst,
		RefillPerMinute: d.TestRatePerMinute,
		TrustProxy:      d.TrustProxy,
		Now:             d.TimeNow,
	}, d.Logger)

	r.Route("/api/sources", func(r chi.Router) {
		r.Get("/", handlers.ListSources(d))
		r.With(guard, probe).Post("/", handlers.CreateSource(d))
		r.With(guard, probe).Post("/test", handlers.TestSource(d))

		r.Get("/active", handlers.GetActiveSource(d))
		r.With(guard).Put("/active", handlers.SetActiveSource(d))
		r.With(guard).Post("/active/reset", handlers.ResetActiveSource(d))

		r.Get("/{id}", handlers.GetSource(d))
		r.With(guard).Patch("/{id}", handlers.UpdateSource(d))
		r.With(guard).Delete("/{id}", handlers.DeleteSource(d))
		r.Post("/{id}/health", handlers.CheckSourceHealth(d))
	})

	r.Get("/api/health", handlers.AllHealth(d))
	r.With(guard).Post("/api/health/poll", handlers.TriggerHealthPoll(d))
}
