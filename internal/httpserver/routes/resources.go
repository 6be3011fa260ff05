package routes

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/sourcehub/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sourcehub/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/sourcehub/internal/httpserver/mw"
)

func init() { Register("resources", registerResources, middleware.Timeout(30*time.Second)) }

func registerResources(r chi.Router, d deps.Deps) {
	r.Get("/api/teams", handlers.Teams(d))
	r.Get("/api/skills", handlers.Skills(d))
	r.Get("/api/recipes", handlers.Recipes(d))
	r.Get("/api/extensions", handlers.Extensions(d))
	r.Get("/api/installed", handlers.Installed(d))

	r.Get("/api/cache/stats", handlers.CacheStats(d))
	r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger)).Post("/api/cache/invalidate", handlers.InvalidateCache(d))
}
