package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/MrSnakeDoc/sourcehub/internal/domain"
	"github.com/MrSnakeDoc/sourcehub/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sourcehub/internal/logger"
)

type invalidateRequest struct {
	Kind   string `json:"kind,omitempty"`
	TeamID string `json:"teamId,omitempty"`
}

type invalidateResponse struct {
	Scope   string `json:"scope"`
	Removed *int   `json:"removed,omitempty"`
}

// InvalidateCache drops cached aggregates: by team, by kind, or everything when the
// body is empty.
func InvalidateCache(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req invalidateRequest
		err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req)
		if err != nil && !errors.Is(err, io.EOF) {
			writeError(w, d.Logger, badRequest("invalid JSON body: %v", err))
			return
		}

		var resp invalidateResponse
		switch {
		case req.TeamID != "":
			n := d.Cache.InvalidateTeam(req.TeamID)
			resp = invalidateResponse{Scope: "team:" + req.TeamID, Removed: &n}
		case req.Kind != "":
			kind, err := domain.ParseResourceKind(req.Kind)
			if err != nil {
				writeError(w, d.Logger, badRequest("%v", err))
				return
			}
			d.Cache.Invalidate(kind)
			resp = invalidateResponse{Scope: "kind:" + string(kind)}
		default:
			d.Cache.InvalidateAll()
			resp = invalidateResponse{Scope: "all"}
		}

		d.Logger.Info("cache invalidated", logger.String("scope", resp.Scope))
		writeJSON(w, http.StatusOK, resp)
	}
}

// CacheStats reports entry counts and hit/miss counters.
func CacheStats(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Cache.Stats())
	}
}
