package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/sourcehub/internal/domain"
	"github.com/MrSnakeDoc/sourcehub/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sourcehub/internal/logger"
)

type healthResponse struct {
	Sources map[string]domain.HealthStatus `json:"sources"`
}

// CheckSourceHealth probes one source now.
func CheckSourceHealth(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hs, err := d.Manager.CheckHealth(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, hs)
	}
}

// AllHealth probes every source concurrently. One unreachable source never fails the request.
func AllHealth(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Sources: d.Manager.CheckAllHealth(r.Context())})
	}
}

// TriggerHealthPoll asks the background poller to run now.
func TriggerHealthPoll(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.HealthPollTrigger == nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "health polling is disabled"})
			return
		}

		select {
		case d.HealthPollTrigger <- struct{}{}:
			d.Logger.Info("manual health poll triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
		default:
			d.Logger.Warn("health poll already pending",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "health poll already pending"})
		}
	}
}
