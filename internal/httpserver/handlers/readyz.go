package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/sourcehub/internal/domain"
	"github.com/MrSnakeDoc/sourcehub/internal/httpserver/deps"
)

type componentStatus struct {
	OK     bool   `json:"ok"`
	Status string `json:"status,omitempty"`
	Impact string `json:"impact,omitempty"`
	Error  string `json:"error,omitempty"`
}

type readyzResponse struct {
	Ready      bool                       `json:"ready"`
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

// Readyz reports whether the registry store is reachable. The local backend being down
// degrades the service but does not make it unready: remote sources still answer.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components := map[string]componentStatus{
			"redis": checkRedis(r.Context(), d),
			"local": checkLocal(d),
		}

		mode := determineMode(components)
		status := http.StatusOK
		if mode == "critical" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, readyzResponse{
			Ready:      status == http.StatusOK,
			Mode:       mode,
			Components: components,
		})
	}
}

func determineMode(components map[string]componentStatus) string {
	if redis, ok := components["redis"]; ok && !redis.OK {
		return "critical"
	}
	if local, ok := components["local"]; ok && !local.OK {
		return "degraded"
	}
	return "ok"
}

func checkRedis(ctx context.Context, d deps.Deps) componentStatus {
	if d.RedisClient == nil {
		return componentStatus{OK: true, Status: "not-configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := d.RedisClient.Ping(ctx).Err(); err != nil {
		return componentStatus{
			OK:     false,
			Impact: "registry-persistence-unavailable",
			Error:  err.Error(),
		}
	}
	return componentStatus{OK: true, Status: "connected"}
}

// checkLocal reads the last recorded health; readiness probes never trigger a check.
func checkLocal(d deps.Deps) componentStatus {
	src, _ := d.Manager.Source(domain.LocalSourceID)
	cs := componentStatus{
		OK:     src.Status != domain.StatusOffline && src.Status != domain.StatusError,
		Status: string(src.Status),
		Error:  src.LastError,
	}
	if !cs.OK {
		cs.Impact = "local-resources-unavailable"
	}
	return cs
}
