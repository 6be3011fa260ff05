package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/sourcehub/internal/domain"
	"github.com/MrSnakeDoc/sourcehub/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sourcehub/internal/logger"
	"github.com/MrSnakeDoc/sourcehub/internal/manager"
)

type sourcesResponse struct {
	Sources  []domain.DataSource `json:"sources"`
	ActiveID string              `json:"activeId"`
}

type testConnectionResponse struct {
	Success    bool   `json:"success"`
	TeamsCount int64  `json:"teamsCount"`
	Version    string `json:"version,omitempty"`
	Error      string `json:"error,omitempty"`
	Code       string `json:"code,omitempty"`
}

type activeRequest struct {
	ID string `json:"id"`
}

// ListSources returns the registry in registration order.
func ListSources(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, sourcesResponse{
			Sources:  d.Manager.Sources(),
			ActiveID: d.Manager.ActiveSource().ID,
		})
	}
}

func decodeRegistration(w http.ResponseWriter, r *http.Request) (manager.RegistrationRequest, error) {
	var req manager.RegistrationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return req, err
	}
	if req.Kind != domain.SourceKindCloud && req.Kind != domain.SourceKindLAN {
		return req, badRequest("kind must be %q or %q", domain.SourceKindCloud, domain.SourceKindLAN)
	}
	if req.BaseURL == "" {
		return req, badRequest("baseUrl is required")
	}
	return req, nil
}

// TestSource probes a candidate without registering it. Probe failures are a normal
// result and come back with 200.
func TestSource(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeRegistration(w, r)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		res := d.Manager.TestConnection(r.Context(), req)
		out := testConnectionResponse{Success: res.Success, TeamsCount: res.TeamsCount, Version: res.Version}
		if res.Err != nil {
			out.Error = res.Err.Error()
			var authErr *domain.AuthError
			if errors.As(res.Err, &authErr) {
				out.Code = string(authErr.Code)
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// CreateSource tests a candidate and registers it on success.
func CreateSource(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeRegistration(w, r)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		src, err := d.Manager.RegisterFromCandidate(r.Context(), req)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		d.Logger.Info("source registered",
			logger.String("source_id", src.ID),
			logger.String("kind", string(src.Kind)))
		writeJSON(w, http.StatusCreated, src)
	}
}

// GetSource returns one source.
func GetSource(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		src, ok := d.Manager.Source(chi.URLParam(r, "id"))
		if !ok {
			writeError(w, d.Logger, domain.ErrSourceNotFound)
			return
		}
		writeJSON(w, http.StatusOK, src)
	}
}

// UpdateSource applies a partial update.
func UpdateSource(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch domain.SourcePatch
		if err := decodeJSON(w, r, &patch); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		src, err := d.Manager.UpdateSource(r.Context(), chi.URLParam(r, "id"), patch)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, src)
	}
}

// DeleteSource unregisters a source and removes its credential.
func DeleteSource(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := d.Manager.UnregisterSource(r.Context(), id); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		d.Logger.Info("source unregistered", logger.String("source_id", id))
		w.WriteHeader(http.StatusNoContent)
	}
}

// GetActiveSource returns the active source.
func GetActiveSource(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Manager.ActiveSource())
	}
}

// SetActiveSource switches the active source.
func SetActiveSource(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req activeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		if err := d.Manager.SetActiveSource(r.Context(), req.ID); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, d.Manager.ActiveSource())
	}
}

// ResetActiveSource makes the local source active again.
func ResetActiveSource(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Manager.ResetToLocal(r.Context()); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, d.Manager.ActiveSource())
	}
}
