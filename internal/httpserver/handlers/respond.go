package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/MrSnakeDoc/sourcehub/internal/domain"
	"github.com/MrSnakeDoc/sourcehub/internal/logger"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps registry and auth errors onto HTTP statuses.
func writeError(w http.ResponseWriter, log logger.Logger, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", logger.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}

func statusFor(err error) (int, string) {
	var authErr *domain.AuthError
	switch {
	case errors.Is(err, domain.ErrSourceNotFound):
		return http.StatusNotFound, "source-not-found"
	case errors.Is(err, domain.ErrLocalImmutable):
		return http.StatusConflict, "local-immutable"
	case errors.Is(err, domain.ErrSourceExists):
		return http.StatusConflict, "source-exists"
	case errors.Is(err, domain.ErrSourceIDRetired):
		return http.StatusConflict, "source-id-retired"
	case errors.As(err, &authErr):
		if authErr.Code == domain.AuthUnreachable {
			return http.StatusBadGateway, string(authErr.Code)
		}
		return http.StatusUnauthorized, string(authErr.Code)
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "bad-request"
	}
	return http.StatusInternalServerError, ""
}

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}
