package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/relstack-labs/relstore/pkg/apierror"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeAPIError maps the error taxonomy onto HTTP statuses: bad request
// 400, not found 404, conflict 409, everything else 500.
func writeAPIError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError
	switch {
	case apierror.IsBadRequest(err):
		status = http.StatusBadRequest
	case apierror.IsNotFound(err):
		status = http.StatusNotFound
	case apierror.IsConflict(err):
		status = http.StatusConflict
	}
	writeError(w, logger, status, err)
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, err error) {
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Debug("request rejected", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
