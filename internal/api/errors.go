package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pauljones0/mindmerge-forum/internal/models"
	"github.com/pauljones0/mindmerge-forum/internal/ranking"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps domain errors onto status codes. Anything
// unrecognised is logged and reported as a 500 without internals.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: ve.Message, Field: ve.Field})
	case errors.Is(err, ranking.ErrInvalidCursor), errors.Is(err, models.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, models.ErrPostNotFound), errors.Is(err, models.ErrCommentNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
