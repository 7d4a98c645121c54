package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rflorenc/iot-device-migrator/internal/logger"
	"github.com/rflorenc/iot-device-migrator/internal/models"
	"github.com/rflorenc/iot-device-migrator/internal/store"
)

// apiErrorStatus maps APIError titles to response codes. Unlisted titles
// are 422.
var apiErrorStatus = map[string]int{
	"Invalid migration": http.StatusBadRequest,
	"Invalid request":   http.StatusBadRequest,
	"Invalid hub job":   http.StatusConflict,
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response", logger.Err(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeErr picks the response for err: APIErrors keep title and message,
// store lookups map to 404/409, anything else is a 500.
func writeErr(w http.ResponseWriter, err error) {
	if apiErr, ok := models.AsAPIError(err); ok {
		status, ok := apiErrorStatus[apiErr.Title]
		if !ok {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, apiErr)
		return
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		slog.Error("Request failed", logger.Err(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeJSON reads the request body into v, answering 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewAPIError("Invalid request", "invalid JSON: "+err.Error()))
		return false
	}
	return true
}

// orEmpty keeps empty lists from encoding as null.
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
