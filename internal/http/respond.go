package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vehosts/vehosts/internal/repository"
	"github.com/vehosts/vehosts/internal/service/files"
	"github.com/vehosts/vehosts/internal/service/project"
	"github.com/vehosts/vehosts/internal/service/run"
)

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends an error message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps service and repository sentinels onto HTTP codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, repository.ErrConflict):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, repository.ErrInvalidArgument),
		errors.Is(err, project.ErrInvalidInput),
		errors.Is(err, files.ErrInvalidInput),
		errors.Is(err, files.ErrParentNotDirectory):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, run.ErrNotExecutable):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, run.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, "main file not found")
	case errors.Is(err, run.ErrRunInProgress):
		writeError(w, http.StatusConflict, "run already in progress for this project")
	case errors.Is(err, run.ErrRunnerUnavailable):
		writeError(w, http.StatusBadGateway, "execution service unavailable")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
