package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/prn-tf/alexander-gateway/internal/domain"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError writes {success:false, error} with HTTP 400 whatever the error class.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Success: false, Error: err.Error()})
}

// logLevel maps an error class to the level it is logged at.
func logLevel(err error) zerolog.Level {
	switch {
	case errors.Is(err, domain.ErrAuthentication),
		errors.Is(err, domain.ErrValidation):
		return zerolog.InfoLevel
	case errors.Is(err, domain.ErrQuotaExceeded):
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
