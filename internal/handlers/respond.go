package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"cdrpulse/internal/schema"
	"cdrpulse/internal/store"
)

const (
	msgConfigurationNotFound = "Test configuration not found"
	msgRunNotFound           = "Test run not found"
	msgInternal              = "Internal server error"
)

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// readBody returns the raw request body, capped at maxBodyBytes.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, schema.NewValidationError("body", "is too large")
		}
		return nil, err
	}
	return body, nil
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// respondError maps err onto the API error contract. notFound is the message
// used when err is store.ErrNotFound. Unexpected errors are logged and hidden.
func respondError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	if verr, ok := schema.AsValidationError(err); ok {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: verr.Error(), Fields: verr.Fields})
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		respondJSON(w, http.StatusNotFound, errorBody{Error: notFound})
		return
	}

	hlog.FromRequest(r).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	respondJSON(w, http.StatusInternalServerError, errorBody{Error: msgInternal})
}
