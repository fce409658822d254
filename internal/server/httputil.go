package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/matthewbaird/collegeadmin/internal/repository"
	"github.com/matthewbaird/collegeadmin/internal/schema"
)

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("writeJSON encode error")
	}
}

// writeError writes the {"message": ...} body the console surfaces verbatim.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// decodeJSON decodes the request body into v.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// requestError is a client-caused failure carrying its HTTP status.
type requestError struct {
	status  int
	message string
}

func (e *requestError) Error() string { return e.message }

func badRequest(msg string) error { return &requestError{status: http.StatusBadRequest, message: msg} }
func conflict(msg string) error   { return &requestError{status: http.StatusConflict, message: msg} }

// storeErrorToHTTP maps rule and repository errors to HTTP responses.
func storeErrorToHTTP(w http.ResponseWriter, es *schema.EntitySchema, err error) {
	var re *requestError
	switch {
	case errors.As(err, &re):
		writeError(w, re.status, re.message)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, es.Title+" not found")
	case errors.Is(err, repository.ErrDuplicate):
		writeError(w, http.StatusConflict, es.Title+" already exists")
	default:
		log.Error().Err(err).Str("entity", es.Name).Msg("internal error")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
