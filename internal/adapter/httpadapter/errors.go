package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/augurworld/augur/internal/domain"
)

// Error codes returned in ErrorDetail.Code.
const (
	codeBadRequest     = "bad_request"
	codeNotFound       = "not_found"
	codeDataIntegrity  = "data_integrity"
	codeInternal       = "internal"
	codeSearchDisabled = "search_disabled"
	codeUpstream       = "upstream_error"
)

// APIErrorResponse is the envelope of every error response.
type APIErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one error.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client went away
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, APIErrorResponse{Error: ErrorDetail{
		Code:      code,
		Message:   message,
		RequestID: middleware.GetReqID(r.Context()),
	}})
}

// writeLookupError maps lookup failures to a status. Internal details of
// integrity and unexpected errors stay in the logs.
func writeLookupError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, r, http.StatusBadRequest, codeBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, r, http.StatusNotFound, codeNotFound, "no precipitation data at this location")
	case errors.Is(err, domain.ErrMissingField):
		writeError(w, r, http.StatusInternalServerError, codeDataIntegrity, "stored grid cell is incomplete")
	default:
		writeError(w, r, http.StatusInternalServerError, codeInternal, "an unexpected error occurred")
	}
}
