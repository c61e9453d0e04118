package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Error codes carried in Error.Code.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeInternal    = "internal_error"
	ErrCodeUnavailable = "service_unavailable"
)

// Error is the body of every non-2xx response.
type Error struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return ErrCodeBadRequest
	case http.StatusNotFound:
		return ErrCodeNotFound
	case http.StatusServiceUnavailable:
		return ErrCodeUnavailable
	default:
		return ErrCodeInternal
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v) //nolint:errcheck // client may be gone
	}
}

// fail writes an Error for status, tagged with the request's ID so it
// can be matched against the server log.
func fail(w http.ResponseWriter, r *http.Request, status int, format string, args ...any) {
	writeJSON(w, status, Error{
		Status:    status,
		Code:      errorCode(status),
		Message:   fmt.Sprintf(format, args...),
		RequestID: requestID(r.Context()),
	})
}
