package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrCode identifies the machine-readable error kind, per spec §7's error
// kinds (bus-transport, storage-io, validation, capacity-exhausted,
// time-unavailable, upstream-rejected).
type ErrCode string

const (
	ErrBadRequest        ErrCode = "bad_request"
	ErrInvalidBody       ErrCode = "invalid_body"
	ErrInvalidParameter  ErrCode = "invalid_parameter"
	ErrForbidden         ErrCode = "forbidden"
	ErrNotFound          ErrCode = "not_found"
	ErrCapacityExhausted ErrCode = "capacity_exhausted"
	ErrTimeUnavailable   ErrCode = "time_unavailable"
	ErrUpstreamFailure   ErrCode = "upstream_failure"
	ErrRateLimited       ErrCode = "rate_limited"
	ErrInternal          ErrCode = "internal_error"
)

// MutatingResponse is the standard body for mutating endpoints (spec §7):
// "Responses to mutating endpoints always include a JSON {success, message|error}".
type MutatingResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// WriteSuccess writes a 200 {success:true, message} body.
func WriteSuccess(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusOK, MutatingResponse{Success: true, Message: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Code  ErrCode `json:"code"`
	Error string  `json:"error"`
}

// WriteError writes a plain JSON error response carrying the generic
// bad_request code.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, errorResponse{Code: ErrBadRequest, Error: msg})
}

// WriteErrorWithCode writes a JSON error response carrying an ErrCode, and
// doubles as the mutating-endpoint failure body ({success:false, error}).
func WriteErrorWithCode(w http.ResponseWriter, status int, code ErrCode, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"success":false,"code":%q,"error":%q}`, code, msg)
}

// DecodeJSON reads and decodes a JSON request body into v.
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return fmt.Errorf("missing request body")
	}
	return json.NewDecoder(r.Body).Decode(v)
}

// QueryString extracts a non-empty string query parameter.
func QueryString(r *http.Request, name string) (string, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return "", false
	}
	return v, true
}

// QueryInt extracts an integer query parameter. Returns 0, false if missing or invalid.
func QueryInt(r *http.Request, name string) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// QueryEpoch extracts a Unix-seconds float query parameter.
func QueryEpoch(r *http.Request, name string) (float64, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// nowEpoch returns the current wall-clock time as Unix seconds, used by
// handlers that need a timestamp independent of the reconciled bus clock
// (e.g. stamping an HTTP-originated calibration entry).
func nowEpoch() float64 {
	return float64(time.Now().Unix())
}
