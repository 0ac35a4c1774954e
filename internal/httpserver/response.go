package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// errEmptyBody is returned by decodeJSON when the request has no body.
var errEmptyBody = errors.New("request body required")

// Error codes returned alongside the message so clients need not match text.
const (
	codeBadRequest          = "bad_request"
	codeUserExists          = "user_exists"
	codeInvalidCredentials  = "invalid_credentials"
	codeInvalidRefreshToken = "invalid_refresh_token"
	codeUserNotFound        = "user_not_found"
	codeUnauthorized        = "unauthorized"
	codeInternal            = "internal"
	codePayloadTooLarge     = "payload_too_large"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeJSON marks every response as uncacheable since most of them carry tokens.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

func writeMethodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed")
}

// decodeJSON reads at most maxBodyBytes from the request into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

// writeDecodeError reports a decodeJSON failure. emptyMessage is used when the
// body was missing.
func writeDecodeError(w http.ResponseWriter, err error, emptyMessage string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, codePayloadTooLarge, "request body too large")
	case errors.Is(err, errEmptyBody):
		writeError(w, http.StatusBadRequest, codeBadRequest, emptyMessage)
	default:
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid JSON payload")
	}
}
