package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"melodia/internal/access"
	"melodia/internal/auth"
	"melodia/internal/logging"
	"melodia/internal/media"
	"melodia/internal/store"
)

// errBadRequest marks malformed payloads and path parameters.
var errBadRequest = errors.New("bad request")

type messageResponse struct {
	Message string `json:"message"`
}

type createdResponse struct {
	Message string `json:"message"`
	ID      int64  `json:"id"`
}

// statusFor maps domain errors to HTTP status codes. Anything unrecognised is
// a store failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, store.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, access.ErrUnauthenticated),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, access.ErrEntitlementRequired),
		errors.Is(err, access.ErrQuotaExceeded),
		errors.Is(err, access.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, media.ErrObjectNotFound),
		errors.Is(err, media.ErrInvalidKey):
		return http.StatusNotFound
	case errors.Is(err, store.ErrUserExists):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func messageFor(err error, status int) string {
	switch {
	case status == http.StatusInternalServerError:
		return "internal server error"
	case errors.Is(err, access.ErrUnauthenticated):
		return "authentication required"
	case errors.Is(err, access.ErrEntitlementRequired):
		return "a premium subscription is required"
	case errors.Is(err, access.ErrQuotaExceeded):
		return "free accounts have reached their playlist limit; upgrade to premium for unlimited playlists"
	case errors.Is(err, media.ErrObjectNotFound), errors.Is(err, media.ErrInvalidKey):
		return "song file not found"
	}
	return err.Error()
}

// writeError renders err as {message}. Store failures are logged with the
// request id and never echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logging.WithContext(r.Context()).Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
	}
	writeJSON(w, status, messageResponse{Message: messageFor(err, status)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return badRequest("invalid JSON payload")
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid " + name)
	}
	return id, nil
}

type requestError struct {
	msg string
}

func (e requestError) Error() string { return e.msg }

func (e requestError) Unwrap() error { return errBadRequest }

func badRequest(msg string) error {
	return requestError{msg: msg}
}
