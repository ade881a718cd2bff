// Package response provides helpers for writing consistent JSON HTTP
// responses.
//
// Success responses may be any JSON shape. Error responses always look
// like:
//
//	{ "status": "error", "error": "course not found" }
package response

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/aanand-mishra/courses-api/internal/apperr"
	"github.com/aanand-mishra/courses-api/internal/utils/logger"
)

// Response is the standard envelope returned for error cases.
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// WriteJSON writes data as JSON with the given HTTP status code.
// Headers must be set before WriteHeader, and WriteHeader before the body.
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// GeneralError wraps any Go error into the standard Response shape.
func GeneralError(err error) Response {
	return Response{
		Status: StatusError,
		Error:  err.Error(),
	}
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindInvalidArgument:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err with the status of its kind. Internal errors are logged
// with their cause and answered with a generic message, so store details
// never reach the client.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := StatusFor(kind)

	if kind == apperr.KindInternal {
		slog.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Err(err))
		WriteJSON(w, status, Response{Status: StatusError, Error: "internal server error"})
		return
	}

	WriteJSON(w, status, GeneralError(err))
}

// DecodeJSON reads the request body into dst. An empty body or malformed
// JSON is reported as an InvalidArgument error.
func DecodeJSON(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return apperr.InvalidArgument("request body is empty")
	}
	if err != nil {
		return apperr.InvalidArgument("invalid JSON: %s", err.Error())
	}
	return nil
}
