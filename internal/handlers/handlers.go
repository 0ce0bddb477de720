// Package handlers adapts internal/errs error kinds to JSON HTTP
// responses, the same shape the teacher's AppHandler/AppError uses.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/asaskevich/govalidator"
	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"

	"github.com/brave-intl/compensation-engine/internal/errs"
)

// AppError is the error type every handler in this module returns.
type AppError struct {
	Cause   error       `json:"-"`
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data,omitempty"`
}

// Error implements error.
func (e *AppError) Error() string {
	msg := "error: " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// ServeHTTP writes the error as a JSON body with its status code.
func (e *AppError) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(e.Code)
	_ = json.NewEncoder(w).Encode(e)
}

// statusForKind maps a spec §7 error kind to its HTTP status.
func statusForKind(err error) (int, bool) {
	switch {
	case errors.Is(err, errs.NotFound):
		return http.StatusNotFound, true
	case errors.Is(err, errs.Unauthorized):
		return http.StatusUnauthorized, true
	case errors.Is(err, errs.Forbidden):
		return http.StatusForbidden, true
	case errors.Is(err, errs.Validation):
		return http.StatusBadRequest, true
	case errors.Is(err, errs.InsufficientFunds):
		return http.StatusBadRequest, true
	case errors.Is(err, errs.MinWithdrawal):
		return http.StatusBadRequest, true
	case errors.Is(err, errs.Conflict):
		return http.StatusConflict, true
	case errors.Is(err, errs.Transient):
		return http.StatusServiceUnavailable, true
	default:
		return 0, false
	}
}

// WrapError converts a core error into an AppError, inferring the
// status code from its errs kind when possible and falling back to
// fallbackCode otherwise.
func WrapError(err error, message string, fallbackCode int) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	code := fallbackCode
	if mapped, ok := statusForKind(err); ok {
		code = mapped
	}
	return &AppError{Cause: err, Message: message, Code: code}
}

// ValidationError builds a 400 with field-level detail.
func ValidationError(message string, validationErrors interface{}) *AppError {
	return &AppError{
		Message: "validation failed: " + message,
		Code:    http.StatusBadRequest,
		Data:    map[string]interface{}{"validationErrors": validationErrors},
	}
}

// WrapValidationError adapts a govalidator error into an AppError.
func WrapValidationError(err error) *AppError {
	return ValidationError("request body", govalidator.ErrorsByField(err))
}

// RenderContent JSON-encodes v to w with the given status.
func RenderContent(ctx context.Context, v interface{}, w http.ResponseWriter, status int) *AppError {
	var b bytes.Buffer
	if err := json.NewEncoder(&b).Encode(v); err != nil {
		return WrapError(err, "error encoding response", http.StatusInternalServerError)
	}
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(b.Bytes()); err != nil {
		return WrapError(err, "error writing response", http.StatusInternalServerError)
	}
	return nil
}

// Render writes a pre-built buffer verbatim, used by static/healthcheck routes.
func Render(ctx context.Context, buf bytes.Buffer, w http.ResponseWriter, status int) *AppError {
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		return WrapError(err, "error writing response", http.StatusInternalServerError)
	}
	return nil
}

// AppHandler is an http.Handler whose failures are reported as AppError.
type AppHandler func(http.ResponseWriter, *http.Request) *AppError

// ServeHTTP satisfies http.Handler, logging and reporting any AppError.
func (fn AppHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.Contains(r.Header.Get("Accept"), "application/json") || r.Header.Get("Accept") == "" || strings.Contains(r.Header.Get("Accept"), "*/*") {
		w.Header().Set("content-type", "application/json")
	}

	e := fn(w, r)
	if e == nil {
		return
	}

	if e.Code >= 500 {
		sentry.CaptureException(e)
	}

	l := zerolog.Ctx(r.Context())
	l.Error().Err(e).Str("path", r.URL.Path).Msg("request failed")

	if e.Cause != nil {
		e.Message = fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	e.ServeHTTP(w, r)
}
