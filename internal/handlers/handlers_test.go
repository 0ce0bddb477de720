package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/brave-intl/compensation-engine/internal/errs"
)

func TestWrapErrorMapsKnownKinds(t *testing.T) {
	cases := []struct {
		kind     error
		wantCode int
	}{
		{errs.NotFound, http.StatusNotFound},
		{errs.Unauthorized, http.StatusUnauthorized},
		{errs.Forbidden, http.StatusForbidden},
		{errs.Validation, http.StatusBadRequest},
		{errs.InsufficientFunds, http.StatusBadRequest},
		{errs.MinWithdrawal, http.StatusBadRequest},
		{errs.Conflict, http.StatusConflict},
		{errs.Transient, http.StatusServiceUnavailable},
	}
	for _, c := range cases {
		bundle := errs.New(c.kind, "boom", nil)
		appErr := WrapError(bundle, "wrapped", http.StatusInternalServerError)
		assert.Equal(t, c.wantCode, appErr.Code)
	}
}

func TestWrapErrorFallsBackOnUnknownKind(t *testing.T) {
	appErr := WrapError(assertUnknownErr{}, "wrapped", http.StatusInternalServerError)
	assert.Equal(t, http.StatusInternalServerError, appErr.Code)
}

func TestWrapErrorPassesThroughExistingAppError(t *testing.T) {
	original := &AppError{Message: "already wrapped", Code: http.StatusTeapot}
	got := WrapError(original, "ignored", http.StatusInternalServerError)
	assert.Same(t, original, got)
}

type assertUnknownErr struct{}

func (assertUnknownErr) Error() string { return "unknown" }
