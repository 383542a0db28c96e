package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err    *AppError
		status string
		http   int
	}{
		{NewValidationError("weight"), StatusInvalidArgument, http.StatusBadRequest},
		{NewPromptNotUnderstoodError(""), StatusFailedPrecondition, http.StatusUnprocessableEntity},
		{NewInsufficientFoodsError(3, 15), StatusFailedPrecondition, http.StatusUnprocessableEntity},
		{NewOptimizationFailedError(""), StatusFailedPrecondition, http.StatusUnprocessableEntity},
		{NewSafetyConflictError([]string{"Leite"}, "lactose"), StatusInternal, http.StatusInternalServerError},
		{NewExternalServiceError("gemini", stderrors.New("timeout")), StatusUnavailable, http.StatusServiceUnavailable},
		{NewNotFoundError("Job"), StatusNotFound, http.StatusNotFound},
		{NewForbiddenError(""), StatusPermissionDenied, http.StatusForbidden},
		{NewRateLimitedError(), StatusResourceExhausted, http.StatusTooManyRequests},
		{NewInternalError("boom"), StatusInternal, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(string(tc.err.Code), func(t *testing.T) {
			assert.Equal(t, tc.status, tc.err.Status())
			assert.Equal(t, tc.http, tc.err.StatusCode())
		})
	}
}

func TestWrapKeepsAppErrorsThroughChains(t *testing.T) {
	original := NewInsufficientFoodsError(10, 15)
	wrapped := fmt.Errorf("stage failed: %w", original)

	got := Wrap(wrapped, "ignored")
	require.NotNil(t, got)
	assert.Same(t, original, got)
	assert.True(t, Is(wrapped, CodeInsufficientFoods))
	assert.Equal(t, CodeInsufficientFoods, GetCode(wrapped))
}

func TestWrapGenericErrorHidesDetailsFromMessage(t *testing.T) {
	got := Wrap(stderrors.New("nil pointer dereference"), "stage crashed")

	assert.Equal(t, CodeInternal, got.Code)
	assert.Equal(t, GenericMessage, got.Message)
	assert.NotContains(t, got.Message, "nil pointer")
	assert.Equal(t, "stage crashed", got.Details)
	assert.Nil(t, Wrap(nil, "x"))
}

func TestToErrorResponseOmitsDetails(t *testing.T) {
	resp := ToErrorResponse(NewValidationError("healthProfile.weight is required"), "req-1")

	assert.Equal(t, CodeInvalidArgument, resp.Error.Code)
	assert.Equal(t, StatusInvalidArgument, resp.Error.Status)
	assert.Equal(t, "req-1", resp.Error.RequestID)
	assert.NotContains(t, resp.Error.Message, "healthProfile")
}
