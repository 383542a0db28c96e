// Package errors provides structured error handling for the diet pipeline.
// Every failure that reaches a job record or an API response is an AppError.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"
)

// ErrorCode represents an error code
type ErrorCode string

const (
	// Input validation
	CodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"

	// User-correctable pipeline outcomes
	CodePromptNotUnderstood ErrorCode = "PROMPT_NOT_UNDERSTOOD"
	CodeInsufficientFoods   ErrorCode = "INSUFFICIENT_FOODS"
	CodeOptimizationFailed  ErrorCode = "OPTIMIZATION_FAILED"
	CodeTargetsInvalid      ErrorCode = "TARGETS_INVALID"

	// Safety net
	CodeSafetyConflict ErrorCode = "SAFETY_CONFLICT"

	// Resource errors
	CodeNotFound  ErrorCode = "NOT_FOUND"
	CodeForbidden ErrorCode = "FORBIDDEN"
	CodeConflict  ErrorCode = "CONFLICT"

	// Throttling
	CodeRateLimited ErrorCode = "RATE_LIMITED"

	// Server errors
	CodeInternal             ErrorCode = "INTERNAL_ERROR"
	CodeDatabaseError        ErrorCode = "DATABASE_ERROR"
	CodeExternalServiceError ErrorCode = "EXTERNAL_SERVICE_ERROR"
	CodeMissingPrerequisite  ErrorCode = "MISSING_PREREQUISITE"
)

// Canonical statuses shared with callers polling a job record.
const (
	StatusInvalidArgument    = "invalid-argument"
	StatusFailedPrecondition = "failed-precondition"
	StatusNotFound           = "not-found"
	StatusPermissionDenied   = "permission-denied"
	StatusAlreadyExists      = "already-exists"
	StatusUnavailable        = "unavailable"
	StatusResourceExhausted  = "resource-exhausted"
	StatusInternal           = "internal"
)

// GenericMessage is the only text stored for failures that are not AppErrors.
const GenericMessage = "Ocorreu um erro interno ao gerar sua dieta. Tente novamente em instantes."

// AppError represents an application error with structured information
type AppError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Cause      error                  `json:"-"`
	StackTrace string                 `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Status returns the canonical status for the error code
func (e *AppError) Status() string {
	switch e.Code {
	case CodeInvalidArgument:
		return StatusInvalidArgument
	case CodePromptNotUnderstood, CodeInsufficientFoods, CodeOptimizationFailed, CodeTargetsInvalid:
		return StatusFailedPrecondition
	case CodeNotFound:
		return StatusNotFound
	case CodeForbidden:
		return StatusPermissionDenied
	case CodeConflict:
		return StatusAlreadyExists
	case CodeExternalServiceError:
		return StatusUnavailable
	case CodeRateLimited:
		return StatusResourceExhausted
	default:
		return StatusInternal
	}
}

// StatusCode returns the appropriate HTTP status code
func (e *AppError) StatusCode() int {
	switch e.Status() {
	case StatusInvalidArgument:
		return http.StatusBadRequest
	case StatusFailedPrecondition:
		return http.StatusUnprocessableEntity
	case StatusNotFound:
		return http.StatusNotFound
	case StatusPermissionDenied:
		return http.StatusForbidden
	case StatusAlreadyExists:
		return http.StatusConflict
	case StatusUnavailable:
		return http.StatusServiceUnavailable
	case StatusResourceExhausted:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// WithMetadata adds metadata to the error
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithCause adds a cause error
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message, details string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Details:    details,
		StackTrace: getStackTrace(),
	}
}

// NewValidationError creates an input validation error
func NewValidationError(details string) *AppError {
	return NewAppError(CodeInvalidArgument, "Dados obrigatórios ausentes ou inválidos.", details)
}

// NewPromptNotUnderstoodError is returned when the interpreter rejects the request text
func NewPromptNotUnderstoodError(details string) *AppError {
	return NewAppError(
		CodePromptNotUnderstood,
		"Não conseguimos entender seu pedido. Descreva seu objetivo com outras palavras.",
		details,
	)
}

// NewInsufficientFoodsError is returned when fewer than minimum foods survive filtering or selection
func NewInsufficientFoodsError(found, minimum int) *AppError {
	return NewAppError(
		CodeInsufficientFoods,
		"Suas restrições deixaram poucos alimentos disponíveis. Ajuste seu perfil ou objetivo.",
		fmt.Sprintf("%d foods available, %d required", found, minimum),
	).WithMetadata("found", found).WithMetadata("minimum", minimum)
}

// NewOptimizationFailedError is returned when quantification produces no viable item
func NewOptimizationFailedError(details string) *AppError {
	return NewAppError(
		CodeOptimizationFailed,
		"As metas calculadas ficaram restritivas demais. Ajuste seu objetivo.",
		details,
	)
}

// NewTargetsInvalidError is returned when a macro target resolves negative
func NewTargetsInvalidError(details string) *AppError {
	return NewAppError(
		CodeTargetsInvalid,
		"Não foi possível calcular metas nutricionais válidas para este perfil.",
		details,
	)
}

// NewSafetyConflictError is returned when the final cross-check finds a restriction conflict
func NewSafetyConflictError(foods []string, reason string) *AppError {
	return NewAppError(
		CodeSafetyConflict,
		"Detectamos um conflito com suas restrições. Gere a dieta novamente.",
		reason,
	).WithMetadata("conflicting_foods", foods)
}

// NewMissingPrerequisiteError is returned when a stage runs without an earlier stage's output
func NewMissingPrerequisiteError(field string) *AppError {
	return NewAppError(
		CodeMissingPrerequisite,
		GenericMessage,
		fmt.Sprintf("missing prerequisite stage output: %s", field),
	).WithMetadata("field", field)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	message := "Recurso não encontrado"
	if resource != "" {
		message = fmt.Sprintf("%s não encontrado", resource)
	}
	return NewAppError(CodeNotFound, message, "")
}

// NewForbiddenError creates a forbidden error
func NewForbiddenError(message string) *AppError {
	if message == "" {
		message = "Acesso negado"
	}
	return NewAppError(CodeForbidden, message, "")
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *AppError {
	return NewAppError(CodeConflict, message, "")
}

// NewRateLimitedError is returned when a caller exceeds its request budget
func NewRateLimitedError() *AppError {
	return NewAppError(CodeRateLimited, "Muitas solicitações. Aguarde alguns instantes e tente novamente.", "")
}

// NewInternalError creates an internal server error
func NewInternalError(details string) *AppError {
	return NewAppError(CodeInternal, GenericMessage, details)
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, cause error) *AppError {
	return NewAppError(
		CodeDatabaseError,
		GenericMessage,
		fmt.Sprintf("failed to %s", operation),
	).WithCause(cause)
}

// NewExternalServiceError creates an external service error
func NewExternalServiceError(service string, cause error) *AppError {
	return NewAppError(
		CodeExternalServiceError,
		"Um serviço externo está indisponível no momento. Tente novamente.",
		fmt.Sprintf("failed to communicate with %s", service),
	).WithCause(cause).WithMetadata("service", service)
}

// Wrap wraps an error as an internal error if it's not already an AppError
func Wrap(err error, details string) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	return NewInternalError(details).WithCause(err)
}

// As extracts an AppError from an error chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is checks if an error is of a specific error code
func Is(err error, code ErrorCode) bool {
	if appErr, ok := As(err); ok {
		return appErr.Code == code
	}
	return false
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return CodeInternal
}

// getStackTrace captures the current stack trace
func getStackTrace() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var builder strings.Builder
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "pkg/errors") {
			builder.WriteString(fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}

	return builder.String()
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error ErrorDetails `json:"error"`
}

// ErrorDetails represents the error details in API responses
type ErrorDetails struct {
	Code      ErrorCode `json:"code"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp string    `json:"timestamp"`
}

// ToErrorResponse converts an AppError to an API error response.
// Details stay server-side.
func ToErrorResponse(err *AppError, requestID string) ErrorResponse {
	return ErrorResponse{
		Error: ErrorDetails{
			Code:      err.Code,
			Status:    err.Status(),
			Message:   err.Message,
			RequestID: requestID,
			Timestamp: fmt.Sprintf("%d", time.Now().Unix()),
		},
	}
}
