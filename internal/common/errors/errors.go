// Package errors provides standardized error handling for the dispatch pipeline.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Configuration errors: surfaced to the caller, never retried.
	ErrCodeSettingsDisabled ErrorCode = "SETTINGS_DISABLED"
	ErrCodeSettingsInvalid  ErrorCode = "SETTINGS_INVALID"
	ErrCodeTemplateNotFound ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrCodeProfileNotFound  ErrorCode = "PROFILE_NOT_FOUND"

	// Transient I/O errors: retried with backoff by the owning component.
	ErrCodeGenerationFailed    ErrorCode = "GENERATION_FAILED"
	ErrCodeGenerationTimeout   ErrorCode = "GENERATION_TIMEOUT"
	ErrCodeTransportSendFailed ErrorCode = "TRANSPORT_SEND_FAILED"

	// Quota exhaustion: a normal termination signal, not a failure.
	ErrCodeQuotaExceeded ErrorCode = "QUOTA_EXCEEDED"

	// Approval gate: dispatch blocked until the user approves the draft.
	ErrCodeApprovalPending ErrorCode = "APPROVAL_PENDING"

	// Classification could not complete; the response stays queued.
	ErrCodeClassificationDeferred ErrorCode = "CLASSIFICATION_DEFERRED"

	// Correlation ID on an inbound message matched no dispatched application.
	ErrCodeResponseUnmatched ErrorCode = "RESPONSE_UNMATCHED"

	// Database errors.
	ErrCodeDatabaseQueryFailed  ErrorCode = "DATABASE_QUERY_FAILED"
	ErrCodeDatabaseInsertFailed ErrorCode = "DATABASE_INSERT_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
	Cause     error     `json:"-"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.Cause
}

// ==========================
// 2. Error Constructors
// ==========================

// NewSettingsDisabledError creates a non-retryable configuration error.
func NewSettingsDisabledError(userID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSettingsDisabled,
		Message:   "Auto-application is disabled for this user",
		Details:   fmt.Sprintf("userId: %s", userID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSettingsInvalidError creates a non-retryable validation error.
func NewSettingsInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSettingsInvalid,
		Message:   "Auto-application settings failed validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTemplateNotFoundError creates a non-retryable template error.
func NewTemplateNotFoundError(userID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTemplateNotFound,
		Message:   "No usable application template for user",
		Details:   fmt.Sprintf("userId: %s", userID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewProfileNotFoundError creates a non-retryable profile lookup error.
func NewProfileNotFoundError(userID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeProfileNotFound,
		Message:   "User profile not found",
		Details:   fmt.Sprintf("userId: %s", userID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewGenerationFailedError creates a retryable content generation error.
func NewGenerationFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeGenerationFailed,
		Message:   "Content generator request failed",
		Details:   err.Error(),
		Cause:     err,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewGenerationTimeoutError creates a retryable content generation timeout.
func NewGenerationTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeGenerationTimeout,
		Message:   "Content generator call exceeded timeout",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTransportSendFailedError creates a retryable mail transport error.
func NewTransportSendFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransportSendFailed,
		Message:   "Mail transport send failed",
		Details:   err.Error(),
		Cause:     err,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQuotaExceededError signals that the daily application quota is spent.
// Not retried; dispatch for the user stops until the next UTC day.
func NewQuotaExceededError(userID string, max int) *StandardError {
	return &StandardError{
		Code:      ErrCodeQuotaExceeded,
		Message:   "Daily application quota exhausted",
		Details:   fmt.Sprintf("userId: %s, maxApplicationsPerDay: %d", userID, max),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewApprovalPendingError signals that a draft awaits user approval.
func NewApprovalPendingError(applicationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeApprovalPending,
		Message:   "Application requires approval before dispatch",
		Details:   fmt.Sprintf("applicationId: %s", applicationID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewClassificationDeferredError creates a recoverable classification error.
// The response stays queued with parsed=false; the caller re-runs it later.
func NewClassificationDeferredError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeClassificationDeferred,
		Message:   "Response classification deferred",
		Details:   err.Error(),
		Cause:     err,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewResponseUnmatchedError creates a non-retryable correlation error.
func NewResponseUnmatchedError(correlationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeResponseUnmatched,
		Message:   "Inbound message matched no dispatched application",
		Details:   fmt.Sprintf("correlationId: %s", correlationID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseQueryFailedError creates a retryable query error.
func NewDatabaseQueryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseQueryFailed,
		Message:   "Database query failed",
		Details:   err.Error(),
		Cause:     err,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseInsertFailedError creates a retryable insert error.
func NewDatabaseInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseInsertFailed,
		Message:   "Database insert operation failed",
		Details:   err.Error(),
		Cause:     err,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// GetRetryCount returns the recommended retry count per error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeTransportSendFailed,
		ErrCodeDatabaseQueryFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeClassificationDeferred:
		return 3

	case ErrCodeGenerationFailed,
		ErrCodeGenerationTimeout:
		return 2

	default:
		return 0 // Configuration and quota signals: no retry
	}
}

// IsCode reports whether err is a StandardError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code == code
	}
	return false
}

// IsQuotaExceeded reports whether err is the quota termination signal.
func IsQuotaExceeded(err error) bool {
	return IsCode(err, ErrCodeQuotaExceeded)
}

// IsRetryable reports whether err carries a retryable StandardError.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}
