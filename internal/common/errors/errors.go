// Package errors provides standardized error handling for the admission workflow.
package errors

import (
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidTransition       ErrorCode = "INVALID_TRANSITION"
	ErrCodeApplicationNotFound     ErrorCode = "APPLICATION_NOT_FOUND"
	ErrCodeIntakeValidationFailed  ErrorCode = "INTAKE_VALIDATION_FAILED"
	ErrCodeCorpusEmpty             ErrorCode = "CORPUS_EMPTY"
	ErrCodeRetrievalDegraded       ErrorCode = "RETRIEVAL_DEGRADED"
	ErrCodePolicyParseFallback     ErrorCode = "POLICY_PARSE_FALLBACK"
	ErrCodeBudgetExhausted         ErrorCode = "BUDGET_EXHAUSTED"
	ErrCodeCollaboratorUnavailable ErrorCode = "COLLABORATOR_UNAVAILABLE"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// NewInvalidTransitionError reports a guard failure: the application is not in a
// state from which the requested transition is legal. Recoverable; the caller
// re-queries the legal transitions.
func NewInvalidTransitionError(transition, current, required string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidTransition,
		Message:   fmt.Sprintf("transition '%s' not allowed", transition),
		Details:   fmt.Sprintf("current status: %s, required: %s", current, required),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewApplicationNotFoundError creates a non-retryable lookup error.
func NewApplicationNotFoundError(appID int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeApplicationNotFound,
		Message:   "application not found",
		Details:   fmt.Sprintf("applicationId: %d", appID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewIntakeValidationFailedError creates a non-retryable intake validation error.
func NewIntakeValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeIntakeValidationFailed,
		Message:   "application payload validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCorpusEmptyError reports that zero reference documents were found at load.
// This is the only startup condition treated as non-recoverable for retrieval:
// downstream callers observe RetrievalDegraded for the process lifetime.
func NewCorpusEmptyError(dir string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCorpusEmpty,
		Message:   "no knowledge documents found",
		Details:   fmt.Sprintf("directory: %s", dir),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRetrievalDegradedError reports that ranked retrieval is unavailable and the
// keyword fallback is in effect. Surfaced as a warning-level signal only.
func NewRetrievalDegradedError(err error) *StandardError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &StandardError{
		Code:      ErrCodeRetrievalDegraded,
		Message:   "ranked retrieval unavailable, using keyword fallback",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewBudgetExhaustedError reports a failed reservation. This is an expected
// business outcome (surfaced as LoanRejected), never an exception path.
func NewBudgetExhaustedError(requested, remaining float64) *StandardError {
	return &StandardError{
		Code:      ErrCodeBudgetExhausted,
		Message:   "loan budget exhausted",
		Details:   fmt.Sprintf("requested: %.2f, remaining: %.2f", requested, remaining),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCollaboratorUnavailableError creates a retryable external collaborator error.
// Dispatch recovers via templated fallback rendering.
func NewCollaboratorUnavailableError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCollaboratorUnavailable,
		Message:   fmt.Sprintf("collaborator '%s' unavailable", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}
