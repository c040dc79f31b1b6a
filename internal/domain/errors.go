// Package domain defines the core cost types, query types, and errors for cloudsathi.
package domain

import (
	"errors"
	"fmt"
)

// Stable error kinds. Transports key off these strings, never off messages.
const (
	KindInvalidRange              = "invalid_range"
	KindInvalidParameter          = "invalid_parameter"
	KindConfiguration             = "configuration"
	KindAuthorization             = "authorization"
	KindSubmission                = "submission"
	KindQueryExecution            = "query_execution"
	KindResultRetrieval           = "result_retrieval"
	KindPollTimeout               = "poll_timeout"
	KindCancelled                 = "cancelled"
	KindRemoteService             = "remote_service"
	KindRecommendationUnavailable = "recommendation_unavailable"
	KindInternal                  = "internal"
)

// Kinded is implemented by every domain error.
type Kinded interface {
	error
	Kind() string
}

// InvalidRangeError indicates a date range whose end precedes its start.
type InvalidRangeError struct {
	Message string
}

func (e *InvalidRangeError) Error() string { return e.Message }
func (e *InvalidRangeError) Kind() string  { return KindInvalidRange }

// InvalidParameterError indicates a malformed or out-of-bounds request parameter.
type InvalidParameterError struct {
	Message string
}

func (e *InvalidParameterError) Error() string { return e.Message }
func (e *InvalidParameterError) Kind() string  { return KindInvalidParameter }

// ConfigurationError indicates missing or invalid credential material.
// Provider is "aws" or "azure".
type ConfigurationError struct {
	Provider string
	Message  string
}

func (e *ConfigurationError) Error() string { return e.Message }
func (e *ConfigurationError) Kind() string  { return KindConfiguration }

// AuthorizationError indicates the remote service rejected our credentials.
type AuthorizationError struct {
	Provider string
	Message  string
	// Unauthenticated is set when the credentials could not be exchanged at all,
	// as opposed to being valid but lacking permission.
	Unauthenticated bool
	Err             error
}

func (e *AuthorizationError) Error() string { return e.Message }
func (e *AuthorizationError) Kind() string  { return KindAuthorization }
func (e *AuthorizationError) Unwrap() error { return e.Err }

// SubmissionError indicates a query could not be submitted.
type SubmissionError struct {
	Message string
	Err     error
}

func (e *SubmissionError) Error() string { return e.Message }
func (e *SubmissionError) Kind() string  { return KindSubmission }
func (e *SubmissionError) Unwrap() error { return e.Err }

// QueryExecutionError indicates a submitted query reached a non-success terminal state.
type QueryExecutionError struct {
	State  ExecutionStatus
	Reason string
}

func (e *QueryExecutionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("query execution %s", e.State)
	}
	return fmt.Sprintf("query execution %s: %s", e.State, e.Reason)
}
func (e *QueryExecutionError) Kind() string { return KindQueryExecution }

// ResultRetrievalError indicates a result page could not be fetched.
type ResultRetrievalError struct {
	Message string
	Err     error
}

func (e *ResultRetrievalError) Error() string { return e.Message }
func (e *ResultRetrievalError) Kind() string  { return KindResultRetrieval }
func (e *ResultRetrievalError) Unwrap() error { return e.Err }

// PollTimeoutError indicates the query did not reach a terminal state before the deadline.
type PollTimeoutError struct {
	Handle ExecutionHandle
	Checks int
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("query %s did not finish after %d status checks", e.Handle, e.Checks)
}
func (e *PollTimeoutError) Kind() string { return KindPollTimeout }

// CancelledError indicates the caller abandoned the request.
type CancelledError struct {
	Err error
}

func (e *CancelledError) Error() string { return "request cancelled" }
func (e *CancelledError) Kind() string  { return KindCancelled }
func (e *CancelledError) Unwrap() error { return e.Err }

// RemoteServiceError wraps any other failure reported by a cloud provider.
type RemoteServiceError struct {
	Provider string
	Message  string
	Err      error
}

func (e *RemoteServiceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}
func (e *RemoteServiceError) Kind() string  { return KindRemoteService }
func (e *RemoteServiceError) Unwrap() error { return e.Err }

// RecommendationUnavailableError indicates no recommendation backend is configured.
type RecommendationUnavailableError struct{}

func (e *RecommendationUnavailableError) Error() string {
	return "recommendation model is not available"
}
func (e *RecommendationUnavailableError) Kind() string { return KindRecommendationUnavailable }

// ErrInvalidRange creates an InvalidRangeError with a formatted message.
func ErrInvalidRange(format string, args ...interface{}) *InvalidRangeError {
	return &InvalidRangeError{Message: fmt.Sprintf(format, args...)}
}

// ErrInvalidParameter creates an InvalidParameterError with a formatted message.
func ErrInvalidParameter(format string, args ...interface{}) *InvalidParameterError {
	return &InvalidParameterError{Message: fmt.Sprintf(format, args...)}
}

// ErrConfiguration creates a ConfigurationError for the given provider.
func ErrConfiguration(provider, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Provider: provider, Message: fmt.Sprintf(format, args...)}
}

// ErrRemote wraps err as a RemoteServiceError for the given provider.
func ErrRemote(provider string, err error) *RemoteServiceError {
	return &RemoteServiceError{Provider: provider, Message: err.Error(), Err: err}
}

// KindOf returns the stable kind of err, or KindInternal for unclassified errors.
func KindOf(err error) string {
	var k Kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindInternal
}
