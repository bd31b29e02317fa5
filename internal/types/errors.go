package types

import (
	"errors"
	"fmt"
)

// TransientFetchError is an error type for retryable upstream fetch failures
// (network errors, 5xx, rate limiting).
type TransientFetchError struct {
	StatusCode int
	Message    string
}

func (e *TransientFetchError) Error() string {
	return e.Message
}

func IsTransientFetchError(err error) bool {
	var e *TransientFetchError
	return errors.As(err, &e)
}

// FetchExhaustedError is returned once the fetch retry budget is spent.
type FetchExhaustedError struct {
	Attempts uint
	Last     error
}

func (e *FetchExhaustedError) Error() string {
	return fmt.Sprintf("fetch exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *FetchExhaustedError) Unwrap() error {
	return e.Last
}

func IsFetchExhaustedError(err error) bool {
	var e *FetchExhaustedError
	return errors.As(err, &e)
}

// NotFoundError is terminal: an empty upstream range is data, not a failure.
type NotFoundError struct {
	Key     string
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

func IsNotFoundError(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// EncodingOverflowError indicates a scaled value left the representable
// int64 range. Terminal, the input magnitude is wrong.
type EncodingOverflowError struct {
	Field string
	Value float64
}

func (e *EncodingOverflowError) Error() string {
	return fmt.Sprintf("encoding overflow on field %s (value %g)", e.Field, e.Value)
}

func IsEncodingOverflowError(err error) bool {
	var e *EncodingOverflowError
	return errors.As(err, &e)
}

// ComputationTimeoutError is returned when the compute service never reached
// a terminal status within the polling budget.
type ComputationTimeoutError struct {
	Token string
	Polls uint
}

func (e *ComputationTimeoutError) Error() string {
	return fmt.Sprintf("computation %s still pending after %d polls", e.Token, e.Polls)
}

func IsComputationTimeoutError(err error) bool {
	var e *ComputationTimeoutError
	return errors.As(err, &e)
}

// ComputationRejectedError is terminal: the compute service refused the work.
type ComputationRejectedError struct {
	Token  string
	Reason string
}

func (e *ComputationRejectedError) Error() string {
	return fmt.Sprintf("computation %s rejected: %s", e.Token, e.Reason)
}

func IsComputationRejectedError(err error) bool {
	var e *ComputationRejectedError
	return errors.As(err, &e)
}

// StorageConflictError enforces at-most-one successful write per key.
type StorageConflictError struct {
	Key     string
	Message string
}

func (e *StorageConflictError) Error() string {
	return e.Message
}

func IsStorageConflictError(err error) bool {
	var e *StorageConflictError
	return errors.As(err, &e)
}

// DecodeMismatchError signals a vector whose shape contradicts its metadata.
// Never retried, it means an encoding/versioning bug.
type DecodeMismatchError struct {
	Expected int
	Got      int
}

func (e *DecodeMismatchError) Error() string {
	return fmt.Sprintf("decoded vector has %d values, expected %d", e.Got, e.Expected)
}

func IsDecodeMismatchError(err error) bool {
	var e *DecodeMismatchError
	return errors.As(err, &e)
}

// IsRetryable classifies the error taxonomy for the orchestrator's backoff
// loop. Anything not listed here fails the job immediately.
func IsRetryable(err error) bool {
	switch {
	// a spent fetch budget is terminal even though it wraps a transient
	// cause
	case IsFetchExhaustedError(err):
		return false
	case IsTransientFetchError(err):
		return true
	case IsComputationTimeoutError(err):
		return true
	default:
		return false
	}
}
