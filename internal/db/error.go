package db

import "errors"

// DuplicateKeyError is an error type for duplicate key errors
type DuplicateKeyError struct {
	Key     string
	Message string
}

func (e *DuplicateKeyError) Error() string {
	return e.Message
}

func IsDuplicateKeyError(err error) bool {
	var e *DuplicateKeyError
	return errors.As(err, &e)
}

// Not found Error
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

// StaleStageError is returned when a stage transition's qualified-stage
// filter matched no document: the job moved underneath the writer.
type StaleStageError struct {
	JobKey  string
	Message string
}

func (e *StaleStageError) Error() string {
	return e.Message
}

func IsStaleStageError(err error) bool {
	var e *StaleStageError
	return errors.As(err, &e)
}
