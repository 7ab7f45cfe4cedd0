package common

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed or semantically invalid input. The
// caller can always recover by correcting the input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return "validation failed: " + e.Message
}

// Validationf builds a ValidationError for a named field.
func Validationf(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ConflictError reports a failed compare-and-swap precondition: the record
// has already moved to another status, or a uniqueness constraint fired.
// Callers should re-fetch current state before deciding to retry.
type ConflictError struct {
	Resource string
	Message  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s: %s", e.Resource, e.Message)
}

// Conflictf builds a ConflictError for a resource.
func Conflictf(resource, format string, args ...interface{}) error {
	return &ConflictError{Resource: resource, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a missing Offer, Invoice or Payment.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

// NotFound builds a NotFoundError for a resource.
func NotFound(resource string) error {
	return &NotFoundError{Resource: resource}
}

// StorageError reports a proof artifact store failure. It never affects
// ledger state.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("proof storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ExternalServiceError reports a downstream side-effect failure
// (notification dispatch). It is logged and swallowed at the service layer,
// never propagated to the caller of the triggering transition.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

// IsStorage reports whether err is a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
