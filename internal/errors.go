package internal

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindReference  ErrorKind = "reference"
	KindNotFound   ErrorKind = "not_found"
	KindStorage    ErrorKind = "storage"
)

// ValidationError reports missing or malformed input. Fields holds the JSON
// names of the offending fields, when known.
type ValidationError struct {
	Fields  []string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "invalid fields: " + strings.Join(e.Fields, ", ")
}

func NewValidationError(msg string, fields ...string) *ValidationError {
	return &ValidationError{Message: msg, Fields: fields}
}

// ReferenceError reports a parent entity that does not exist.
type ReferenceError struct {
	Entity string
	Field  string
	ID     int64
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s %d referenced by %s does not exist", e.Entity, e.ID, e.Field)
}

type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// StorageError wraps a failure of the underlying database.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Kind classifies err. Errors outside the taxonomy are reported as storage
// failures.
func Kind(err error) ErrorKind {
	var (
		validationErr *ValidationError
		referenceErr  *ReferenceError
		notFoundErr   *NotFoundError
	)
	switch {
	case errors.As(err, &validationErr):
		return KindValidation
	case errors.As(err, &referenceErr):
		return KindReference
	case errors.As(err, &notFoundErr):
		return KindNotFound
	default:
		return KindStorage
	}
}
