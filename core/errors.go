package core

import (
	"fmt"

	"github.com/pkg/errors"
)

type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	KindConflict   ErrorKind = "conflict"
	KindInternal   ErrorKind = "internal"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

// NewFieldError is a shortcut for a validation error on a single field.
func NewFieldError(field, msg string) error {
	return NewValidationError(errors.New(field+": "+msg), FieldError{Field: field, Error: msg})
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func NewNotFoundError(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

func (err NotFoundError) Error() string {
	if err.ID == "" {
		return err.Entity + " not found"
	}
	return fmt.Sprintf("%s %q not found", err.Entity, err.ID)
}

// ConflictError reports a business rule violation: duplicate keys, cardinality, weight mismatch.
type ConflictError struct {
	Err   error
	Field string
}

func NewConflictError(err error, field ...string) error {
	ce := &ConflictError{Err: err}
	if len(field) > 0 {
		ce.Field = field[0]
	}
	return ce
}

func (err ConflictError) Error() string {
	if err.Err == nil {
		return "conflict"
	}
	return err.Err.Error()
}

func (err ConflictError) Unwrap() error { return err.Err }

// TransitionError reports an illegal state transition.
type TransitionError struct {
	Entity string
	From   string
	Action string
}

func NewTransitionError(entity, from, action string) error {
	return &TransitionError{Entity: entity, From: from, Action: action}
}

func (err TransitionError) Error() string {
	return fmt.Sprintf("%s: cannot %s from status %q", err.Entity, err.Action, err.From)
}

// Classify maps an error to the kind callers report to users.
func Classify(err error) ErrorKind {
	var (
		ve *ValidationError
		nf *NotFoundError
		ce *ConflictError
		te *TransitionError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return KindValidation
	case errors.As(err, &nf):
		return KindNotFound
	case errors.As(err, &ce), errors.As(err, &te):
		return KindConflict
	default:
		return KindInternal
	}
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsConflict(err error) bool {
	return Classify(err) == KindConflict
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
