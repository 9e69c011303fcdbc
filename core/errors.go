package core

import (
	"strings"

	"github.com/pkg/errors"
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

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// NotFoundError reports that one or more referenced records do not exist.
type NotFoundError struct {
	Resource string
	IDs      []string
}

func NewNotFoundError(resource string, ids ...string) error {
	return &NotFoundError{Resource: resource, IDs: ids}
}

func (err NotFoundError) Error() string {
	if len(err.IDs) == 0 {
		return err.Resource + " not found"
	}
	return err.Resource + " not found: " + strings.Join(err.IDs, ", ")
}

// ConflictError reports a duplicate or colliding write; Items names the offenders.
type ConflictError struct {
	Msg   string
	Items []string
}

func NewConflictError(msg string, items ...string) error {
	return &ConflictError{Msg: msg, Items: items}
}

func (err ConflictError) Error() string {
	if len(err.Items) == 0 {
		return err.Msg
	}
	return err.Msg + ": " + strings.Join(err.Items, ", ")
}

type ForbiddenError struct {
	Msg string
}

func NewForbiddenError(msg string) error {
	return &ForbiddenError{Msg: msg}
}

func (err ForbiddenError) Error() string {
	if err.Msg == "" {
		return "permission denied"
	}
	return err.Msg
}

// IsNotFound reports whether the cause of err is a *NotFoundError.
func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

// IsConflict reports whether the cause of err is a *ConflictError.
func IsConflict(err error) bool {
	_, ok := errors.Cause(err).(*ConflictError)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
