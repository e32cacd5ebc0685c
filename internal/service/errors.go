// Package service holds the error types shared by the service packages.
package service

import (
	"errors"

	"consultorio/backend/internal/store"
)

// ValidationError is a user-correctable input problem, reported verbatim.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func Validation(msg string) error {
	return &ValidationError{msg: msg}
}

// ConflictError reports that a slot, overturn number or block is already
// taken. It unwraps to store.ErrConflict.
type ConflictError struct {
	msg string
}

func (e *ConflictError) Error() string {
	return e.msg
}

func (e *ConflictError) Unwrap() error {
	return store.ErrConflict
}

func Conflict(msg string) error {
	return &ConflictError{msg: msg}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}
