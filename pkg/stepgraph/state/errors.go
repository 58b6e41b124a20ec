package state

import (
	"errors"
	"fmt"
)

// ErrInvalidSchema indicates a schema declaration is malformed.
var ErrInvalidSchema = errors.New("invalid schema")

// UnknownFieldError reports an update or document naming a field the schema
// does not declare. It usually means a step returned a misspelled key.
type UnknownFieldError struct {
	Field string
}

// Error implements the error interface.
func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown state field %q", e.Field)
}

// TypeMismatchError reports a value whose type cannot be stored in a field.
type TypeMismatchError struct {
	Field string
	Want  string
	Got   string
}

// Error implements the error interface.
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("state field %q: want %s, got %s", e.Field, e.Want, e.Got)
}
