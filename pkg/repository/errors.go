package repository

import (
	"errors"
	"fmt"

	"github.com/ammar0144/staffdb/pkg/db"
)

// Sentinel errors for repository operations
var (
	// ErrValidation matches every *ValidationError
	ErrValidation = errors.New("validation failed")

	// ErrNotPersisted is returned for operations that need an id on an
	// entity that was never saved or has been deleted
	ErrNotPersisted = errors.New("entity has no id")

	// ErrNotFound is returned when a write targets a row that no longer exists
	ErrNotFound = errors.New("row not found")

	// ErrReferentialViolation is returned when the database rejects a
	// statement for leaving a dangling foreign key
	ErrReferentialViolation = db.ErrForeignKeyViolation
)

// ValidationError reports an invalid value assigned to a constrained field
type ValidationError struct {
	Entity string
	Field  string
	Value  interface{}
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid %s %q: %v", e.Entity, e.Field, fmt.Sprint(e.Value), e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrValidation) hold for every ValidationError
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError builds a ValidationError for entity.field
func NewValidationError(entity, field string, value interface{}, err error) *ValidationError {
	return &ValidationError{Entity: entity, Field: field, Value: value, Err: err}
}

// StateError reports an operation that the entity's lifecycle state forbids
type StateError struct {
	Entity string
	Op     string
	ID     int64
	Err    error
}

func (e *StateError) Error() string {
	if e.ID != 0 {
		return fmt.Sprintf("cannot %s %s %d: %v", e.Op, e.Entity, e.ID, e.Err)
	}
	return fmt.Sprintf("cannot %s %s: %v", e.Op, e.Entity, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// IsValidation checks if an error is a ValidationError
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsState checks if an error is a StateError
func IsState(err error) bool {
	var se *StateError
	return errors.As(err, &se)
}

// IsReferentialViolation checks if an error is a foreign key violation
func IsReferentialViolation(err error) bool {
	return errors.Is(err, ErrReferentialViolation)
}
