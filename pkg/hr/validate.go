package hr

import (
	"errors"
	"strings"

	"github.com/ammar0144/staffdb/pkg/repository"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	entityDepartment = "department"
	entityEmployee   = "employee"
	entityReview     = "review"

	// maxTextLength bounds names, titles and locations
	maxTextLength = 255

	// minReviewYear is the earliest year a review may cover
	minReviewYear = 2000
)

var errBlank = errors.New("must not be blank")

// notBlank rejects strings that are empty after trimming whitespace
var notBlank = validation.By(func(value interface{}) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return errBlank
	}
	return nil
})

var errNotPersisted = errors.New("must be saved first")

// check runs rules against value and reports a failure as a ValidationError
func check(entity, field string, value interface{}, rules ...validation.Rule) error {
	if err := validation.Validate(value, rules...); err != nil {
		return repository.NewValidationError(entity, field, value, err)
	}
	return nil
}

func checkName(entity, name string) error {
	return check(entity, "name", name, notBlank, validation.RuneLength(0, maxTextLength))
}

func checkReference(entity, field string, id int64) error {
	if id <= 0 {
		return repository.NewValidationError(entity, field, id, validation.ErrRequired)
	}
	return nil
}
