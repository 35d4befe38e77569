package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
	// Report JSON field names so messages match what the client sent
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
}

// ValidateStruct validates a struct using go-playground/validator
func ValidateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return NewValidationError(validationErrors)
		}
		return err
	}
	return nil
}

// ValidationError wraps validation errors with structured details
type ValidationError struct {
	Message string
	Fields  map[string]string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a ValidationError from validator.ValidationErrors.
// Message is the first field message so single-field failures read naturally.
func NewValidationError(errs validator.ValidationErrors) *ValidationError {
	fields := make(map[string]string)
	first := ""
	for _, err := range errs {
		field := err.Field()
		tag := err.Tag()

		var msg string
		switch tag {
		case "required":
			msg = fmt.Sprintf("%s is required", field)
		case "eq":
			msg = fmt.Sprintf("%s must be %s", field, err.Param())
		case "min":
			msg = fmt.Sprintf("%s must be at least %s", field, err.Param())
		case "max":
			msg = fmt.Sprintf("%s must be at most %s", field, err.Param())
		case "gt":
			msg = fmt.Sprintf("%s must be greater than %s", field, err.Param())
		case "gte":
			msg = fmt.Sprintf("%s must be greater than or equal to %s", field, err.Param())
		case "lte":
			msg = fmt.Sprintf("%s must be less than or equal to %s", field, err.Param())
		case "oneof":
			msg = fmt.Sprintf("%s must be one of: %s", field, err.Param())
		case "url":
			msg = fmt.Sprintf("%s must be a valid URL", field)
		default:
			msg = fmt.Sprintf("%s validation failed on '%s' tag", field, tag)
		}
		fields[field] = msg
		if first == "" {
			first = msg
		}
	}

	if first == "" {
		first = "Validation failed"
	}
	return &ValidationError{
		Message: first,
		Fields:  fields,
	}
}

// IsValidationError checks if an error is a ValidationError
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// GetValidationFields extracts field errors from a ValidationError
func GetValidationFields(err error) map[string]string {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Fields
	}
	return nil
}

// FirstField returns the name of one offending field, preferring the
// first declared one, or "" when err is not a ValidationError
func FirstField(err error) string {
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		return ""
	}
	for field, msg := range validationErr.Fields {
		if msg == validationErr.Message {
			return field
		}
	}
	return ""
}
