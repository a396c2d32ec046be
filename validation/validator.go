package validation

import (
	"fmt"
	"os"
	"strings"

	"github.com/kbukum/varflow/errors"
)

// Tag values attached to programmatic checks so callers can tell a missing
// mandatory input from an invalid one.
const (
	TagRequired = "required"
	TagInvalid  = "invalid"
)

// Validator collects validation errors.
type Validator struct {
	errors []FieldError
}

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field" yaml:"field"`
	Tag     string `json:"tag" yaml:"tag"`
	Message string `json:"message" yaml:"message"`
}

// New creates a new Validator.
func New() *Validator {
	return &Validator{
		errors: make([]FieldError, 0),
	}
}

// AddError adds a field error.
func (v *Validator) AddError(field, tag, message string) {
	v.errors = append(v.errors, FieldError{
		Field:   field,
		Tag:     tag,
		Message: message,
	})
}

// HasErrors returns true if there are validation errors.
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors.
func (v *Validator) Errors() []FieldError {
	return v.errors
}

// Validate returns an AppError if there are validation errors, nil otherwise.
func (v *Validator) Validate() *errors.AppError {
	if !v.HasErrors() {
		return nil
	}
	return fieldsError(v.errors)
}

// Required checks if a string is non-empty.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, TagRequired, "is required")
	}
	return v
}

// Min checks if a number meets minimum value.
func (v *Validator) Min(field string, value, minVal int) *Validator {
	if value < minVal {
		v.AddError(field, TagInvalid, fmt.Sprintf("must be at least %d", minVal))
	}
	return v
}

// OneOf checks if a value is one of the allowed values.
func (v *Validator) OneOf(field, value string, allowed []string) *Validator {
	if value == "" {
		return v
	}
	for _, a := range allowed {
		if value == a {
			return v
		}
	}
	v.AddError(field, TagInvalid, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")))
	return v
}

// FileExists checks that a non-empty path names a readable regular file.
func (v *Validator) FileExists(field, path string) *Validator {
	if path == "" {
		return v
	}
	info, err := os.Stat(path)
	switch {
	case err != nil:
		v.AddError(field, TagInvalid, fmt.Sprintf("cannot access %s: %v", path, err))
	case info.IsDir():
		v.AddError(field, TagInvalid, fmt.Sprintf("%s is a directory", path))
	}
	return v
}

// Custom applies a custom validation condition.
func (v *Validator) Custom(condition bool, field, message string) *Validator {
	if !condition {
		v.AddError(field, TagInvalid, message)
	}
	return v
}

// Merge appends the field errors carried by err, if it is a validation error.
func (v *Validator) Merge(err error) *Validator {
	if err == nil {
		return v
	}
	if fields := Fields(err); len(fields) > 0 {
		v.errors = append(v.errors, fields...)
		return v
	}
	v.AddError("", TagInvalid, err.Error())
	return v
}

// Fields extracts the field errors from a validation AppError.
func Fields(err error) []FieldError {
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Code != errors.ErrCodeConfiguration {
		return nil
	}
	fields, _ := appErr.Details["fields"].([]FieldError)
	return fields
}

// OnlyMissing reports whether err is a validation error whose every problem
// is an absent mandatory field.
func OnlyMissing(err error) bool {
	fields := Fields(err)
	if len(fields) == 0 {
		return false
	}
	for _, f := range fields {
		if !strings.HasPrefix(f.Tag, TagRequired) {
			return false
		}
	}
	return true
}

func fieldsError(fields []FieldError) *errors.AppError {
	messages := make([]string, len(fields))
	for i, e := range fields {
		messages[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	appErr := errors.Configuration("", strings.Join(messages, "; "))
	appErr.Details = map[string]any{
		"fields": fields,
	}
	return appErr
}
