// Package validation runs struct-tag validation on form input and turns the
// failures into inline field errors.
package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/omkarjtg/ecomm/internal/domain/shared"
)

var (
	once     sync.Once
	instance *validator.Validate
)

// Engine returns the shared validator, reporting fields by their JSON name
func Engine() *validator.Validate {
	once.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())
		RegisterJSONNames(instance)
	})
	return instance
}

// RegisterJSONNames makes v report fields by their json (or form) tag
func RegisterJSONNames(v *validator.Validate) {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})
}

// Struct validates s and returns a *shared.ValidationError on failure
func Struct(s any) error {
	err := Engine().Struct(s)
	if err == nil {
		return nil
	}
	return FromValidator(err)
}

// FromValidator converts validator errors; other errors pass through
func FromValidator(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	out := &shared.ValidationError{}
	for _, e := range ve {
		out.Fields = append(out.Fields, shared.FieldError{
			Field:   e.Field(),
			Message: Message(e),
		})
	}
	return out
}

// Field builds a single-field validation error
func Field(field, message string) error {
	return &shared.ValidationError{Fields: []shared.FieldError{{Field: field, Message: message}}}
}

// Message returns a human-readable message for a failed tag
func Message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		if e.Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "eqfield":
		return "Passwords do not match"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "gte":
		return "Must be greater than or equal to " + e.Param()
	case "url":
		return "Invalid URL format"
	default:
		return "Invalid value"
	}
}
