// Package validator wraps go-playground/validator for request payloads.
package validator

import (
	"reflect"
	"strings"
	"sync"

	apperrors "flowcanvas/pkg/errors"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// Initialize builds the global validator instance. Field names in error
// messages come from json tags so API callers see the wire names.
func Initialize() {
	once.Do(func() {
		validate = validator.New()

		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		validate.RegisterValidation("design_name", validateDesignName)
	})
}

// Validate checks a struct against its validate tags and returns a
// ValidationError listing every failing field.
func Validate(s any) error {
	if validate == nil {
		Initialize()
	}

	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	verrs := apperrors.NewValidationErrors()
	for _, fe := range err.(validator.ValidationErrors) {
		verrs.Add("%s", formatFieldError(fe))
	}
	return verrs.AsError()
}

func formatFieldError(fe validator.FieldError) string {
	field := fe.Field()

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return field + " must be at least " + fe.Param() + " characters"
	case "max":
		return field + " must be at most " + fe.Param() + " characters"
	case "oneof":
		return field + " must be one of: " + fe.Param()
	case "uuid":
		return field + " must be a valid UUID"
	case "design_name":
		return field + " must be 1-100 characters of letters, digits, spaces, hyphens or underscores"
	default:
		return field + " failed validation (" + fe.Tag() + ")"
	}
}

func validateDesignName(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	if len(name) < 1 || len(name) > 100 {
		return false
	}
	for _, char := range name {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == ' ' || char == '-' || char == '_') {
			return false
		}
	}
	return true
}
