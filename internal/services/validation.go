package services

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"warung/pkg/apperrors"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// newValidator returns a validator that reports json field names and knows the username rule.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

// validationError converts validator failures into a ValidationError with per-field details.
func validationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return apperrors.Wrap(apperrors.CodeValidation, err, "Invalid request")
	}

	message := "Validation failed"
	details := make(map[string]string, len(validationErrors))
	for _, e := range validationErrors {
		details[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
		if e.Tag() == "eqfield" && e.Field() == "confirm_password" {
			message = "Passwords do not match"
		}
	}
	return apperrors.New(apperrors.CodeValidation, message).WithDetails(details)
}

func normalizeIdentity(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
