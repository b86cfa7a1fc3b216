package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sumire/authsession/internal/domain"
)

// AppValidator checks credential requests before they reach the auth
// provider, so malformed input never costs a provider round trip.
type AppValidator struct {
	validator *validator.Validate
}

// NewAppValidator creates an AppValidator that reports fields by their JSON
// names.
func NewAppValidator() *AppValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return &AppValidator{validator: v}
}

// Validate reports the first failing field of a request as a
// *domain.ValidationError.
func (v *AppValidator) Validate(i any) error {
	err := v.validator.Struct(i)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		fe := validationErrors[0]
		return &domain.ValidationError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed on '%s' validation", fe.Tag())
	}
}
