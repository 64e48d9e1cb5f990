package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"store-service/internal/repository"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// invalid converts validator output into an ErrInvalidInput error naming
// the first offending field.
func invalid(err error) error {
	var validationErr validator.ValidationErrors
	if !errors.As(err, &validationErr) || len(validationErr) == 0 {
		return fmt.Errorf("%w: %v", repository.ErrInvalidInput, err)
	}

	fe := validationErr[0]
	field := strings.ToLower(fe.Field())

	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%w: %s is required", repository.ErrInvalidInput, field)
	case "min":
		return fmt.Errorf("%w: %s cannot be empty", repository.ErrInvalidInput, field)
	case "max":
		return fmt.Errorf("%w: %s must be at most %s characters", repository.ErrInvalidInput, field, fe.Param())
	case "gte":
		return fmt.Errorf("%w: %s cannot be negative", repository.ErrInvalidInput, field)
	case "lte":
		return fmt.Errorf("%w: %s must be at most %s", repository.ErrInvalidInput, field, fe.Param())
	case "gt":
		return fmt.Errorf("%w: %s must be positive", repository.ErrInvalidInput, field)
	}

	return fmt.Errorf("%w: %s failed %q", repository.ErrInvalidInput, field, fe.Tag())
}
