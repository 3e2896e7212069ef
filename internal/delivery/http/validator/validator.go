// Package validator adapts go-playground/validator to echo's Validator
// interface.
package validator

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// structValidator wraps a validator.Validate instance for echo.
type structValidator struct {
	validate *validator.Validate
}

// New creates the request payload validator used by the HTTP server.
func New() echo.Validator {
	return &structValidator{validate: validator.New()}
}

// Validate checks struct tags on the bound request payload.
func (v *structValidator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		return errors.WithStack(err)
	}

	return nil
}
