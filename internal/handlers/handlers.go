package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// ErrorResponse is the uniform error body of the REST surface.
type ErrorResponse struct {
	Message string `json:"message"`
}

// RequestValidator adapts go-playground/validator to echo's Validator.
type RequestValidator struct {
	validate *validator.Validate
}

// NewRequestValidator builds the shared request validator.
func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

func (v *RequestValidator) Validate(i any) error {
	return v.validate.Struct(i)
}

// bindAndValidate decodes the request body and runs struct validation.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(400, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(400, err.Error())
	}
	return nil
}
