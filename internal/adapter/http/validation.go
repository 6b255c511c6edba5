package http

import (
	"reflect"

	"github.com/go-playground/validator/v10"

	"github.com/gabrieltemtsen/clenja/pkg/address"
	"github.com/gabrieltemtsen/clenja/pkg/money"
)

// Reusable error payload
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
type ErrorResponse struct {
	Error string `json:"error"`
	// One of input, state, policy, resource, permission, arithmetic, internal
	Code    string       `json:"code,omitempty"`
	Reason  string       `json:"reason,omitempty"`
	Details []FieldError `json:"details,omitempty"`
}

type CustomValidator struct{ v *validator.Validate }

func NewValidator() *CustomValidator {
	v := validator.New()

	// 20-byte hex identity, non-zero
	_ = v.RegisterValidation("address", func(fl validator.FieldLevel) bool {
		return address.Valid(fl.Field().String())
	})
	// unsigned decimal integer string within 256 bits
	_ = v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		_, err := money.Parse(fl.Field().String())
		return err == nil
	})
	// basis points, at most 10000
	_ = v.RegisterValidation("bps", func(fl validator.FieldLevel) bool {
		f := fl.Field()
		switch f.Kind() {
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return f.Uint() <= money.BpsDenominator
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return f.Int() >= 0 && f.Int() <= money.BpsDenominator
		}
		return false
	})

	return &CustomValidator{v: v}
}

func (cv *CustomValidator) Validate(i any) error { return cv.v.Struct(i) }

// Map validator.ValidationErrors → []FieldError with readable messages.
func ToFieldErrors(err error) []FieldError {
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldError{{Field: "_", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(ve))
	for _, e := range ve {
		field := e.Field()
		switch e.Tag() {
		case "required":
			out = append(out, FieldError{Field: field, Message: "is required"})
		case "address":
			out = append(out, FieldError{Field: field, Message: "must be a non-zero 0x-prefixed 20-byte hex address"})
		case "amount":
			out = append(out, FieldError{Field: field, Message: "must be an unsigned integer amount"})
		case "bps":
			out = append(out, FieldError{Field: field, Message: "must be basis points between 0 and 10000"})
		case "gte":
			out = append(out, FieldError{Field: field, Message: "must be greater than or equal to " + e.Param()})
		case "lte":
			out = append(out, FieldError{Field: field, Message: "must be less than or equal to " + e.Param()})
		default:
			out = append(out, FieldError{Field: field, Message: e.Tag() + " validation failed"})
		}
	}
	return out
}
