// Package validator provides validation infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package validator

import (
	"reflect"
	"strings"

	"leadrouter_backend/platform/phone"

	"github.com/go-playground/validator/v10"
)

// TagLeadPhone validates that a string is a usable contact phone for the default region.
const TagLeadPhone = "leadphone"

// Validator wraps the go-playground validator for structured validation.
// Using a struct allows for dependency injection and easier testing.
type Validator struct {
	v *validator.Validate
}

// New creates a new Validator instance with the platform tags registered.
// Domain-specific validation rules can be registered using RegisterValidation.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	_ = v.RegisterValidation(TagLeadPhone, func(fl validator.FieldLevel) bool {
		return phone.Validate(fl.Field().String(), phone.DefaultRegion) == nil
	})

	return &Validator{v: v}
}

// Struct validates a struct based on validation tags.
func (val *Validator) Struct(s interface{}) error {
	return val.v.Struct(s)
}

// Var validates a single variable against a tag.
func (val *Validator) Var(field interface{}, tag string) error {
	return val.v.Var(field, tag)
}

// RegisterValidation registers a custom validation function.
func (val *Validator) RegisterValidation(tag string, fn validator.Func) error {
	return val.v.RegisterValidation(tag, fn)
}

// RegisterEnum registers a tag that accepts exactly the given string values.
func (val *Validator) RegisterEnum(tag string, allowed func(string) bool) error {
	return val.v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return allowed(fl.Field().String())
	})
}

// FieldErrors flattens validation errors into a field -> tag map for responses.
func FieldErrors(err error) map[string]string {
	out := map[string]string{}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return out
	}
	for _, fe := range errs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}

func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return field.Name
	}
	return name
}
