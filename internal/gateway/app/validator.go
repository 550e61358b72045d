package app

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator struct tag validation of inbound payloads; errors name the json field
type Validator struct {
	validate *validator.Validate
}

// NewValidator create Validator
func NewValidator() *Validator {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: validate}
}

// Validate checks the validate tags of i
func (v *Validator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}
