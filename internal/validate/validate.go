// Package validate checks decoded API request bodies with
// go-playground/validator and reports failures keyed by JSON field name.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// bizPhone matches local landline and mobile numbers: a leading 0, an area
// digit from 2 to 9, then seven or eight digits.
var bizPhone = regexp.MustCompile(`^0[2-9]\d{7,8}$`)

// Error lists the invalid fields of a request.
type Error struct {
	Fields map[string]string
}

// Error reports the first invalid field in name order.
func (e *Error) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("%q %s", names[0], e.Fields[names[0]])
}

// Validator wraps go-playground/validator with JSON field names and
// friendlier messages.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("bizphone", func(fl validator.FieldLevel) bool {
		return bizPhone.MatchString(fl.Field().String())
	})

	return &Validator{v: v}
}

// Struct validates s and returns *Error when any field is invalid.
func (v *Validator) Struct(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = friendlyMessage(fe)
	}
	return &Error{Fields: fields}
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	case "bizphone":
		return "must be a valid phone number"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of: " + e.Param()
	default:
		return "is invalid"
	}
}
