// Package validation wraps go-playground/validator with JSON field names and
// desk-readable messages, and plugs it into echo.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/iliyamo/hotel-backoffice/internal/notice"
)

// Validator checks tagged structs and reports notice.FieldErrors.
type Validator struct {
	v *validator.Validate
}

// New builds a Validator whose field names follow the json tags.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	// notblank ships outside the baked-in set; registering a named,
	// non-nil func cannot fail.
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	return &Validator{v: v}
}

// Struct validates s.  Rule violations come back as notice.FieldErrors; any
// other error means s was not a struct.
func (val *Validator) Struct(s interface{}) error {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	var out notice.FieldErrors
	for _, fe := range verrs {
		out.Add(fieldPath(fe), message(fe))
	}
	return out.Err()
}

// Validate satisfies echo.Validator so handlers can call c.Validate.
func (val *Validator) Validate(i interface{}) error {
	return val.Struct(i)
}

// fieldPath drops the struct name from the namespace: "RoomInput.price"
// becomes "price".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url", "http_url":
		return "must be a valid URL"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "numeric", "number":
		return "must contain only digits"
	case "credit_card":
		return "is not a valid card number"
	case "datetime":
		if fe.Param() == "2006-01-02" {
			return "must be a date (YYYY-MM-DD)"
		}
		return "must match " + fe.Param()
	case "notblank":
		return "must not be blank"
	}
	return "is invalid"
}
