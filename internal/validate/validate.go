// Package validate checks drafts and patches before they reach a store or repository.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/and161185/health-diary/internal/errs"
	"github.com/and161185/health-diary/internal/model"
)

// Error lists per-field validation messages keyed by JSON field name.
type Error struct {
	Fields map[string]string
}

// Error implements error with fields in stable order.
func (e *Error) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation: " + strings.Join(parts, "; ")
}

// Unwrap lets callers match errs.ErrValidation.
func (e *Error) Unwrap() error { return errs.ErrValidation }

// Validator wraps go-playground/validator with diary-specific rules.
type Validator struct {
	v *validator.Validate
}

// New constructs a Validator with the mood rule and JSON field naming registered.
func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("mood", func(fl validator.FieldLevel) bool {
		return model.Mood(fl.Field().String()).Valid()
	})
	return &Validator{v: v}
}

// Struct validates s and converts failures into *Error.
func (x *Validator) Struct(s any) error {
	err := x.v.Struct(s)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return fmt.Errorf("validate: %w", err)
	}
	out := &Error{Fields: make(map[string]string, len(ves))}
	for _, fe := range ves {
		out.Fields[fe.Field()] = message(fe)
	}
	return out
}

// Validate satisfies echo.Validator so handlers can call c.Validate.
func (x *Validator) Validate(i any) error { return x.Struct(i) }

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Param() == "1" {
			return "is required"
		}
		return "must be at least " + fe.Param() + " characters"
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "mood":
		return "must be one of happy, neutral, sad, anxious, excited"
	case "email":
		return "must be a valid email"
	case "url":
		return "must be a valid URL"
	default:
		return "is invalid"
	}
}
