// Package validate runs struct-tag validation over configuration documents
// (the quality spec and the monitoring routing config) loaded from YAML.
package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is a package-level, concurrency-safe validator instance.
var validate = validator.New(validator.WithRequiredStructEnabled())

// FieldError represents a single field validation failure.
type FieldError struct {
	Field   string `json:"field" yaml:"field"`
	Message string `json:"message" yaml:"message"`
}

// Struct runs struct-tag validation on v and returns field-level errors.
// A nil return means v is valid.
func Struct(v any) []FieldError {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []FieldError{{Field: "", Message: err.Error()}}
	}

	out := make([]FieldError, 0, len(ve))
	for _, fe := range ve {
		out = append(out, FieldError{
			Field:   fieldName(fe),
			Message: fieldErrorMessage(fe),
		})
	}
	return out
}

// Error runs Struct and, if any field failed, collapses the failures into a
// single ConfigError-shaped error suitable for spec.md's §7 taxonomy.
func Error(v any) error {
	errs := Struct(v)
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
}

// fieldName converts the validator's field namespace to a lower_snake_case
// path, dropping the leading struct-type segment.
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		ns = ns[idx+1:]
	}
	return toSnakeCase(ns)
}

// fieldErrorMessage returns a human-readable message for a field error.
func fieldErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "url":
		return "must be a valid URL"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	default:
		return fmt.Sprintf("failed on %q validation", fe.Tag())
	}
}

// toSnakeCase converts PascalCase/camelCase namespace segments to snake_case,
// preserving the "." separators between nested struct fields.
func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '.':
			b.WriteByte('.')
		case r >= 'A' && r <= 'Z':
			if i > 0 && s[i-1] != '.' {
				b.WriteByte('_')
			}
			b.WriteRune(r + 32)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
