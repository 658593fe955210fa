// Package validation wraps a shared go-playground validator with the custom
// rules the dashboard entities use.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// TimestampLayouts are the accepted layouts for the "timestamp" rule.
var TimestampLayouts = []string{
	"2006-01-02T15:04:05.000000Z",
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("timestamp", validateTimestamp)
	validate.RegisterTagNameFunc(jsonName)
}

func validateTimestamp(fl validator.FieldLevel) bool {
	_, ok := ParseTimestamp(fl.Field().String())
	return ok
}

// ParseTimestamp parses s with the first matching layout.
func ParseTimestamp(s string) (time.Time, bool) {
	for _, layout := range TimestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

// Struct validates v against its validate tags.
func Struct(v any) error {
	return validate.Struct(v)
}

// Describe renders a validation error as short field-level messages.
func Describe(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, describeField(fe))
	}
	return out
}

func describeField(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("'%s' is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("'%s' is %q, want one of %s", fe.Field(), fe.Value(), fe.Param())
	case "timestamp":
		return fmt.Sprintf("'%s' is %q, not a timestamp", fe.Field(), fe.Value())
	default:
		return fmt.Sprintf("'%s' failed %s", fe.Field(), fe.Tag())
	}
}
