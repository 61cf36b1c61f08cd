package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/harishgarg/procflow/model"
	"github.com/harishgarg/procflow/util"
)

// ValidateSubmission checks submitted human-task values against the
// activity's field schemas and returns every failure at once, so the caller
// can reject the whole submission without partial application.
func ValidateSubmission(fields []model.FieldDef, data map[string]any) []string {
	var failures []string
	for _, field := range fields {
		value, present := data[field.Name]
		if msg := validateField(field, value, present); msg != "" {
			failures = append(failures, msg)
		}
	}
	return failures
}

func validateField(field model.FieldDef, value any, present bool) string {
	empty := !present || value == nil || value == ""
	if empty {
		if field.Required && field.Default == nil {
			return fmt.Sprintf("field %s is required", field.Name)
		}
		return ""
	}
	switch field.Type {
	case model.FIELD_TYPE_TEXT, model.FIELD_TYPE_FILE:
		s, ok := value.(string)
		if !ok {
			return fmt.Sprintf("field %s must be text", field.Name)
		}
		if field.MinLength > 0 && len(s) < field.MinLength {
			return fmt.Sprintf("field %s must be at least %d characters", field.Name, field.MinLength)
		}
		if field.MaxLength > 0 && len(s) > field.MaxLength {
			return fmt.Sprintf("field %s must be at most %d characters", field.Name, field.MaxLength)
		}
		if field.Pattern != "" {
			re, err := regexp.Compile(field.Pattern)
			if err != nil {
				return fmt.Sprintf("field %s has an invalid pattern", field.Name)
			}
			if !re.MatchString(s) {
				return fmt.Sprintf("field %s does not match pattern %s", field.Name, field.Pattern)
			}
		}
	case model.FIELD_TYPE_NUMBER:
		n, ok := toNumber(value)
		if !ok {
			return fmt.Sprintf("field %s must be a number", field.Name)
		}
		if field.Min != nil && n < *field.Min {
			return fmt.Sprintf("field %s must be >= %v", field.Name, *field.Min)
		}
		if field.Max != nil && n > *field.Max {
			return fmt.Sprintf("field %s must be <= %v", field.Name, *field.Max)
		}
	case model.FIELD_TYPE_SELECT:
		s := fmt.Sprintf("%v", value)
		if !util.Contains(field.Options, s) {
			return fmt.Sprintf("field %s must be one of %s", field.Name, strings.Join(field.Options, ", "))
		}
	case model.FIELD_TYPE_DATE:
		s, ok := value.(string)
		if !ok {
			return fmt.Sprintf("field %s must be a date string", field.Name)
		}
		if !parseableDate(s) {
			return fmt.Sprintf("field %s is not a parseable date", field.Name)
		}
	case model.FIELD_TYPE_BOOLEAN:
		if _, ok := toBool(value); !ok {
			return fmt.Sprintf("field %s must be a boolean", field.Name)
		}
	}
	return ""
}

func toNumber(value any) (float64, bool) {
	switch t := value.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return n, err == nil
	}
	return 0, false
}

func toBool(value any) (bool, bool) {
	switch t := value.(type) {
	case bool:
		return t, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		return b, err == nil
	}
	return false, false
}

func parseableDate(s string) bool {
	for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04:05"} {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}
