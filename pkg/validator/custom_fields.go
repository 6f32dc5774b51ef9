// Package validator checks custom field values stored on entities against
// the custom field sets that describe them.
package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rpattn/productadmin/internal/domain"
)

// ErrInvalidCustomFields is wrapped by Result.Err when any value is invalid.
var ErrInvalidCustomFields = errors.New("invalid custom field values")

// ValidationError describes one rejected or suspicious value.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// Result is the outcome of validating a custom field map.
type Result struct {
	Errors   []ValidationError `json:"errors"`
	Warnings []ValidationError `json:"warnings"`
}

func (r Result) Valid() bool { return len(r.Errors) == 0 }

// Err returns nil for a valid result.
func (r Result) Err() error {
	if r.Valid() {
		return nil
	}
	fields := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		fields[i] = e.Field
	}
	return fmt.Errorf("%w: %s", ErrInvalidCustomFields, strings.Join(fields, ", "))
}

// CustomFieldValidator validates custom field maps of one entity.
type CustomFieldValidator struct {
	entity string
}

func NewCustomFieldValidator(entity string) *CustomFieldValidator {
	return &CustomFieldValidator{entity: entity}
}

// Validate checks values against the active sets related to the entity.
// Keys no set defines are reported as warnings; they are kept as they are.
func (v *CustomFieldValidator) Validate(values map[string]any, sets []domain.CustomFieldSet) Result {
	result := Result{Errors: []ValidationError{}, Warnings: []ValidationError{}}

	fields := make(map[string]domain.CustomField)
	for _, set := range sets {
		if !set.Active || !set.AppliesTo(v.entity) {
			continue
		}
		for _, f := range set.Fields {
			fields[f.Name] = f
		}
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		field := fields[name]
		value, exists := values[name]
		if !exists || value == nil {
			if field.Config.Required {
				result.Errors = append(result.Errors, ValidationError{
					Field:   name,
					Message: fmt.Sprintf("required field '%s' is missing", name),
				})
			}
			continue
		}
		if err := checkType(field, value); err != nil {
			result.Errors = append(result.Errors, ValidationError{Field: name, Message: err.Error(), Value: value})
		}
	}

	extra := make([]string, 0)
	for name := range values {
		if _, ok := fields[name]; !ok {
			extra = append(extra, name)
		}
	}
	slices.Sort(extra)
	for _, name := range extra {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   name,
			Message: fmt.Sprintf("field '%s' is not defined by any custom field set", name),
			Value:   values[name],
		})
	}
	return result
}

func checkType(field domain.CustomField, value any) error {
	switch field.Type {
	case domain.CustomFieldText, domain.CustomFieldHTML:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("field '%s' must be a string, got %T", field.Name, value)
		}
	case domain.CustomFieldInt:
		if !isInteger(value) {
			return fmt.Errorf("field '%s' must be an integer, got %v", field.Name, value)
		}
	case domain.CustomFieldFloat:
		if !isNumber(value) {
			return fmt.Errorf("field '%s' must be a number, got %T", field.Name, value)
		}
	case domain.CustomFieldBool:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("field '%s' must be a boolean, got %T", field.Name, value)
		}
	case domain.CustomFieldDatetime:
		switch t := value.(type) {
		case time.Time:
		case string:
			if _, err := time.Parse(time.RFC3339, t); err != nil {
				return fmt.Errorf("field '%s' must be an RFC3339 timestamp: %v", field.Name, err)
			}
		default:
			return fmt.Errorf("field '%s' must be a timestamp string, got %T", field.Name, value)
		}
	case domain.CustomFieldSelect:
		return checkOptions(field, value)
	case domain.CustomFieldJSON:
		if _, err := json.Marshal(value); err != nil {
			return fmt.Errorf("field '%s' contains invalid JSON: %v", field.Name, err)
		}
	default:
		return fmt.Errorf("field '%s' has unknown type %q", field.Name, field.Type)
	}
	return nil
}

func checkOptions(field domain.CustomField, value any) error {
	var selected []string
	switch v := value.(type) {
	case string:
		selected = []string{v}
	case []string:
		selected = v
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("field '%s' options must be strings, got %T", field.Name, item)
			}
			selected = append(selected, s)
		}
	default:
		return fmt.Errorf("field '%s' must be an option or a list of options, got %T", field.Name, value)
	}
	if len(field.Config.Options) == 0 {
		return nil
	}
	for _, s := range selected {
		if !slices.Contains(field.Config.Options, s) {
			return fmt.Errorf("field '%s' has no option %q", field.Name, s)
		}
	}
	return nil
}

func isInteger(value any) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return v == math.Trunc(v) && !math.IsInf(v, 0)
	case json.Number:
		_, err := v.Int64()
		return err == nil
	case string:
		_, err := strconv.Atoi(v)
		return err == nil
	}
	return false
}

func isNumber(value any) bool {
	switch v := value.(type) {
	case float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case json.Number:
		_, err := v.Float64()
		return err == nil
	case string:
		_, err := strconv.ParseFloat(v, 64)
		return err == nil
	}
	return false
}

// ValidateSets checks the definitions of sets: field names must be unique
// across sets and select fields need options.
func ValidateSets(sets []domain.CustomFieldSet) error {
	seen := make(map[string]string)
	for _, set := range sets {
		for _, f := range set.Fields {
			if strings.TrimSpace(f.Name) == "" {
				return fmt.Errorf("set %s has a field without a name", set.Name)
			}
			if owner, ok := seen[f.Name]; ok {
				return fmt.Errorf("field %s is defined by both %s and %s", f.Name, owner, set.Name)
			}
			seen[f.Name] = set.Name
			if f.Type == domain.CustomFieldSelect && len(f.Config.Options) == 0 {
				return fmt.Errorf("select field %s of set %s has no options", f.Name, set.Name)
			}
		}
	}
	return nil
}
