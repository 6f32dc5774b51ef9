package domain

import "github.com/google/uuid"

// CustomFieldType names the value type of a custom field.
type CustomFieldType string

const (
	CustomFieldText     CustomFieldType = "text"
	CustomFieldHTML     CustomFieldType = "html"
	CustomFieldInt      CustomFieldType = "int"
	CustomFieldFloat    CustomFieldType = "float"
	CustomFieldBool     CustomFieldType = "bool"
	CustomFieldDatetime CustomFieldType = "datetime"
	CustomFieldSelect   CustomFieldType = "select"
	CustomFieldJSON     CustomFieldType = "json"
)

// CustomFieldConfig is the editor configuration of a custom field.
type CustomFieldConfig struct {
	Label               map[string]string `json:"label,omitempty"`
	CustomFieldPosition int               `json:"customFieldPosition"`
	Options             []string          `json:"options,omitempty"`
	Required            bool              `json:"required,omitempty"`
}

// CustomField is one field of a custom field set.
type CustomField struct {
	ID     uuid.UUID         `json:"id"`
	Name   string            `json:"name"`
	Type   CustomFieldType   `json:"type"`
	Config CustomFieldConfig `json:"config"`
}

// CustomFieldSet groups custom fields attached to one or more entities.
type CustomFieldSet struct {
	ID        uuid.UUID     `json:"id"`
	Name      string        `json:"name"`
	Active    bool          `json:"active"`
	Relations []string      `json:"relations"`
	Fields    []CustomField `json:"customFields"`
}

// AppliesTo reports whether the set is related to entityName.
func (s CustomFieldSet) AppliesTo(entityName string) bool {
	for _, r := range s.Relations {
		if r == entityName {
			return true
		}
	}
	return false
}

// FieldsByName indexes the fields of all sets by name.
func FieldsByName(sets []CustomFieldSet) map[string]CustomField {
	out := make(map[string]CustomField)
	for _, s := range sets {
		for _, f := range s.Fields {
			out[f.Name] = f
		}
	}
	return out
}
