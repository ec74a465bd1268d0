// Package jsonschema implements the small JSON-Schema subset used to gate
// skill inputs and outputs: type, required, properties and items.
//
// Checks go exactly one level deep. Nested property or item schemas are only
// consulted for their own type, never recursed into.
package jsonschema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Supported type names.
const (
	TypeObject  = "object"
	TypeArray   = "array"
	TypeString  = "string"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
)

// Schema is the supported subset of a JSON Schema document.
type Schema struct {
	Type       string             `json:"type,omitempty" yaml:"type,omitempty"`
	Required   []string           `json:"required,omitempty" yaml:"required,omitempty"`
	Properties map[string]*Schema `json:"properties,omitempty" yaml:"properties,omitempty"`
	Items      *Schema            `json:"items,omitempty" yaml:"items,omitempty"`
}

// Validate checks value (as produced by encoding/json into `any`) against
// schema. An empty result means valid.
func Validate(schema *Schema, value any) []string {
	if schema == nil {
		return nil
	}
	if !matches(schema.Type, value) {
		return []string{fmt.Sprintf("expected %s, got %s", schema.Type, typeName(value))}
	}

	var errs []string
	switch schema.Type {
	case TypeObject:
		obj, _ := value.(map[string]any)
		for _, key := range schema.Required {
			if _, ok := obj[key]; !ok {
				errs = append(errs, fmt.Sprintf("missing required field %q", key))
			}
		}
		for _, key := range sortedKeys(schema.Properties) {
			prop := schema.Properties[key]
			v, ok := obj[key]
			if !ok || prop == nil {
				continue
			}
			if !matches(prop.Type, v) {
				errs = append(errs, fmt.Sprintf("field %q: expected %s, got %s", key, prop.Type, typeName(v)))
			}
		}
	case TypeArray:
		if schema.Items == nil || schema.Items.Type == "" {
			break
		}
		arr, _ := value.([]any)
		for i, v := range arr {
			if !matches(schema.Items.Type, v) {
				errs = append(errs, fmt.Sprintf("item %d: expected %s, got %s", i, schema.Items.Type, typeName(v)))
				break
			}
		}
	}
	return errs
}

// ValidateJSON decodes raw and validates it.
func ValidateJSON(schema *Schema, raw []byte) []string {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return []string{fmt.Sprintf("invalid JSON: %v", err)}
	}
	return Validate(schema, value)
}

// Join formats validation messages for a single error string.
func Join(errs []string) string {
	return strings.Join(errs, "; ")
}

func matches(want string, v any) bool {
	switch want {
	case "":
		return true
	case TypeObject:
		_, ok := v.(map[string]any)
		return ok
	case TypeArray:
		_, ok := v.([]any)
		return ok
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeNumber:
		switch v.(type) {
		case float64, float32, int, int64, json.Number:
			return true
		}
		return false
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	default:
		// Unsupported keywords are ignored rather than rejected.
		return true
	}
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return TypeObject
	case []any:
		return TypeArray
	case string:
		return TypeString
	case float64, float32, int, int64, json.Number:
		return TypeNumber
	case bool:
		return TypeBoolean
	default:
		return fmt.Sprintf("%T", v)
	}
}

func sortedKeys(m map[string]*Schema) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
