package util

import (
	"fmt"
	"reflect"
	"strings"
)

// ValidationError reports a single argument that failed schema validation.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// CreateSchema derives a JSON schema (type "object") from the exported fields
// of a struct. Field names follow the json tag when present; a `description`
// tag becomes the property description. Non-pointer fields without omitempty
// are listed as required.
func CreateSchema(structType any) map[string]any {
	t := reflect.TypeOf(structType)
	if t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	properties := map[string]any{}
	var required []string

	if t != nil && t.Kind() == reflect.Struct {
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)

			name, opts, skip := jsonFieldName(field)
			if skip {
				continue
			}

			prop := map[string]any{"type": schemaType(field.Type)}
			if desc := field.Tag.Get("description"); desc != "" {
				prop["description"] = desc
			}
			properties[name] = prop

			optional := opts["omitempty"] || field.Type.Kind() == reflect.Ptr
			if !optional {
				required = append(required, name)
			}
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}

// ValidateParameters checks args against a CreateSchema-style object schema:
// every required field must be present and typed fields must match. Fields
// not named in the schema pass through untouched.
func ValidateParameters(params map[string]any, schema map[string]any) error {
	for _, name := range requiredFields(schema) {
		if _, ok := params[name]; !ok {
			return &ValidationError{Field: name, Message: "required field is missing"}
		}
	}

	properties, _ := schema["properties"].(map[string]any)
	for name, value := range params {
		prop, ok := properties[name].(map[string]any)
		if !ok {
			continue
		}

		want, _ := prop["type"].(string)
		if want != "" && !matchesType(value, want) {
			return &ValidationError{
				Field:   name,
				Value:   value,
				Message: fmt.Sprintf("expected type %s, got %T", want, value),
			}
		}
	}

	return nil
}

func jsonFieldName(field reflect.StructField) (name string, opts map[string]bool, skip bool) {
	if !field.IsExported() {
		return "", nil, true
	}

	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", nil, true
	}

	name = field.Name
	opts = map[string]bool{}

	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		name = parts[0]
	}
	for _, opt := range parts[1:] {
		opts[strings.TrimSpace(opt)] = true
	}

	return name, opts, false
}

func schemaType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Ptr:
		return schemaType(t.Elem())
	default:
		return "string"
	}
}

// requiredFields tolerates both []string (schemas built in Go) and []any
// (schemas decoded from JSON).
func requiredFields(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		names := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				names = append(names, s)
			}
		}
		return names
	default:
		return nil
	}
}

func matchesType(value any, want string) bool {
	if value == nil {
		return true
	}

	switch want {
	case "string":
		_, ok := value.(string)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	case "integer":
		if f, ok := value.(float64); ok {
			// JSON numbers decode as float64; accept whole values.
			return f == float64(int64(f))
		}
		return isIntKind(value)
	case "number":
		if _, ok := value.(float64); ok {
			return true
		}
		if _, ok := value.(float32); ok {
			return true
		}
		return isIntKind(value)
	default:
		return true
	}
}

func isIntKind(value any) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	default:
		return false
	}
}
