package conformance

import "sort"

// Schema is a normalized, dereferenced description of a value shape.
// It is compatible with all OpenAPI versions the underlying parser supports
// and is the only schema representation the generator and validator see.
// Composition is kept explicit: AllOf branches are conjunctions, OneOf
// branches are disjunctions. Schemas are immutable after load and may be
// shared by reference.
type Schema struct {
	Type string `json:"type,omitempty" yaml:"type,omitempty"`

	Format   string `json:"format,omitempty" yaml:"format,omitempty"`
	Nullable bool   `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	Enum     []any  `json:"enum,omitempty" yaml:"enum,omitempty"`

	// Numeric bounds. Pointers distinguish "0" from "not set" so that
	// exclusive bounds at zero keep their meaning.
	Minimum          *float64 `json:"minimum,omitempty" yaml:"minimum,omitempty"`
	Maximum          *float64 `json:"maximum,omitempty" yaml:"maximum,omitempty"`
	ExclusiveMinimum bool     `json:"exclusiveMinimum,omitempty" yaml:"exclusiveMinimum,omitempty"`
	ExclusiveMaximum bool     `json:"exclusiveMaximum,omitempty" yaml:"exclusiveMaximum,omitempty"`
	MultipleOf       float64  `json:"multipleOf,omitempty" yaml:"multipleOf,omitempty"`

	MinLength int64  `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength int64  `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Pattern   string `json:"pattern,omitempty" yaml:"pattern,omitempty"`

	Items       *Schema `json:"items,omitempty" yaml:"items,omitempty"`
	MinItems    int64   `json:"minItems,omitempty" yaml:"minItems,omitempty"`
	MaxItems    int64   `json:"maxItems,omitempty" yaml:"maxItems,omitempty"`
	UniqueItems bool    `json:"uniqueItems,omitempty" yaml:"uniqueItems,omitempty"`

	Properties           map[string]*Schema `json:"properties,omitempty" yaml:"properties,omitempty"`
	Required             []string           `json:"required,omitempty" yaml:"required,omitempty"`
	MinProperties        int64              `json:"minProperties,omitempty" yaml:"minProperties,omitempty"`
	MaxProperties        int64              `json:"maxProperties,omitempty" yaml:"maxProperties,omitempty"`
	AdditionalProperties *Schema            `json:"additionalProperties,omitempty" yaml:"additionalProperties,omitempty"`

	AllOf []*Schema `json:"allOf,omitempty" yaml:"allOf,omitempty"`
	OneOf []*Schema `json:"oneOf,omitempty" yaml:"oneOf,omitempty"`

	Default any `json:"default,omitempty" yaml:"default,omitempty"`
	Example any `json:"example,omitempty" yaml:"example,omitempty"`
}

const (
	TypeAny     = "any"
	TypeArray   = "array"
	TypeBoolean = "boolean"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeObject  = "object"
	TypeString  = "string"
)

const (
	ParameterInPath   = "path"
	ParameterInQuery  = "query"
	ParameterInHeader = "header"
	ParameterInCookie = "cookie"
)

// FixSchemaTypeTypos fixes common typos in schema types.
func FixSchemaTypeTypos(typ string) string {
	switch typ {
	case "int":
		return TypeInteger
	case "float", "double":
		return TypeNumber
	case "bool":
		return TypeBoolean
	}

	return typ
}

func GetOpenAPITypeFromValue(value any) string {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return TypeInteger
	case float32, float64:
		return TypeNumber
	case bool:
		return TypeBoolean
	case string:
		return TypeString
	}

	return ""
}

// propertyNames returns all declared property names, sorted.
func (s *Schema) propertyNames() []string {
	res := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}

// branches returns the allOf branches to fold over, treating a schema
// without allOf as a single-branch fold over itself.
func (s *Schema) branches() []*Schema {
	if len(s.AllOf) == 0 {
		return []*Schema{s}
	}
	return s.AllOf
}
