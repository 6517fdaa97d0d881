package conformance

import "encoding/json"

// UnmarshalLogEntry records one attempt to coerce a raw value into a
// schema-typed value. OK is set once the attempt, including every nested
// one, succeeded.
type UnmarshalLogEntry struct {
	Schema *Schema
	Value  any
	OK     bool
}

// unmarshalLog is the per-validation-call recorder. Each CheckResponse
// invocation owns exactly one log; it is discarded on success and attached
// to the raised error on failure.
type unmarshalLog struct {
	entries []UnmarshalLogEntry
}

func (l *unmarshalLog) push(schema *Schema, value any) int {
	l.entries = append(l.entries, UnmarshalLogEntry{Schema: schema, Value: value})
	return len(l.entries) - 1
}

func (l *unmarshalLog) markOK(index int) {
	l.entries[index].OK = true
}

func (l *unmarshalLog) merge(other *unmarshalLog) {
	l.entries = append(l.entries, other.entries...)
}

// Last returns the most recent entry, the one closest to the failure.
func (l *unmarshalLog) Last() (UnmarshalLogEntry, bool) {
	if len(l.entries) == 0 {
		return UnmarshalLogEntry{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// verboseError augments a validation error with the last schema and value
// that were being unmarshalled when it occurred.
func verboseError(op *Operation, statusCode int, err error, log *unmarshalLog) *ConformanceError {
	res := &ConformanceError{
		Operation:  op,
		StatusCode: statusCode,
		Err:        err,
	}
	if entry, ok := log.Last(); ok {
		res.LastSchema = entry.Schema
		res.LastValue = entry.Value
		res.LastOK = entry.OK
	}
	return res
}

// SchemaSummary renders a schema as a compact, human inspectable structural
// summary: type, property names, bounds, enum and composition. Nested
// property schemas are reduced to their names to keep the output short.
func SchemaSummary(schema *Schema) string {
	data, err := json.Marshal(schemaSummaryMap(schema))
	if err != nil {
		return "<unrenderable schema>"
	}
	return string(data)
}

func schemaSummaryMap(schema *Schema) map[string]any {
	if schema == nil {
		return nil
	}

	res := map[string]any{}
	if schema.Type != "" {
		res["type"] = schema.Type
	}
	if schema.Format != "" {
		res["format"] = schema.Format
	}
	if schema.Nullable {
		res["nullable"] = true
	}
	if len(schema.Properties) > 0 {
		res["properties"] = schema.propertyNames()
	}
	if len(schema.Required) > 0 {
		res["required"] = schema.Required
	}
	if len(schema.Enum) > 0 {
		res["enum"] = schema.Enum
	}
	if schema.Default != nil {
		res["default"] = schema.Default
	}
	if schema.Example != nil {
		res["example"] = schema.Example
	}
	if schema.Items != nil {
		res["items"] = schemaSummaryMap(schema.Items)
	}
	if schema.Minimum != nil {
		res["minimum"] = *schema.Minimum
	}
	if schema.Maximum != nil {
		res["maximum"] = *schema.Maximum
	}
	if schema.ExclusiveMinimum {
		res["exclusiveMinimum"] = true
	}
	if schema.ExclusiveMaximum {
		res["exclusiveMaximum"] = true
	}
	if schema.MultipleOf != 0 {
		res["multipleOf"] = schema.MultipleOf
	}
	if schema.MinLength != 0 {
		res["minLength"] = schema.MinLength
	}
	if schema.MaxLength != 0 {
		res["maxLength"] = schema.MaxLength
	}
	if schema.Pattern != "" {
		res["pattern"] = schema.Pattern
	}
	if schema.MinItems != 0 {
		res["minItems"] = schema.MinItems
	}
	if schema.MaxItems != 0 {
		res["maxItems"] = schema.MaxItems
	}
	if schema.UniqueItems {
		res["uniqueItems"] = true
	}
	if schema.MinProperties != 0 {
		res["minProperties"] = schema.MinProperties
	}
	if schema.MaxProperties != 0 {
		res["maxProperties"] = schema.MaxProperties
	}
	if len(schema.AllOf) > 0 {
		branches := make([]any, 0, len(schema.AllOf))
		for _, branch := range schema.AllOf {
			branches = append(branches, schemaSummaryMap(branch))
		}
		res["allOf"] = branches
	}
	if len(schema.OneOf) > 0 {
		branches := make([]any, 0, len(schema.OneOf))
		for _, branch := range schema.OneOf {
			branches = append(branches, schemaSummaryMap(branch))
		}
		res["oneOf"] = branches
	}
	return res
}
