package conformance

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// AdditionalPropertiesPolicy decides what to do with object keys that no
// declared property covers and no additionalProperties schema describes.
type AdditionalPropertiesPolicy int

const (
	// AdditionalPropertiesAllow accepts undeclared keys without validating them.
	AdditionalPropertiesAllow AdditionalPropertiesPolicy = iota
	// AdditionalPropertiesReject fails validation on any undeclared key.
	AdditionalPropertiesReject
)

// validator checks decoded values against schemas while recording every
// unmarshal attempt. It is an explicit strategy object rather than a patch
// of the contract-model library, so concurrent checkers never share state.
//
// Strings are strict: a value must already be a string to validate against
// a string-typed schema. Coercing other types would mask type-mismatch bugs
// in the implementation under test.
type validator struct {
	registry             *FormatRegistry
	additionalProperties AdditionalPropertiesPolicy
}

// Validate checks value against schema, appending to log as it descends.
func (v *validator) Validate(schema *Schema, value any, log *unmarshalLog) error {
	_, err := v.unmarshal(schema, value, log)
	return err
}

func (v *validator) unmarshal(schema *Schema, value any, log *unmarshalLog) (any, error) {
	if schema == nil {
		return value, nil
	}

	index := log.push(schema, value)
	res, err := v.unmarshalValue(schema, value, log)
	if err != nil {
		return nil, err
	}
	log.markOK(index)
	return res, nil
}

func (v *validator) unmarshalValue(schema *Schema, value any, log *unmarshalLog) (any, error) {
	if value == nil {
		if schema.Nullable {
			return nil, nil
		}
		return nil, fmt.Errorf("null value for non-nullable schema")
	}

	if len(schema.Enum) > 0 && !enumContains(schema.Enum, value) {
		return nil, fmt.Errorf("value %v is not one of the enum set %v", value, schema.Enum)
	}

	if len(schema.OneOf) > 0 {
		return v.unmarshalOneOf(schema, value, log)
	}

	for _, branch := range schema.AllOf {
		if _, err := v.unmarshal(branch, value, log); err != nil {
			return nil, err
		}
	}

	switch schema.Type {
	case TypeAny:
		return value, nil
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return nil, fmt.Errorf("expected boolean, got %T", value)
		}
		return value, nil
	case TypeInteger:
		if !IsInteger(value) {
			return nil, fmt.Errorf("expected integer, got %v (%T)", value, value)
		}
		return v.checkNumberConstraints(schema, value)
	case TypeNumber:
		if !IsNumber(value) {
			return nil, fmt.Errorf("expected number, got %T", value)
		}
		return v.checkNumberConstraints(schema, value)
	case TypeString:
		return v.unmarshalString(schema, value)
	case TypeArray:
		return v.unmarshalArray(schema, value, log)
	case TypeObject:
		return v.unmarshalObject(schema, value, log)
	case "":
		// composition-only node, the branches above carried the checks
		if len(schema.Properties) > 0 || len(schema.Required) > 0 {
			return v.unmarshalObject(schema, value, log)
		}
		return value, nil
	default:
		return nil, fmt.Errorf("unknown schema type %q", schema.Type)
	}
}

// unmarshalOneOf requires the value to satisfy exactly one branch. Branches
// are tried on scratch logs; only the matching branch's entries are kept.
func (v *validator) unmarshalOneOf(schema *Schema, value any, log *unmarshalLog) (any, error) {
	matched := -1
	var matchedLog *unmarshalLog
	var matchedValue any

	for i, branch := range schema.OneOf {
		scratch := &unmarshalLog{}
		res, err := v.unmarshal(branch, value, scratch)
		if err != nil {
			continue
		}
		if matched >= 0 {
			return nil, fmt.Errorf("value matches more than one oneOf branch (%d and %d)", matched, i)
		}
		matched = i
		matchedLog = scratch
		matchedValue = res
	}

	if matched < 0 {
		return nil, fmt.Errorf("value matches none of the %d oneOf branches", len(schema.OneOf))
	}

	log.merge(matchedLog)
	return matchedValue, nil
}

func (v *validator) checkNumberConstraints(schema *Schema, value any) (any, error) {
	num, err := ToFloat64(value)
	if err != nil {
		return nil, err
	}

	if schema.Minimum != nil {
		if num < *schema.Minimum {
			return nil, fmt.Errorf("value %v below minimum %v", num, *schema.Minimum)
		}
		if schema.ExclusiveMinimum && num == *schema.Minimum {
			return nil, fmt.Errorf("value %v equals exclusive minimum", num)
		}
	}
	if schema.Maximum != nil {
		if num > *schema.Maximum {
			return nil, fmt.Errorf("value %v above maximum %v", num, *schema.Maximum)
		}
		if schema.ExclusiveMaximum && num == *schema.Maximum {
			return nil, fmt.Errorf("value %v equals exclusive maximum", num)
		}
	}
	if schema.MultipleOf != 0 && !IsMultipleOf(num, schema.MultipleOf) {
		return nil, fmt.Errorf("value %v is not a multiple of %v", num, schema.MultipleOf)
	}

	return value, nil
}

func (v *validator) unmarshalString(schema *Schema, value any) (any, error) {
	str, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("expected string, got %v (%T)", value, value)
	}

	// length limits count characters, not bytes
	length := int64(utf8.RuneCountInString(str))
	if schema.MinLength > 0 && length < schema.MinLength {
		return nil, fmt.Errorf("string length %d below minLength %d", length, schema.MinLength)
	}
	if schema.MaxLength > 0 && length > schema.MaxLength {
		return nil, fmt.Errorf("string length %d above maxLength %d", length, schema.MaxLength)
	}
	if schema.Pattern != "" && !ValidateStringWithPattern(str, schema.Pattern) {
		return nil, fmt.Errorf("string %q does not match pattern %q", str, schema.Pattern)
	}

	if schema.Format != "" {
		if format, ok := v.registry.Format(schema.Format); ok {
			unmarshalled, err := format.Unmarshal(str)
			if err != nil {
				return nil, fmt.Errorf("format %q: %w", schema.Format, err)
			}
			if !format.IsValid(str) {
				return nil, fmt.Errorf("string %q is not a valid %q", str, schema.Format)
			}
			return unmarshalled, nil
		}
	}

	return str, nil
}

func (v *validator) unmarshalArray(schema *Schema, value any, log *unmarshalLog) (any, error) {
	items, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("expected array, got %T", value)
	}

	if schema.MinItems > 0 && int64(len(items)) < schema.MinItems {
		return nil, fmt.Errorf("array length %d below minItems %d", len(items), schema.MinItems)
	}
	if schema.MaxItems > 0 && int64(len(items)) > schema.MaxItems {
		return nil, fmt.Errorf("array length %d above maxItems %d", len(items), schema.MaxItems)
	}
	if schema.UniqueItems && HasDuplicates(items) {
		return nil, fmt.Errorf("array contains duplicate items")
	}

	res := make([]any, len(items))
	for i, item := range items {
		unmarshalled, err := v.unmarshal(schema.Items, item, log)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		res[i] = unmarshalled
	}
	return res, nil
}

func (v *validator) unmarshalObject(schema *Schema, value any, log *unmarshalLog) (any, error) {
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected object, got %T", value)
	}

	if schema.MinProperties > 0 && int64(len(obj)) < schema.MinProperties {
		return nil, fmt.Errorf("object has %d properties, below minProperties %d", len(obj), schema.MinProperties)
	}
	if schema.MaxProperties > 0 && int64(len(obj)) > schema.MaxProperties {
		return nil, fmt.Errorf("object has %d properties, above maxProperties %d", len(obj), schema.MaxProperties)
	}

	for _, name := range schema.Required {
		if _, exists := obj[name]; !exists {
			return nil, fmt.Errorf("required property %q is missing", name)
		}
	}

	res := make(map[string]any, len(obj))
	for _, name := range schema.propertyNames() {
		propValue, exists := obj[name]
		if !exists {
			continue
		}
		unmarshalled, err := v.unmarshal(schema.Properties[name], propValue, log)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", name, err)
		}
		res[name] = unmarshalled
	}

	for name, propValue := range obj {
		if _, declared := schema.Properties[name]; declared {
			continue
		}
		if schema.AdditionalProperties != nil {
			unmarshalled, err := v.unmarshal(schema.AdditionalProperties, propValue, log)
			if err != nil {
				return nil, fmt.Errorf("additional property %q: %w", name, err)
			}
			res[name] = unmarshalled
			continue
		}
		if v.additionalProperties == AdditionalPropertiesReject {
			return nil, fmt.Errorf("undeclared property %q", name)
		}
		res[name] = propValue
	}

	return res, nil
}

// enumContains compares by JSON encoding so integers decoded as float64
// still match their literals.
func enumContains(enum []any, value any) bool {
	encoded, err := json.Marshal(value)
	if err != nil {
		return false
	}
	for _, candidate := range enum {
		candidateEncoded, err := json.Marshal(candidate)
		if err != nil {
			continue
		}
		if string(encoded) == string(candidateEncoded) {
			return true
		}
	}
	return false
}
