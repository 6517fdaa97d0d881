package conformance

import (
	"errors"
	"fmt"
)

var (
	// Load errors: the contract document could not be turned into a
	// Specification. Fatal, never retried.
	ErrUnsupportedSpecificationSource = errors.New("unsupported specification source, expected file path, []byte, io.Reader, map[string]any, *openapi3.T or *Specification")
	ErrSpecificationEmpty             = errors.New("specification has no paths")

	// Generation errors: a schema cannot be turned into a value generator.
	// The caller must fix registration or the schema, not retry.
	ErrNoFormatStrategy    = errors.New("no strategy registered for format")
	ErrUnsatisfiableSchema = errors.New("schema constraints cannot be satisfied")

	ErrNoTransport                  = errors.New("no transport callback configured")
	ErrUnsupportedParameterLocation = errors.New("unsupported parameter location")
)

// ConformanceError is the primary failure outcome of a check: a request or
// response did not match its declared schema. It carries the last schema and
// value the validator was unmarshalling when the failure occurred so that
// the failing subvalue can be localized.
type ConformanceError struct {
	Operation  *Operation
	StatusCode int
	Err        error

	// LastSchema, LastValue and LastOK come from the unmarshal log of the
	// failed validation call. LastOK distinguishes "this exact value was
	// rejected by this exact schema" from "a later structural check on the
	// whole value failed".
	LastSchema *Schema
	LastValue  any
	LastOK     bool
}

func (e *ConformanceError) Error() string {
	prefix := ""
	if e.Operation != nil {
		prefix = fmt.Sprintf("%s %s: ", e.Operation.Method, e.Operation.Path)
	}

	if e.LastSchema == nil {
		return fmt.Sprintf("%sresponse does not conform to schema: %v", prefix, e.Err)
	}

	summary := SchemaSummary(e.LastSchema)
	if e.LastOK {
		return fmt.Sprintf(
			"%sresponse does not conform to schema, the last successfully unmarshalled schema was %s with value %v: %v",
			prefix, summary, e.LastValue, e.Err)
	}
	return fmt.Sprintf("%s%v does not conform to the schema %s: %v", prefix, e.LastValue, summary, e.Err)
}

func (e *ConformanceError) Unwrap() error {
	return e.Err
}
