package conformance

import (
	"encoding/json"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
)

func CreateSchemaFromString(t *testing.T, src string) *Schema {
	t.Helper()
	kinSchema := &openapi3.Schema{}
	if err := json.Unmarshal([]byte(src), kinSchema); err != nil {
		t.Fatal(err)
	}
	return NewSchemaFromKin(kinSchema)
}

func CreateSpecificationFromString(t *testing.T, src string) *Specification {
	t.Helper()
	spec, err := NewSpecification([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	return spec
}
