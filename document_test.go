package conformance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationResponses(t *testing.T) {
	op := &Operation{
		Method: "GET",
		Path:   "/pets",
		Responses: map[string]*ResponseDefinition{
			"404":     {Content: map[string]*Schema{"application/json": {Type: TypeObject}}},
			"200":     {Content: map[string]*Schema{"application/json": {Type: TypeArray, Items: &Schema{Type: TypeString}}}},
			"default": {Content: map[string]*Schema{"application/json": {Type: TypeObject}}},
		},
	}

	t.Run("exact status wins", func(t *testing.T) {
		def := op.GetResponse(404, true)
		require.NotNil(t, def)
		assert.Equal(t, TypeObject, def.Content["application/json"].Type)
	})

	t.Run("fallback to default", func(t *testing.T) {
		assert.NotNil(t, op.GetResponse(500, true))
		assert.Nil(t, op.GetResponse(500, false))
	})

	t.Run("entries are ordered with default last", func(t *testing.T) {
		entries := op.ResponseEntries()
		require.Len(t, entries, 3)
		assert.Equal(t, 200, entries[0].StatusCode)
		assert.Equal(t, 404, entries[1].StatusCode)
		// the default bucket reports as 200
		assert.Equal(t, 200, entries[2].StatusCode)
	})
}

func TestOperationRequestBody(t *testing.T) {
	op := &Operation{
		RequestBody: map[string]*Schema{
			"application/json": {Type: TypeObject},
		},
	}
	assert.NotNil(t, op.GetRequestBody("application/json"))
	assert.Nil(t, op.GetRequestBody("text/plain"))
	assert.Nil(t, (&Operation{}).GetRequestBody("application/json"))
}

func TestSpecificationOperations(t *testing.T) {
	spec := &Specification{
		Paths: map[string]map[string]*Operation{
			"/b": {"GET": {Method: "GET", Path: "/b"}},
			"/a": {
				"POST": {Method: "POST", Path: "/a"},
				"GET":  {Method: "GET", Path: "/a"},
			},
		},
	}

	t.Run("stable path and method order", func(t *testing.T) {
		ops := spec.Operations()
		require.Len(t, ops, 3)
		assert.Equal(t, "/a", ops[0].Path)
		assert.Equal(t, "GET", ops[0].Method)
		assert.Equal(t, "/a", ops[1].Path)
		assert.Equal(t, "POST", ops[1].Method)
		assert.Equal(t, "/b", ops[2].Path)
	})

	t.Run("find is case insensitive on method", func(t *testing.T) {
		assert.NotNil(t, spec.FindOperation("/a", "post"))
		assert.Nil(t, spec.FindOperation("/c", "GET"))
	})
}

func TestDescribeOperation(t *testing.T) {
	spec := &Specification{BaseURL: "https://api.example.com/v1"}
	op := &Operation{Method: "get", Path: "/pets/{id}"}
	assert.Equal(t, "GET https://api.example.com/v1/pets/{id}", DescribeOperation(spec, op))
}

func TestIsValidHTTPVerb(t *testing.T) {
	assert.True(t, IsValidHTTPVerb("get"))
	assert.True(t, IsValidHTTPVerb("DELETE"))
	assert.False(t, IsValidHTTPVerb("fetch"))
}
