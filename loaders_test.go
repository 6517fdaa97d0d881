package conformance

import (
	"bytes"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loaderSpec = `
{
	"openapi": "3.0.0",
	"info": {"title": "zoo", "version": "1.0.0"},
	"servers": [{"url": "https://zoo.example.com/api"}],
	"paths": {
		"/animals/{name}": {
			"parameters": [
				{"name": "name", "in": "path", "required": true, "schema": {"type": "string"}},
				{"name": "verbose", "in": "query", "schema": {"type": "boolean"}}
			],
			"get": {
				"operationId": "getAnimal",
				"parameters": [
					{"name": "verbose", "in": "query", "schema": {"type": "string", "enum": ["yes", "no"]}}
				],
				"responses": {
					"200": {
						"description": "ok",
						"content": {
							"application/json": {
								"schema": {"$ref": "#/components/schemas/Animal"}
							}
						}
					},
					"default": {"description": "error"}
				}
			}
		}
	},
	"components": {
		"schemas": {
			"Animal": {
				"type": "object",
				"properties": {
					"name": {"type": "string"},
					"friends": {
						"type": "array",
						"items": {"$ref": "#/components/schemas/Animal"}
					}
				},
				"required": ["name"]
			}
		}
	}
}`

func TestNewSpecification(t *testing.T) {
	t.Run("from bytes", func(t *testing.T) {
		spec, err := NewSpecification([]byte(loaderSpec))
		require.NoError(t, err)
		assert.Equal(t, "https://zoo.example.com/api", spec.BaseURL)
		assert.Len(t, spec.Operations(), 1)
	})

	t.Run("from file", func(t *testing.T) {
		spec, err := NewSpecification("testdata/petstore.yml")
		require.NoError(t, err)
		assert.Equal(t, "https://petstore.example.com/v1", spec.BaseURL)

		op := spec.FindOperation("/pets/{petId}", "GET")
		require.NotNil(t, op)
		assert.Equal(t, "showPetById", op.ID)

		pet := op.Responses["200"].Content["application/json"]
		require.NotNil(t, pet)
		assert.Equal(t, TypeObject, pet.Type)
		assert.Equal(t, "int64", pet.Properties["id"].Format)
	})

	t.Run("from reader", func(t *testing.T) {
		spec, err := NewSpecification(bytes.NewReader([]byte(loaderSpec)))
		require.NoError(t, err)
		assert.NotNil(t, spec.FindOperation("/animals/{name}", "get"))
	})

	t.Run("from parsed document", func(t *testing.T) {
		doc, err := openapi3.NewLoader().LoadFromData([]byte(loaderSpec))
		require.NoError(t, err)
		spec, err := NewSpecification(doc)
		require.NoError(t, err)
		assert.Len(t, spec.Operations(), 1)
	})

	t.Run("existing specification passes through", func(t *testing.T) {
		spec, err := NewSpecification([]byte(loaderSpec))
		require.NoError(t, err)
		again, err := NewSpecification(spec)
		require.NoError(t, err)
		assert.Same(t, spec, again)
	})

	t.Run("unsupported source type", func(t *testing.T) {
		_, err := NewSpecification(42)
		assert.ErrorIs(t, err, ErrUnsupportedSpecificationSource)
	})

	t.Run("document without paths", func(t *testing.T) {
		_, err := NewSpecification([]byte(`{"openapi": "3.0.0", "info": {"title": "x", "version": "1"}, "paths": {}}`))
		assert.ErrorIs(t, err, ErrSpecificationEmpty)
	})
}

func TestOperationConversion(t *testing.T) {
	spec, err := NewSpecification([]byte(loaderSpec))
	require.NoError(t, err)

	op := spec.FindOperation("/animals/{name}", "GET")
	require.NotNil(t, op)
	assert.Equal(t, "getAnimal", op.ID)
	assert.Equal(t, "GET", op.Method)

	t.Run("path level parameters merge, operation level wins", func(t *testing.T) {
		require.Len(t, op.Parameters, 2)
		// sorted by name
		assert.Equal(t, "name", op.Parameters[0].Name)
		assert.Equal(t, ParameterInPath, op.Parameters[0].In)
		assert.True(t, op.Parameters[0].Required)

		verbose := op.Parameters[1]
		assert.Equal(t, "verbose", verbose.Name)
		assert.Equal(t, ParameterInQuery, verbose.In)
		// the operation redeclares it as an enum string
		assert.Equal(t, TypeString, verbose.Schema.Type)
		assert.Len(t, verbose.Schema.Enum, 2)
	})

	t.Run("responses keep their literal keys", func(t *testing.T) {
		assert.Contains(t, op.Responses, "200")
		assert.Contains(t, op.Responses, "default")
		assert.False(t, op.Responses["default"].HasContent())
	})

	t.Run("recursive references are cut, not followed forever", func(t *testing.T) {
		schema := op.Responses["200"].Content["application/json"]
		require.NotNil(t, schema)
		assert.Equal(t, TypeObject, schema.Type)

		friends := schema.Properties["friends"]
		require.NotNil(t, friends)
		assert.Equal(t, TypeArray, friends.Type)

		depth := 0
		for node := friends.Items; node != nil; depth++ {
			if node.Properties == nil {
				break
			}
			inner := node.Properties["friends"]
			if inner == nil {
				break
			}
			node = inner.Items
		}
		assert.LessOrEqual(t, depth, 3)
	})
}

func TestNewSchemaFromKin(t *testing.T) {
	t.Run("no type reads as object", func(t *testing.T) {
		schema := CreateSchemaFromString(t, `{"properties": {"a": {"type": "string"}}}`)
		assert.Equal(t, TypeObject, schema.Type)
	})

	t.Run("no type with enum takes the members' type", func(t *testing.T) {
		schema := CreateSchemaFromString(t, `{"enum": ["asc", "desc"]}`)
		assert.Equal(t, TypeString, schema.Type)

		schema = CreateSchemaFromString(t, `{"enum": [true, false]}`)
		assert.Equal(t, TypeBoolean, schema.Type)

		// JSON numbers decode as floats
		schema = CreateSchemaFromString(t, `{"enum": [1, 2]}`)
		assert.Equal(t, TypeNumber, schema.Type)
	})

	t.Run("array without items gets string items", func(t *testing.T) {
		schema := CreateSchemaFromString(t, `{"type": "array"}`)
		require.NotNil(t, schema.Items)
		assert.Equal(t, TypeString, schema.Items.Type)
	})

	t.Run("anyOf folds into oneOf", func(t *testing.T) {
		schema := CreateSchemaFromString(t, `
		{
			"oneOf": [{"type": "string"}],
			"anyOf": [{"type": "integer"}, {"type": "boolean"}]
		}`)
		assert.Len(t, schema.OneOf, 3)
		assert.Empty(t, schema.Type)
	})

	t.Run("allOf branches are kept explicit", func(t *testing.T) {
		schema := CreateSchemaFromString(t, `
		{
			"allOf": [
				{"type": "object", "properties": {"a": {"type": "integer"}}},
				{"type": "object", "properties": {"b": {"type": "string"}}}
			]
		}`)
		assert.Len(t, schema.AllOf, 2)
		assert.Len(t, schema.branches(), 2)
	})

	t.Run("additionalProperties true becomes a string schema", func(t *testing.T) {
		schema := CreateSchemaFromString(t, `{"type": "object", "additionalProperties": true}`)
		require.NotNil(t, schema.AdditionalProperties)
		assert.Equal(t, TypeString, schema.AdditionalProperties.Type)
	})

	t.Run("additionalProperties schema is converted", func(t *testing.T) {
		schema := CreateSchemaFromString(t, `{"type": "object", "additionalProperties": {"type": "integer"}}`)
		require.NotNil(t, schema.AdditionalProperties)
		assert.Equal(t, TypeInteger, schema.AdditionalProperties.Type)
	})

	t.Run("bounds carry over", func(t *testing.T) {
		schema := CreateSchemaFromString(t, `
		{
			"type": "integer",
			"minimum": 2,
			"maximum": 9,
			"exclusiveMaximum": true,
			"multipleOf": 3
		}`)
		require.NotNil(t, schema.Minimum)
		assert.Equal(t, float64(2), *schema.Minimum)
		require.NotNil(t, schema.Maximum)
		assert.Equal(t, float64(9), *schema.Maximum)
		assert.True(t, schema.ExclusiveMaximum)
		assert.False(t, schema.ExclusiveMinimum)
		assert.Equal(t, float64(3), schema.MultipleOf)
	})
}
