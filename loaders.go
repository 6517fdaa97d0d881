package conformance

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// NewSpecification creates a Specification from any of the supported source
// forms: a file path, raw document bytes, an io.Reader, an already decoded
// map, a parsed *openapi3.T or an existing *Specification.
func NewSpecification(source any) (*Specification, error) {
	switch src := source.(type) {
	case *Specification:
		return src, nil
	case string:
		return NewSpecificationFromFile(src)
	case []byte:
		return NewSpecificationFromBytes(src)
	case io.Reader:
		return NewSpecificationFromReader(src)
	case map[string]any:
		data, err := json.Marshal(src)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedSpecificationSource, err)
		}
		return NewSpecificationFromBytes(data)
	case *openapi3.T:
		return NewSpecificationFromDocument(src)
	default:
		return nil, fmt.Errorf("%w, got %T", ErrUnsupportedSpecificationSource, source)
	}
}

// NewSpecificationFromFile loads a specification from a file path.
func NewSpecificationFromFile(filePath string) (*Specification, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(filePath)
	if err != nil {
		return nil, err
	}
	return NewSpecificationFromDocument(doc)
}

// NewSpecificationFromBytes loads a specification from raw JSON or YAML.
func NewSpecificationFromBytes(data []byte) (*Specification, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, err
	}
	return NewSpecificationFromDocument(doc)
}

// NewSpecificationFromReader loads a specification from a readable stream.
func NewSpecificationFromReader(reader io.Reader) (*Specification, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	return NewSpecificationFromBytes(data)
}

// NewSpecificationFromDocument converts a parsed and dereferenced document
// into the normalized object graph.
func NewSpecificationFromDocument(doc *openapi3.T) (*Specification, error) {
	if doc == nil || len(doc.Paths) == 0 {
		return nil, ErrSpecificationEmpty
	}

	baseURL := ""
	if len(doc.Servers) > 0 && doc.Servers[0] != nil {
		baseURL = doc.Servers[0].URL
	}

	paths := make(map[string]map[string]*Operation)
	for pathName, pathItem := range doc.Paths {
		if pathItem == nil {
			continue
		}
		methods := make(map[string]*Operation)
		for method, kinOp := range pathItem.Operations() {
			if kinOp == nil || !IsValidHTTPVerb(method) {
				continue
			}
			methods[strings.ToUpper(method)] = newOperationFromKin(pathName, strings.ToUpper(method), pathItem, kinOp)
		}
		if len(methods) > 0 {
			paths[pathName] = methods
		}
	}

	return &Specification{
		BaseURL: baseURL,
		Paths:   paths,
	}, nil
}

func newOperationFromKin(path, method string, pathItem *openapi3.PathItem, kinOp *openapi3.Operation) *Operation {
	op := &Operation{
		ID:     kinOp.OperationID,
		Method: method,
		Path:   path,
		kin:    kinOp,
	}

	// path level parameters apply to every operation of the path,
	// operation level entries win on name+location collision.
	op.Parameters = collectKinParameters(pathItem.Parameters, kinOp.Parameters)

	if kinOp.RequestBody != nil && kinOp.RequestBody.Value != nil {
		body := make(map[string]*Schema)
		for contentType, mediaType := range kinOp.RequestBody.Value.Content {
			if mediaType == nil || mediaType.Schema == nil {
				continue
			}
			body[contentType] = NewSchemaFromKin(mediaType.Schema.Value)
		}
		if len(body) > 0 {
			op.RequestBody = body
		}
	}

	op.Responses = make(map[string]*ResponseDefinition)
	for codeName, respRef := range kinOp.Responses {
		if respRef == nil || respRef.Value == nil {
			continue
		}
		content := make(map[string]*Schema)
		for contentType, mediaType := range respRef.Value.Content {
			if mediaType == nil || mediaType.Schema == nil {
				continue
			}
			content[contentType] = NewSchemaFromKin(mediaType.Schema.Value)
		}
		op.Responses[codeName] = &ResponseDefinition{Content: content}
	}

	return op
}

func collectKinParameters(groups ...openapi3.Parameters) Parameters {
	seen := make(map[string]bool)
	var params Parameters

	for _, group := range groups {
		for _, paramRef := range group {
			if paramRef == nil || paramRef.Value == nil {
				continue
			}
			p := paramRef.Value

			key := p.In + ":" + p.Name
			if seen[key] {
				// operation level declaration overrides the path level one
				for i, existing := range params {
					if existing.In == p.In && existing.Name == p.Name {
						params[i] = newParameterFromKin(p)
					}
				}
				continue
			}
			seen[key] = true
			params = append(params, newParameterFromKin(p))
		}
	}

	sort.Slice(params, func(i, j int) bool {
		return params[i].Name < params[j].Name
	})
	return params
}

func newParameterFromKin(p *openapi3.Parameter) *Parameter {
	var schema *Schema
	if p.Schema != nil {
		schema = NewSchemaFromKin(p.Schema.Value)
	}
	required := p.Required
	if p.In == ParameterInPath {
		required = true
	}
	return &Parameter{
		Name:     p.Name,
		In:       strings.ToLower(p.In),
		Required: required,
		Schema:   schema,
	}
}

// NewSchemaFromKin converts a kin schema into the normalized Schema,
// keeping allOf and oneOf as explicit combinator nodes. anyOf is folded
// into oneOf since both resolve to a single branch during generation.
func NewSchemaFromKin(schema *openapi3.Schema) *Schema {
	return newSchemaFromKin(schema, nil)
}

// maxSchemaCycles caps how often the same reference may repeat on one
// conversion path before the branch is cut.
const maxSchemaCycles = 1

func newSchemaFromKin(schema *openapi3.Schema, refPath []string) *Schema {
	if schema == nil {
		return nil
	}

	if GetSliceMaxRepetitionNumber(refPath) > maxSchemaCycles {
		return nil
	}

	typ := FixSchemaTypeTypos(schema.Type)

	var items *Schema
	if schema.Items != nil && schema.Items.Value != nil {
		items = newSchemaFromKin(schema.Items.Value,
			AppendSliceFirstNonEmpty(refPath, schema.Items.Ref))
	}

	var properties map[string]*Schema
	if len(schema.Properties) > 0 {
		properties = make(map[string]*Schema)
		for propName, ref := range schema.Properties {
			converted := newSchemaFromKin(ref.Value, AppendSliceFirstNonEmpty(refPath, ref.Ref))
			if converted != nil {
				properties[propName] = converted
			}
		}
	}

	var additional *Schema
	if extra := getKinAdditionalProperties(schema.AdditionalProperties); extra != nil {
		additional = newSchemaFromKin(extra, append(refPath, "additionalProperties"))
	}

	allOf := convertKinBranches(schema.AllOf, refPath)

	// pick-one semantics are identical for oneOf and anyOf
	oneOf := convertKinBranches(schema.OneOf, refPath)
	oneOf = append(oneOf, convertKinBranches(schema.AnyOf, refPath)...)

	if typ == "" && len(allOf) == 0 && len(oneOf) == 0 {
		// no declared type reads as a free-form object so consumers always
		// get a predictable shape, unless the enum members pin it down
		typ = TypeObject
		if len(schema.Enum) > 0 {
			if inferred := GetOpenAPITypeFromValue(schema.Enum[0]); inferred != "" {
				typ = inferred
			}
		}
	}

	if typ == TypeArray && items == nil {
		// unspecified items could be anything, assume strings
		items = &Schema{Type: TypeString}
	}

	return &Schema{
		Type:                 typ,
		Format:               schema.Format,
		Nullable:             schema.Nullable,
		Enum:                 schema.Enum,
		Minimum:              schema.Min,
		Maximum:              schema.Max,
		ExclusiveMinimum:     schema.ExclusiveMin,
		ExclusiveMaximum:     schema.ExclusiveMax,
		MultipleOf:           RemovePointer(schema.MultipleOf),
		MinLength:            int64(schema.MinLength),
		MaxLength:            int64(RemovePointer(schema.MaxLength)),
		Pattern:              schema.Pattern,
		Items:                items,
		MinItems:             int64(schema.MinItems),
		MaxItems:             int64(RemovePointer(schema.MaxItems)),
		UniqueItems:          schema.UniqueItems,
		Properties:           properties,
		Required:             SliceUnique(schema.Required),
		MinProperties:        int64(schema.MinProps),
		MaxProperties:        int64(RemovePointer(schema.MaxProps)),
		AdditionalProperties: additional,
		AllOf:                allOf,
		OneOf:                oneOf,
		Default:              schema.Default,
		Example:              schema.Example,
	}
}

func convertKinBranches(refs openapi3.SchemaRefs, refPath []string) []*Schema {
	var res []*Schema
	for _, ref := range refs {
		if ref == nil || ref.Value == nil {
			continue
		}
		branch := newSchemaFromKin(ref.Value, AppendSliceFirstNonEmpty(refPath, ref.Ref))
		if branch != nil {
			res = append(res, branch)
		}
	}
	return res
}

func getKinAdditionalProperties(source openapi3.AdditionalProperties) *openapi3.Schema {
	schemaRef := source.Schema
	if schemaRef == nil || schemaRef.Value == nil {
		has := RemovePointer(source.Has)
		if !has {
			return nil
		}
		// case when additionalProperties is true
		return &openapi3.Schema{
			Type: TypeString,
		}
	}

	return schemaRef.Value
}
