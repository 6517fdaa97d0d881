package conformance

import (
	"net/http"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// Specification is the fully parsed and dereferenced contract.
// It is immutable after load and safe to share between checkers.
type Specification struct {
	// BaseURL is taken from the first server entry, empty when none declared.
	BaseURL string

	// Paths maps path template -> upper-case HTTP method -> operation.
	Paths map[string]map[string]*Operation
}

// Operation is one (path, method) entry of the contract.
type Operation struct {
	ID     string
	Method string
	Path   string

	Parameters Parameters

	// RequestBody schemas keyed by mime type, nil when no body is declared.
	RequestBody map[string]*Schema

	// Responses keyed by the literal status entry from the document,
	// e.g. "200", "404" or "default".
	Responses map[string]*ResponseDefinition

	// kin keeps the underlying parsed operation around for the
	// openapi3filter request validation pass.
	kin *openapi3.Operation
}

// Parameter describes a single operation parameter.
type Parameter struct {
	Name     string  `json:"name,omitempty" yaml:"name,omitempty"`
	In       string  `json:"in,omitempty" yaml:"in,omitempty"`
	Required bool    `json:"required,omitempty" yaml:"required,omitempty"`
	Schema   *Schema `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// Parameters is a slice of Parameter ordered by name.
type Parameters []*Parameter

// ResponseDefinition describes one declared response entry.
// An empty Content map means the status is explicitly empty-bodied.
type ResponseDefinition struct {
	Content map[string]*Schema
}

// HasContent reports whether any content schema is declared.
func (r *ResponseDefinition) HasContent() bool {
	return r != nil && len(r.Content) > 0
}

// Operations returns every operation of the specification in a stable
// path+method order.
func (s *Specification) Operations() []*Operation {
	var res []*Operation
	for _, methods := range s.Paths {
		for _, op := range methods {
			res = append(res, op)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Path != res[j].Path {
			return res[i].Path < res[j].Path
		}
		return res[i].Method < res[j].Method
	})
	return res
}

// FindOperation finds an operation by path template and method.
func (s *Specification) FindOperation(path, method string) *Operation {
	methods, ok := s.Paths[path]
	if !ok {
		return nil
	}
	return methods[strings.ToUpper(method)]
}

// GetRequestBody returns the request body schema for the given mime type.
func (op *Operation) GetRequestBody(contentType string) *Schema {
	if op.RequestBody == nil {
		return nil
	}
	return op.RequestBody[contentType]
}

// GetResponse returns the response definition declared for the given status
// code. When no exact entry exists and fallback is allowed, the "default"
// entry is used.
func (op *Operation) GetResponse(statusCode int, defaultFallback bool) *ResponseDefinition {
	if def, ok := op.Responses[StatusCodeKey(statusCode)]; ok {
		return def
	}
	if defaultFallback {
		return op.Responses["default"]
	}
	return nil
}

// ResponseEntries returns the declared (status key, definition) pairs in a
// stable order, "default" last.
func (op *Operation) ResponseEntries() []ResponseEntry {
	keys := make([]string, 0, len(op.Responses))
	for key := range op.Responses {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i] == "default" {
			return false
		}
		if keys[j] == "default" {
			return true
		}
		return keys[i] < keys[j]
	})

	res := make([]ResponseEntry, 0, len(keys))
	for _, key := range keys {
		res = append(res, ResponseEntry{
			StatusCode: TransformHTTPCode(key),
			Definition: op.Responses[key],
		})
	}
	return res
}

// ResponseEntry is one declared response with its numeric status code.
type ResponseEntry struct {
	StatusCode int
	Definition *ResponseDefinition
}

// DescribeOperation returns a human readable label for an operation,
// e.g. "GET https://api.example.com/pets/{id}".
func DescribeOperation(spec *Specification, op *Operation) string {
	return strings.ToUpper(op.Method) + " " + JoinURL(spec.BaseURL, op.Path)
}

// IsValidHTTPVerb checks if the given HTTP verb is valid.
func IsValidHTTPVerb(verb string) bool {
	validVerbs := map[string]bool{
		http.MethodGet:     true,
		http.MethodHead:    true,
		http.MethodPost:    true,
		http.MethodPut:     true,
		http.MethodPatch:   true,
		http.MethodDelete:  true,
		http.MethodConnect: true,
		http.MethodOptions: true,
		http.MethodTrace:   true,
	}

	return validVerbs[strings.ToUpper(verb)]
}
