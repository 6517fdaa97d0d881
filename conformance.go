package conformance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/prop"
)

// GeneratedRequest is one synthesized request, built fresh per trial and
// never persisted.
type GeneratedRequest struct {
	Method      string
	Path        string
	URL         string
	Query       string
	Body        []byte
	ContentType string
	Parameters  []ParameterValue
}

// GeneratedResponse is the captured response of one trial.
type GeneratedResponse struct {
	StatusCode  int
	ContentType string
	Content     []byte
	Headers     http.Header
}

// SendRequest is the caller-decides transport callback: it receives the
// operation and a synthesized request and returns exactly one response,
// typically by performing the request against a live implementation.
// Errors it returns pass through the checker unmodified.
type SendRequest func(op *Operation, req *GeneratedRequest) (*GeneratedResponse, error)

// SendExpected is the enumerate-expected transport callback: the checker
// invokes it once per declared (status, content type) pair and asks it to
// produce a response claiming to be that pair.
type SendExpected func(op *Operation, req *GeneratedRequest, statusCode int, contentType string, schema *Schema) (*GeneratedResponse, error)

// UnknownParameterLocationPolicy decides what happens to header and cookie
// parameters, which the request builder does not route.
type UnknownParameterLocationPolicy int

const (
	// UnknownParameterLocationError fails the trial on an unroutable parameter.
	UnknownParameterLocationError UnknownParameterLocationPolicy = iota
	// UnknownParameterLocationIgnore drops the parameter from the request.
	UnknownParameterLocationIgnore
)

// CheckerOptions configures a Checker. The options are read once by
// NewChecker and immutable afterwards.
type CheckerOptions struct {
	// SendRequest enables caller-decides mode. SendExpected enables
	// enumerate-expected mode and wins when both are set.
	SendRequest  SendRequest
	SendExpected SendExpected

	// FormatStrategies maps format names to value generation strategies.
	// Formats maps format names to validation pairs, overriding or adding
	// to the built-in table. The two mappings are independent.
	FormatStrategies map[string]FormatStrategy
	Formats          map[string]Format

	// Examples is the number of generated samples per operation, 25 when 0.
	Examples int

	// Seed makes runs reproducible; 0 seeds from the clock.
	Seed int64

	// DisableDefaultFallback stops the "default" response bucket from
	// matching status codes without an exact entry.
	DisableDefaultFallback bool

	AdditionalProperties     AdditionalPropertiesPolicy
	UnknownParameterLocation UnknownParameterLocationPolicy
}

const defaultExampleCount = 25

// Checker drives conformance trials for one specification. It holds no
// mutable state across trials; every trial builds its own request,
// response and unmarshal log.
type Checker struct {
	spec       *Specification
	opts       CheckerOptions
	strategies *Strategies
	validator  *validator
}

// NewChecker creates a checker for the given specification.
func NewChecker(spec *Specification, opts CheckerOptions) *Checker {
	if opts.Examples <= 0 {
		opts.Examples = defaultExampleCount
	}
	registry := NewFormatRegistry(opts.FormatStrategies, opts.Formats)
	return &Checker{
		spec:       spec,
		opts:       opts,
		strategies: NewStrategies(registry),
		validator: &validator{
			registry:             registry,
			additionalProperties: opts.AdditionalProperties,
		},
	}
}

// Specification returns the checked specification.
func (c *Checker) Specification() *Specification {
	return c.spec
}

// CheckSpecification checks every operation, stopping at the first failure.
func (c *Checker) CheckSpecification() error {
	for _, op := range c.spec.Operations() {
		if err := c.CheckOperation(op); err != nil {
			return err
		}
	}
	return nil
}

// CheckOperation runs the conformance trials of a single operation.
// Operations without parameters and request body run exactly one trial;
// everything else runs through the property engine's example loop and
// surfaces the error of the minimal failing sample.
func (c *Checker) CheckOperation(op *Operation) error {
	bodySchema := op.GetRequestBody("application/json")

	if len(op.Parameters) == 0 && bodySchema == nil {
		return c.runTrial(op, nil, nil)
	}

	paramsGen, err := c.strategies.ParameterValues(op.Parameters)
	if err != nil {
		return err
	}

	gens := []gopter.Gen{paramsGen}
	hasBody := bodySchema != nil
	if hasBody {
		bodyGen, err := c.strategies.SchemaValues(bodySchema)
		if err != nil {
			return err
		}
		gens = append(gens, bodyGen)
	}

	var trialErr error
	property := prop.ForAll(func(vals []any) (bool, error) {
		params := vals[0].([]ParameterValue)
		var body any
		if hasBody {
			body = vals[1]
		}
		if err := c.runTrial(op, params, body); err != nil {
			trialErr = err
			return false, err
		}
		return true, nil
	}, gopter.CombineGens(gens...))

	parameters := gopter.DefaultTestParameters()
	if c.opts.Seed != 0 {
		parameters = gopter.DefaultTestParametersWithSeed(c.opts.Seed)
	}
	parameters.MinSuccessfulTests = c.opts.Examples
	parameters.MaxDiscardRatio = 10

	result := property.Check(parameters)
	if !result.Passed() {
		if trialErr != nil {
			return trialErr
		}
		return fmt.Errorf("%s %s: conformance check did not pass: %v", op.Method, op.Path, result.Status)
	}
	return nil
}

// runTrial synthesizes one request, dispatches it per mode and validates
// every captured response.
func (c *Checker) runTrial(op *Operation, params []ParameterValue, body any) error {
	req, err := c.newRequest(op, params, body)
	if err != nil {
		return err
	}

	if err := c.validateRequest(op, req, params, body); err != nil {
		return err
	}

	if c.opts.SendExpected != nil {
		return c.checkExpectedResponses(op, req)
	}

	if c.opts.SendRequest == nil {
		return ErrNoTransport
	}

	resp, err := c.opts.SendRequest(op, req)
	if err != nil {
		// transport errors pass through unwrapped
		return err
	}
	return c.CheckResponse(op, req, resp)
}

// newRequest builds a request from the operation template and the generated
// parameter and body samples. Path values substitute into the template,
// query values become query string arguments.
func (c *Checker) newRequest(op *Operation, params []ParameterValue, body any) (*GeneratedRequest, error) {
	path := op.Path
	query := url.Values{}

	for _, pv := range params {
		param := pv.Parameter
		switch param.In {
		case ParameterInPath:
			path = strings.Replace(path, "{"+param.Name+"}", fmt.Sprintf("%v", pv.Value), -1)
		case ParameterInQuery:
			if slice, ok := pv.Value.([]any); ok {
				for _, item := range slice {
					query.Add(param.Name+"[]", fmt.Sprintf("%v", item))
				}
			} else {
				query.Add(param.Name, fmt.Sprintf("%v", pv.Value))
			}
		default:
			if c.opts.UnknownParameterLocation == UnknownParameterLocationError {
				return nil, fmt.Errorf("%w %q for parameter %q", ErrUnsupportedParameterLocation, param.In, param.Name)
			}
		}
	}

	req := &GeneratedRequest{
		Method:     op.Method,
		Path:       path,
		URL:        JoinURL(c.spec.BaseURL, path),
		Query:      encodeQuery(query),
		Parameters: params,
	}

	if body != nil {
		content, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		req.Body = content
		req.ContentType = "application/json"
	}

	return req, nil
}

// encodeQuery renders query values without percent-encoding the []
// suffix of repeated parameters.
func encodeQuery(queryValues url.Values) string {
	keys := make([]string, 0, len(queryValues))
	for key := range queryValues {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var params []string
	for _, key := range keys {
		for _, value := range queryValues[key] {
			params = append(params, fmt.Sprintf("%s=%s", key, url.QueryEscape(value)))
		}
	}
	return strings.Join(params, "&")
}

// validateRequest checks the generated samples against the contract before
// they are sent: parameters and body through the strict validator, the body
// additionally through the contract-model request filter.
func (c *Checker) validateRequest(op *Operation, req *GeneratedRequest, params []ParameterValue, body any) error {
	for _, pv := range params {
		if pv.Parameter.Schema == nil {
			continue
		}
		logRec := &unmarshalLog{}
		if err := c.validator.Validate(pv.Parameter.Schema, pv.Value, logRec); err != nil {
			return verboseError(op, 0, fmt.Errorf("request parameter %q: %w", pv.Parameter.Name, err), logRec)
		}
	}

	if body == nil {
		return nil
	}

	logRec := &unmarshalLog{}
	if err := c.validator.Validate(op.GetRequestBody(req.ContentType), body, logRec); err != nil {
		return verboseError(op, 0, fmt.Errorf("request body: %w", err), logRec)
	}

	return c.validateRequestBodyFilter(op, req)
}

// validateRequestBodyFilter runs the generated body through the
// contract-model library's own request validation.
func (c *Checker) validateRequestBodyFilter(op *Operation, req *GeneratedRequest) error {
	if op.kin == nil || op.kin.RequestBody == nil || op.kin.RequestBody.Value == nil || len(req.Body) == 0 {
		return nil
	}

	httpReq, err := http.NewRequest(req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", req.ContentType)

	input := &openapi3filter.RequestValidationInput{Request: httpReq}
	return openapi3filter.ValidateRequestBody(context.Background(), input, op.kin.RequestBody.Value)
}

// checkExpectedResponses iterates every declared response entry. Statuses
// without content never reach the transport: the checker synthesizes an
// empty response for them.
func (c *Checker) checkExpectedResponses(op *Operation, req *GeneratedRequest) error {
	for _, entry := range op.ResponseEntries() {
		def := entry.Definition

		if !def.HasContent() {
			resp := &GeneratedResponse{StatusCode: entry.StatusCode}
			if err := c.checkAgainstDefinition(op, def, resp); err != nil {
				return err
			}
			continue
		}

		for _, contentType := range sortedContentTypes(def.Content) {
			resp, err := c.opts.SendExpected(op, req, entry.StatusCode, contentType, def.Content[contentType])
			if err != nil {
				return err
			}
			// validate against the entry that produced the expectation:
			// the default bucket reports status 200, resolving that number
			// again would shadow it with an explicit "200" sibling
			if err := c.checkAgainstDefinition(op, def, resp); err != nil {
				return err
			}
		}
	}
	return nil
}

// CheckResponse validates one captured response against the schema declared
// for its actual status code and content type. The "default" bucket matches
// only when no exact status entry exists.
func (c *Checker) CheckResponse(op *Operation, req *GeneratedRequest, resp *GeneratedResponse) error {
	if resp == nil {
		return &ConformanceError{Operation: op, Err: fmt.Errorf("transport returned no response")}
	}

	def := op.GetResponse(resp.StatusCode, !c.opts.DisableDefaultFallback)
	if def == nil {
		return &ConformanceError{
			Operation:  op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("status %d is not declared", resp.StatusCode),
		}
	}

	return c.checkAgainstDefinition(op, def, resp)
}

// checkAgainstDefinition validates a response body against one specific
// declared entry, already resolved by the caller.
func (c *Checker) checkAgainstDefinition(op *Operation, def *ResponseDefinition, resp *GeneratedResponse) error {
	if resp == nil {
		return &ConformanceError{Operation: op, Err: fmt.Errorf("transport returned no response")}
	}

	if !def.HasContent() {
		if len(resp.Content) > 0 {
			return &ConformanceError{
				Operation:  op,
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("expected empty body for status %d, got %d bytes", resp.StatusCode, len(resp.Content)),
			}
		}
		return nil
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}

	schema, ok := def.Content[contentType]
	if !ok {
		return &ConformanceError{
			Operation:  op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("content type %q is not declared for status %d", contentType, resp.StatusCode),
		}
	}

	if contentType != "application/json" {
		// only JSON bodies are structurally checked
		return nil
	}

	var decoded any
	if err := json.Unmarshal(resp.Content, &decoded); err != nil {
		return &ConformanceError{
			Operation:  op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("invalid JSON body: %w", err),
		}
	}

	logRec := &unmarshalLog{}
	if err := c.validator.Validate(schema, decoded, logRec); err != nil {
		return verboseError(op, resp.StatusCode, err, logRec)
	}
	return nil
}

func sortedContentTypes(content map[string]*Schema) []string {
	res := make([]string, 0, len(content))
	for contentType := range content {
		res = append(res, contentType)
	}
	sort.Strings(res)
	return res
}
