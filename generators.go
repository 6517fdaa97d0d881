package conformance

import (
	"encoding/base64"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
)

// ParameterValue pairs a parameter with one generated value so the checker
// can route it to its location.
type ParameterValue struct {
	Parameter *Parameter
	Value     any
}

// Strategies builds value generators for schemas. The produced gopter.Gen
// values are lazy, restartable and feed directly into the property engine's
// example and shrink loop.
type Strategies struct {
	registry *FormatRegistry
}

// NewStrategies creates a Strategies instance over the given registry.
// A nil registry means built-in formats only.
func NewStrategies(registry *FormatRegistry) *Strategies {
	if registry == nil {
		registry = NewFormatRegistry(nil, nil)
	}
	return &Strategies{registry: registry}
}

const (
	// bounds applied when a numeric schema leaves a side open
	defaultNumberBound = float64(1e9)

	// span applied when string or array schemas leave the upper bound open
	defaultLengthSpan = 24
	defaultItemsSpan  = 5
)

// numeric formats that carry no extra generation rule
var knownNumericFormats = map[string]bool{
	"int32":  true,
	"int64":  true,
	"float":  true,
	"double": true,
}

var anyType = reflect.TypeOf((*any)(nil)).Elem()

// SchemaValues returns a generator producing admissible values for the
// schema. A nil schema produces nil values. Returns a GenerationError when
// the schema references an unregistered format or declares constraints no
// value can satisfy.
func (s *Strategies) SchemaValues(schema *Schema) (gopter.Gen, error) {
	if schema == nil {
		return constNilGen(), nil
	}

	// enum members are drawn directly whatever the base type, a registered
	// format strategy still wins
	if len(schema.Enum) > 0 {
		if schema.Format != "" {
			if strategy, ok := s.registry.Strategy(schema.Format); ok {
				return strategy(schema), nil
			}
		}
		return gen.OneConstOf(schema.Enum...), nil
	}

	switch schema.Type {
	case TypeAny:
		return gen.Const(map[string]any{}), nil
	case TypeInteger:
		return s.integers(schema)
	case TypeNumber:
		return s.numbers(schema)
	case TypeString:
		return s.strings(schema)
	case TypeBoolean:
		return gen.Bool(), nil
	case TypeArray:
		return s.arrays(schema)
	case TypeObject, "":
		return s.objects(schema)
	default:
		return nil, fmt.Errorf("%w: unknown schema type %q", ErrUnsatisfiableSchema, schema.Type)
	}
}

// ParameterValues returns a generator producing one value per parameter,
// tagged with the parameter for location routing.
func (s *Strategies) ParameterValues(params Parameters) (gopter.Gen, error) {
	if len(params) == 0 {
		return gen.Const([]ParameterValue{}), nil
	}

	gens := make([]gopter.Gen, 0, len(params))
	for _, param := range params {
		g, err := s.SchemaValues(param.Schema)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", param.Name, err)
		}
		gens = append(gens, g)
	}

	return gopter.CombineGens(gens...).Map(func(vals []any) []ParameterValue {
		res := make([]ParameterValue, len(vals))
		for i, v := range vals {
			res[i] = ParameterValue{Parameter: params[i], Value: v}
		}
		return res
	}), nil
}

func (s *Strategies) integers(schema *Schema) (gopter.Gen, error) {
	if schema.Format != "" {
		if strategy, ok := s.registry.Strategy(schema.Format); ok {
			return strategy(schema), nil
		}
		if !knownNumericFormats[schema.Format] {
			return nil, fmt.Errorf("%w %q", ErrNoFormatStrategy, schema.Format)
		}
	}

	min, max := int64(-defaultNumberBound), int64(defaultNumberBound)
	if schema.Minimum != nil {
		min = int64(math.Ceil(*schema.Minimum))
	}
	if schema.Maximum != nil {
		max = int64(math.Floor(*schema.Maximum))
	}
	// an exclusive bound sitting on the lattice removes exactly one integer
	if schema.ExclusiveMinimum && schema.Minimum != nil && float64(min) == *schema.Minimum {
		min++
	}
	if schema.ExclusiveMaximum && schema.Maximum != nil && float64(max) == *schema.Maximum {
		max--
	}
	if min > max {
		return nil, fmt.Errorf("%w: empty integer range [%d, %d]", ErrUnsatisfiableSchema, min, max)
	}

	var g gopter.Gen
	if schema.MultipleOf > 0 {
		step, err := integerStep(schema.MultipleOf)
		if err != nil {
			return nil, err
		}
		kmin, kmax := ceilDiv(min, step), floorDiv(max, step)
		if kmin > kmax {
			return nil, fmt.Errorf("%w: no multiple of %v in [%d, %d]", ErrUnsatisfiableSchema, schema.MultipleOf, min, max)
		}
		factor := step
		g = gen.Int64Range(kmin, kmax).Map(func(k int64) int64 { return k * factor })
	} else {
		g = gen.Int64Range(min, max)
	}

	return g.SuchThat(func(v int64) bool {
		return insideExclusiveBounds(schema, float64(v))
	}), nil
}

func (s *Strategies) numbers(schema *Schema) (gopter.Gen, error) {
	if schema.Format != "" {
		if strategy, ok := s.registry.Strategy(schema.Format); ok {
			return strategy(schema), nil
		}
		if !knownNumericFormats[schema.Format] {
			return nil, fmt.Errorf("%w %q", ErrNoFormatStrategy, schema.Format)
		}
	}

	min, max := -defaultNumberBound, defaultNumberBound
	if schema.Minimum != nil {
		min = *schema.Minimum
	}
	if schema.Maximum != nil {
		max = *schema.Maximum
	}
	if min > max || (min == max && (schema.ExclusiveMinimum || schema.ExclusiveMaximum)) {
		return nil, fmt.Errorf("%w: empty number range [%v, %v]", ErrUnsatisfiableSchema, min, max)
	}

	var g gopter.Gen
	if m := schema.MultipleOf; m > 0 {
		kmin, kmax := int64(math.Ceil(min/m)), int64(math.Floor(max/m))
		if kmin > kmax {
			return nil, fmt.Errorf("%w: no multiple of %v in [%v, %v]", ErrUnsatisfiableSchema, m, min, max)
		}
		factor := m
		g = gen.Int64Range(kmin, kmax).Map(func(k int64) float64 { return float64(k) * factor })
	} else {
		g = gen.Float64Range(min, max)
	}

	return g.SuchThat(func(v float64) bool {
		return insideExclusiveBounds(schema, v)
	}), nil
}

// insideExclusiveBounds excludes exclusive extremes by value equality.
// Shifting the bound instead would be numerically invalid for floats.
func insideExclusiveBounds(schema *Schema, v float64) bool {
	if schema.ExclusiveMinimum && schema.Minimum != nil && v == *schema.Minimum {
		return false
	}
	if schema.ExclusiveMaximum && schema.Maximum != nil && v == *schema.Maximum {
		return false
	}
	return true
}

func (s *Strategies) strings(schema *Schema) (gopter.Gen, error) {
	if schema.Format != "" {
		if strategy, ok := s.registry.Strategy(schema.Format); ok {
			return strategy(schema), nil
		}
	}

	if schema.MaxLength > 0 && schema.MaxLength < schema.MinLength {
		return nil, fmt.Errorf("%w: maxLength %d below minLength %d", ErrUnsatisfiableSchema, schema.MaxLength, schema.MinLength)
	}

	switch schema.Format {
	case "":
		// plain string, resolved by pattern or length below
	case "date":
		return fakerGen(func(f *gofakeit.Faker) any {
			return f.Date().Format("2006-01-02")
		}), nil
	case "date-time":
		return fakerGen(func(f *gofakeit.Faker) any {
			return f.Date().Format(time.RFC3339)
		}), nil
	case "byte":
		return s.byteStrings(schema, true), nil
	case "binary":
		return s.byteStrings(schema, false), nil
	case "uri", "url":
		return fakerGen(func(f *gofakeit.Faker) any { return f.URL() }), nil
	case "uuid":
		return fakerGen(func(f *gofakeit.Faker) any { return f.UUID() }), nil
	case "hostname":
		return fakerGen(func(f *gofakeit.Faker) any { return f.DomainName() }), nil
	case "email":
		return fakerGen(func(f *gofakeit.Faker) any { return f.Email() }), nil
	case "ipv4":
		return fakerGen(func(f *gofakeit.Faker) any { return f.IPv4Address() }), nil
	case "ipv6":
		return fakerGen(func(f *gofakeit.Faker) any { return f.IPv6Address() }), nil
	case "password":
		return fakerGen(func(f *gofakeit.Faker) any {
			return f.Password(true, true, true, false, false, 12)
		}), nil
	default:
		return nil, fmt.Errorf("%w %q", ErrNoFormatStrategy, schema.Format)
	}

	if schema.Pattern != "" {
		return gen.RegexMatch(schema.Pattern), nil
	}

	return s.text(schema), nil
}

// text generates arbitrary letters respecting min/max length.
func (s *Strategies) text(schema *Schema) gopter.Gen {
	minLen, maxLen := lengthBounds(schema)
	return func(p *gopter.GenParameters) *gopter.GenResult {
		n := minLen
		if maxLen > minLen {
			n += p.Rng.Intn(maxLen - minLen + 1)
		}
		faker := gofakeit.New(p.Rng.Int63())
		return gopter.NewGenResult(faker.LetterN(uint(n)), gopter.NoShrinker)
	}
}

// byteStrings generates length-bounded byte content; the bounds apply to
// the raw byte count before any encoding.
func (s *Strategies) byteStrings(schema *Schema, encode bool) gopter.Gen {
	minLen, maxLen := lengthBounds(schema)
	return func(p *gopter.GenParameters) *gopter.GenResult {
		n := minLen
		if maxLen > minLen {
			n += p.Rng.Intn(maxLen - minLen + 1)
		}
		buf := make([]byte, n)
		if encode {
			p.Rng.Read(buf)
			return gopter.NewGenResult(base64.StdEncoding.EncodeToString(buf), gopter.NoShrinker)
		}
		// binary content is kept printable so it survives JSON transport
		for i := range buf {
			buf[i] = byte(0x21 + p.Rng.Intn(94))
		}
		return gopter.NewGenResult(string(buf), gopter.NoShrinker)
	}
}

func lengthBounds(schema *Schema) (int, int) {
	minLen := int(schema.MinLength)
	maxLen := int(schema.MaxLength)
	if maxLen == 0 {
		maxLen = minLen + defaultLengthSpan
	}
	if maxLen < minLen {
		maxLen = minLen
	}
	return minLen, maxLen
}

func (s *Strategies) arrays(schema *Schema) (gopter.Gen, error) {
	items := schema.Items
	if items == nil {
		items = &Schema{Type: TypeString}
	}
	itemGen, err := s.SchemaValues(items)
	if err != nil {
		return nil, err
	}

	minItems := int(schema.MinItems)
	maxItems := int(schema.MaxItems)
	if maxItems == 0 {
		maxItems = minItems + defaultItemsSpan
	}
	if maxItems < minItems {
		return nil, fmt.Errorf("%w: maxItems %d below minItems %d", ErrUnsatisfiableSchema, maxItems, minItems)
	}

	g := gen.IntRange(minItems, maxItems).FlatMap(func(v any) gopter.Gen {
		return gen.SliceOfN(v.(int), itemGen, anyType)
	}, reflect.TypeOf([]any{}))

	if schema.UniqueItems {
		// dedupe after generation, the produced array may come out shorter
		// than the drawn length
		g = g.Map(func(items []any) []any {
			return DeduplicateValues(items)
		})
	}

	return g, nil
}

func (s *Strategies) objects(schema *Schema) (gopter.Gen, error) {
	if schema.Format != "" {
		if strategy, ok := s.registry.Strategy(schema.Format); ok {
			return strategy(schema), nil
		}
	}

	if len(schema.OneOf) > 0 {
		gens := make([]gopter.Gen, 0, len(schema.OneOf))
		for _, branch := range schema.OneOf {
			g, err := s.SchemaValues(branch)
			if err != nil {
				return nil, err
			}
			gens = append(gens, g)
		}
		return gen.OneGenOf(gens...), nil
	}

	branches := schema.branches()
	branchGens := make([]gopter.Gen, 0, len(branches))
	for _, branch := range branches {
		g, err := s.objectBranch(branch)
		if err != nil {
			return nil, err
		}
		branchGens = append(branchGens, g)
	}
	if len(branchGens) == 1 {
		return branchGens[0], nil
	}

	// later branches override earlier keys, the merge is positional
	return gopter.CombineGens(branchGens...).Map(func(vals []any) map[string]any {
		res := map[string]any{}
		for _, v := range vals {
			m, ok := v.(map[string]any)
			if !ok {
				continue
			}
			for key, value := range m {
				res[key] = value
			}
		}
		return res
	}), nil
}

// objectBranch generates one allOf branch: every required property plus a
// random subset of the optional ones. The subset shrinks toward empty since
// each inclusion flag shrinks toward false.
func (s *Strategies) objectBranch(schema *Schema) (gopter.Gen, error) {
	if len(schema.OneOf) > 0 || len(schema.AllOf) > 0 {
		return s.SchemaValues(schema)
	}

	if len(schema.Properties) == 0 {
		return gen.Const(map[string]any{}), nil
	}

	type propEntry struct {
		name     string
		optional bool
	}

	var entries []propEntry
	var gens []gopter.Gen

	for _, name := range schema.propertyNames() {
		propGen, err := s.SchemaValues(schema.Properties[name])
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", name, err)
		}
		optional := !SliceContains(schema.Required, name)
		if optional {
			gens = append(gens, gen.Bool())
		}
		gens = append(gens, propGen)
		entries = append(entries, propEntry{name: name, optional: optional})
	}

	return gopter.CombineGens(gens...).Map(func(vals []any) map[string]any {
		res := map[string]any{}
		i := 0
		for _, entry := range entries {
			include := true
			if entry.optional {
				include = vals[i].(bool)
				i++
			}
			value := vals[i]
			i++
			if include {
				res[entry.name] = value
			}
		}
		return res
	}), nil
}

// fakerGen wraps a faker call as a gopter generator, seeding the faker from
// the engine RNG so runs stay reproducible.
func fakerGen(f func(*gofakeit.Faker) any) gopter.Gen {
	return func(p *gopter.GenParameters) *gopter.GenResult {
		faker := gofakeit.New(p.Rng.Int63())
		return gopter.NewGenResult(f(faker), gopter.NoShrinker)
	}
}

// constNilGen produces the absent value for an absent schema.
func constNilGen() gopter.Gen {
	return func(*gopter.GenParameters) *gopter.GenResult {
		return &gopter.GenResult{
			Shrinker:   gopter.NoShrinker,
			Result:     nil,
			ResultType: anyType,
			Sieve:      func(any) bool { return true },
		}
	}
}

// integerStep returns the smallest positive integer that is a whole multiple
// of m. A fractional multipleOf such as 2.5 still admits integers (5, 10, ...),
// so integer generation walks that coarser lattice instead of truncating m.
func integerStep(m float64) (int64, error) {
	if m == math.Trunc(m) {
		return int64(m), nil
	}
	for j := int64(2); j <= 1000; j++ {
		candidate := m * float64(j)
		if math.Abs(candidate-math.Round(candidate)) < 1e-9 {
			return int64(math.Round(candidate)), nil
		}
	}
	return 0, fmt.Errorf("%w: no integer is a multiple of %v", ErrUnsatisfiableSchema, m)
}

func ceilDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a > 0) == (b > 0) {
		q++
	}
	return q
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a > 0) != (b > 0) {
		q--
	}
	return q
}
