package conformance

import (
	"encoding/base64"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/leanovate/gopter"
)

// FormatStrategy produces a generator for values of a named format,
// consuming the schema being generated. Registered per format name.
type FormatStrategy func(schema *Schema) gopter.Gen

// Format is the validation side of a named format: Unmarshal coerces a raw
// value into its typed form, IsValid is the validity predicate. The two are
// applied during response validation in that order.
type Format struct {
	Unmarshal func(value any) (any, error)
	IsValid   func(value any) bool
}

// FormatRegistry holds the two independent caller supplied mappings:
// generation strategies and validation formats. Both default empty and are
// immutable for the lifetime of a checker. A format present on one side but
// not the other is legal.
type FormatRegistry struct {
	strategies map[string]FormatStrategy
	formats    map[string]Format
}

// NewFormatRegistry builds a registry over the built-in format table,
// overridden or extended by the caller supplied mappings.
func NewFormatRegistry(strategies map[string]FormatStrategy, formats map[string]Format) *FormatRegistry {
	merged := make(map[string]Format, len(builtinFormats)+len(formats))
	for name, f := range builtinFormats {
		merged[name] = f
	}
	for name, f := range formats {
		merged[name] = f
	}

	strategyCopy := make(map[string]FormatStrategy, len(strategies))
	for name, s := range strategies {
		strategyCopy[name] = s
	}

	return &FormatRegistry{
		strategies: strategyCopy,
		formats:    merged,
	}
}

// Strategy returns the caller registered generation strategy for a format.
func (r *FormatRegistry) Strategy(name string) (FormatStrategy, bool) {
	s, ok := r.strategies[name]
	return s, ok
}

// Format returns the validation pair for a format.
func (r *FormatRegistry) Format(name string) (Format, bool) {
	f, ok := r.formats[name]
	return f, ok
}

func stringFormat(isValid func(string) bool) Format {
	return Format{
		Unmarshal: func(value any) (any, error) {
			s, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("expected string, got %T", value)
			}
			return s, nil
		},
		IsValid: func(value any) bool {
			s, ok := value.(string)
			return ok && isValid(s)
		},
	}
}

var builtinFormats = map[string]Format{
	"date": stringFormat(func(s string) bool {
		_, err := time.Parse("2006-01-02", s)
		return err == nil
	}),
	"date-time": stringFormat(func(s string) bool {
		if _, err := time.Parse(time.RFC3339, s); err == nil {
			return true
		}
		_, err := time.Parse("2006-01-02T15:04:05", s)
		return err == nil
	}),
	"uuid": stringFormat(func(s string) bool {
		return ValidateStringWithPattern(s, `^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	}),
	"email": stringFormat(func(s string) bool {
		return ValidateStringWithPattern(s, `^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	}),
	"uri": stringFormat(func(s string) bool {
		u, err := url.Parse(s)
		return err == nil && u.Scheme != ""
	}),
	"url": stringFormat(func(s string) bool {
		u, err := url.Parse(s)
		return err == nil && u.Scheme != ""
	}),
	"hostname": stringFormat(func(s string) bool {
		return ValidateStringWithPattern(s, `^[a-zA-Z0-9]([a-zA-Z0-9\-]*[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9\-]*[a-zA-Z0-9])?)*$`)
	}),
	"ipv4": stringFormat(func(s string) bool {
		ip := net.ParseIP(s)
		return ip != nil && ip.To4() != nil
	}),
	"ipv6": stringFormat(func(s string) bool {
		ip := net.ParseIP(s)
		return ip != nil && ip.To4() == nil
	}),
	"byte": {
		Unmarshal: func(value any) (any, error) {
			s, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("expected base64 string, got %T", value)
			}
			return base64.StdEncoding.DecodeString(s)
		},
		IsValid: func(value any) bool {
			s, ok := value.(string)
			if !ok {
				return false
			}
			_, err := base64.StdEncoding.DecodeString(s)
			return err == nil
		},
	},
	"binary": {
		Unmarshal: func(value any) (any, error) {
			s, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("expected string, got %T", value)
			}
			return []byte(s), nil
		},
		IsValid: func(value any) bool {
			_, ok := value.(string)
			return ok
		},
	},
}
