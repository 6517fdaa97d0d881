package conformance

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinFormats(t *testing.T) {
	registry := NewFormatRegistry(nil, nil)

	cases := []struct {
		format  string
		valid   []string
		invalid []string
	}{
		{"date", []string{"2024-02-29"}, []string{"2024-13-01", "not a date"}},
		{"date-time", []string{"2024-02-29T12:30:00Z", "2024-02-29T12:30:00"}, []string{"2024-02-29"}},
		{"uuid", []string{"123e4567-e89b-12d3-a456-426614174000"}, []string{"123e4567"}},
		{"email", []string{"jane@example.com"}, []string{"jane", "jane@", "@example.com"}},
		{"uri", []string{"https://example.com/x"}, []string{"example com"}},
		{"hostname", []string{"api.example.com", "localhost"}, []string{"-bad-", "a..b"}},
		{"ipv4", []string{"192.168.0.1"}, []string{"256.0.0.1", "::1"}},
		{"ipv6", []string{"::1", "2001:db8::1"}, []string{"192.168.0.1", "nope"}},
		{"byte", []string{"aGVsbG8="}, []string{"not base64!!"}},
	}

	for _, tc := range cases {
		t.Run(tc.format, func(t *testing.T) {
			format, ok := registry.Format(tc.format)
			require.True(t, ok)
			for _, s := range tc.valid {
				assert.True(t, format.IsValid(s), "%q should be a valid %s", s, tc.format)
			}
			for _, s := range tc.invalid {
				assert.False(t, format.IsValid(s), "%q should not be a valid %s", s, tc.format)
			}
		})
	}
}

func TestByteFormatUnmarshal(t *testing.T) {
	registry := NewFormatRegistry(nil, nil)
	format, ok := registry.Format("byte")
	require.True(t, ok)

	decoded, err := format.Unmarshal("aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), decoded)

	_, err = format.Unmarshal(42)
	assert.Error(t, err)
}

func TestFormatRegistryOverrides(t *testing.T) {
	t.Run("caller format replaces built-in", func(t *testing.T) {
		registry := NewFormatRegistry(nil, map[string]Format{
			"email": {
				Unmarshal: func(value any) (any, error) { return value, nil },
				IsValid:   func(value any) bool { return value == "only@this.one" },
			},
		})

		format, ok := registry.Format("email")
		require.True(t, ok)
		assert.True(t, format.IsValid("only@this.one"))
		assert.False(t, format.IsValid("jane@example.com"))
	})

	t.Run("strategies and formats are independent", func(t *testing.T) {
		registry := NewFormatRegistry(map[string]FormatStrategy{
			"semver": func(*Schema) gopter.Gen { return gen.Const("1.2.3") },
		}, nil)

		_, hasStrategy := registry.Strategy("semver")
		assert.True(t, hasStrategy)
		_, hasFormat := registry.Format("semver")
		assert.False(t, hasFormat)

		// built-ins only exist on the validation side
		_, hasStrategy = registry.Strategy("email")
		assert.False(t, hasStrategy)
	})
}
