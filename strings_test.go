package conformance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateStringWithPattern(t *testing.T) {
	assert.True(t, ValidateStringWithPattern("abc123", `^[a-z]+\d+$`))
	assert.False(t, ValidateStringWithPattern("123abc", `^[a-z]+\d+$`))
	// invalid patterns never match
	assert.False(t, ValidateStringWithPattern("anything", `[`))
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "https://x.com/pets", JoinURL("https://x.com", "/pets"))
	assert.Equal(t, "https://x.com/pets", JoinURL("https://x.com/", "pets"))
	assert.Equal(t, "https://x.com/pets", JoinURL("https://x.com/", "/pets"))
	assert.Equal(t, "https://x.com", JoinURL("https://x.com/", ""))
	assert.Equal(t, "/pets", JoinURL("", "/pets"))
}

func TestStatusCodeKey(t *testing.T) {
	assert.Equal(t, "200", StatusCodeKey(200))
	assert.Equal(t, "404", StatusCodeKey(404))
}

func TestTransformHTTPCode(t *testing.T) {
	type tc struct {
		name     string
		expected int
	}

	cases := []tc{
		{"200", 200},
		{"2xx", 200},
		{"2XX", 200},
		{"404", 404},
		{"5XX", 500},
		{"default", 200},
		{"*", 200},
		{"unknown", 0},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, TransformHTTPCode(c.name))
		})
	}
}
