package conformance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSliceContains(t *testing.T) {
	assert.True(t, SliceContains([]string{"a", "b"}, "a"))
	assert.False(t, SliceContains([]string{"a", "b"}, "c"))
	assert.False(t, SliceContains([]int{}, 1))
}

func TestSliceUnique(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3}, SliceUnique([]int{1, 2, 1, 3, 2}))
	assert.Nil(t, SliceUnique([]int(nil)))
}

func TestGetSliceMaxRepetitionNumber(t *testing.T) {
	assert.Equal(t, 0, GetSliceMaxRepetitionNumber([]string{}))
	assert.Equal(t, 0, GetSliceMaxRepetitionNumber([]string{"a", "b"}))
	assert.Equal(t, 2, GetSliceMaxRepetitionNumber([]string{"a", "a", "a", "b"}))
}

func TestAppendSliceFirstNonEmpty(t *testing.T) {
	assert.Equal(t, []string{"x", "b"}, AppendSliceFirstNonEmpty([]string{"x"}, "", "b", "c"))
	assert.Equal(t, []string{"x"}, AppendSliceFirstNonEmpty([]string{"x"}, "", ""))
}

func TestDeduplicateValues(t *testing.T) {
	t.Run("scalars", func(t *testing.T) {
		res := DeduplicateValues([]any{1, 2, 1, 3})
		assert.Equal(t, []any{1, 2, 3}, res)
	})

	t.Run("maps compare structurally", func(t *testing.T) {
		res := DeduplicateValues([]any{
			map[string]any{"a": 1},
			map[string]any{"a": 1},
			map[string]any{"a": 2},
		})
		assert.Len(t, res, 2)
	})

	t.Run("order is preserved", func(t *testing.T) {
		res := DeduplicateValues([]any{"b", "a", "b"})
		assert.Equal(t, []any{"b", "a"}, res)
	})
}

func TestHasDuplicates(t *testing.T) {
	assert.False(t, HasDuplicates([]any{1, 2, 3}))
	assert.True(t, HasDuplicates([]any{1, 2, 1}))
	assert.False(t, HasDuplicates([]any{}))
}
