package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFirstLast(t *testing.T) {
	v, ok := First([]int{})
	assert.False(t, ok)
	assert.Zero(t, v)

	v, ok = First([]int{3, 4})
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	v, ok = Last([]int{3, 4})
	assert.True(t, ok)
	assert.Equal(t, 4, v)

	assert.True(t, IsEmpty([]string(nil)))
	assert.True(t, IsSingle([]string{"x"}))
}

func TestQuoteList(t *testing.T) {
	assert.Equal(t, "", QuoteList(nil))
	assert.Equal(t, `"a", "b"`, QuoteList([]string{"a", "b"}))
}
