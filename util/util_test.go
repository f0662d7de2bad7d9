package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClosestMatches(t *testing.T) {
	candidates := []string{"Person", "Persons", "Address", "Pet", "Person"}
	cases := map[string][]string{
		"Persoon": {"Person", "Persons"},
		"person":  {"Person", "Persons"},
		"Pat":     {"Pet"},
		"Zebra":   nil,
	}
	for name, want := range cases {
		t.Run(name, func(t *testing.T) {
			got := ClosestMatches(name, candidates)
			if want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, want, got)
		})
	}
}

func TestDidYouMean(t *testing.T) {
	assert.Equal(t, "", DidYouMean(nil))
	assert.Equal(t, " (did you mean 'a', 'b'?)", DidYouMean([]string{"a", "b"}))
}

func TestSortedUniq(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SortedUniq([]string{"c", "a", "b", "a", "c"}))
	assert.Empty(t, SortedUniq(nil))
}

func TestStack(t *testing.T) {
	var s Stack[int]
	_, ok := s.Pop()
	assert.False(t, ok)

	s.Push(1)
	s.Push(2)
	assert.Equal(t, 2, s.Len())
	top, ok := s.Pop()
	assert.True(t, ok)
	assert.Equal(t, 2, top)
	top, _ = s.Pop()
	assert.Equal(t, 1, top)
	assert.Equal(t, 0, s.Len())
}
