package assessment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShuffleStability(t *testing.T) {
	in := []string{"A", "B", "C", "D"}

	first := Shuffle(in, 5)
	second := Shuffle(in, 5)

	// Known draw sequence for seed 5, and identical on repeat calls.
	assert.Equal(t, []string{"C", "B", "A", "D"}, first)
	assert.Equal(t, first, second)
}

func TestShuffleIsPure(t *testing.T) {
	in := []int{1, 2, 3, 4, 5, 6}

	out := Shuffle(in, 42)

	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, in, "input must not be mutated")
	assert.Equal(t, []int{4, 2, 3, 1, 5, 6}, out)
}

func TestShufflePermutation(t *testing.T) {
	in := []string{"w", "x", "y", "z", "q", "r", "s"}

	out := Shuffle(in, 987654)

	require.Len(t, out, len(in))
	assert.ElementsMatch(t, in, out)
}

func TestShuffleDivergesAcrossSeeds(t *testing.T) {
	in := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	a := Shuffle(in, 100)
	b := Shuffle(in, 101)

	assert.NotEqual(t, a, b)
}

func TestShuffleTrivialInputs(t *testing.T) {
	assert.Empty(t, Shuffle([]string{}, 3))
	assert.Equal(t, []string{"x"}, Shuffle([]string{"x"}, 7))
}

func TestSeed(t *testing.T) {
	cases := []struct {
		id   string
		want int64
	}{
		{"guest", 98708952},
		{"", 98708952}, // empty id falls back to "guest"
		{"12", 1569},
		{"7", 55},
		{"student-42", 1032470704},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, Seed(tc.id), "id=%q", tc.id)
	}
}

func TestSeedIsNonNegative(t *testing.T) {
	for _, id := range []string{"a", "zz-top", "4823", "ÿŷŸ", "long-identifier-with-many-characters"} {
		assert.GreaterOrEqual(t, Seed(id), int64(0), "id=%q", id)
	}
}
