package slices

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMap(t *testing.T) {
	actual := Map([]int{1, 2, 3}, func(e int) float64 { return float64(2 * e) })
	assert.Equal(t, []float64{2, 4, 6}, actual)
}

func TestZerosAndOnes(t *testing.T) {
	assert.Equal(t, []float64{0, 0, 0}, Zeros[float64](3))
	assert.Equal(t, []float64{1, 1}, Ones[float64](2))
	assert.Empty(t, Zeros[int](0))
}

func TestFill(t *testing.T) {
	assert.Equal(t, []string{"x", "x"}, Fill("x", 2))
}

func TestShuffleIsDeterministicForFixedSeed(t *testing.T) {
	first := []int{0, 1, 2, 3, 4, 5, 6, 7}
	second := []int{0, 1, 2, 3, 4, 5, 6, 7}
	Shuffle(rand.New(rand.NewSource(17)), first)
	Shuffle(rand.New(rand.NewSource(17)), second)
	assert.Equal(t, first, second)
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, first)
}

func TestSumAndMean(t *testing.T) {
	assert.Equal(t, 6, Sum([]int{1, 2, 3}))
	assert.Equal(t, 2.0, Mean([]float64{1, 2, 3}))
	assert.Equal(t, 0.0, Mean([]float64{}))
}
