package slices

import (
	"math/rand"

	"golang.org/x/exp/constraints"
)

// Map returns a new slice with f applied to each element of s.
func Map[S ~[]E, E any, V any](s S, f func(E) V) []V {
	rv := make([]V, len(s))
	for i, e := range s {
		rv[i] = f(e)
	}
	return rv
}

// Zeros returns a slice of length n with all elements equal to zero.
func Zeros[E constraints.Integer | constraints.Float](n int) []E {
	return make([]E, n)
}

// Ones returns a slice of length n with all elements equal to one.
func Ones[E constraints.Integer | constraints.Float](n int) []E {
	rv := make([]E, n)
	for i := range rv {
		rv[i] = 1
	}
	return rv
}

// Fill returns a slice of length n with all elements equal to v.
func Fill[E any](v E, n int) []E {
	rv := make([]E, n)
	for i := range rv {
		rv[i] = v
	}
	return rv
}

// Shuffle shuffles s in place using the provided random source.
// Randomness is threaded explicitly to keep episodes reproducible.
func Shuffle[S ~[]E, E any](r *rand.Rand, s S) {
	r.Shuffle(len(s), func(i, j int) {
		s[i], s[j] = s[j], s[i]
	})
}

// Sum returns the sum of the elements of s.
func Sum[S ~[]E, E constraints.Integer | constraints.Float](s S) E {
	var rv E
	for _, e := range s {
		rv += e
	}
	return rv
}

// Mean returns the arithmetic mean of the elements of s, or zero if s is empty.
func Mean[S ~[]E, E constraints.Float](s S) E {
	if len(s) == 0 {
		return 0
	}
	return Sum(s) / E(len(s))
}
