package testutil

import (
	"math/rand/v2"
)

// Uniform returns n values drawn uniformly from [0, 1).
func Uniform(seed uint64, n int) []float64 {
	rng := rand.New(rand.NewPCG(seed, seed))
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = rng.Float64()
	}
	return xs
}

// Normal returns n values drawn from the standard normal distribution.
func Normal(seed uint64, n int) []float64 {
	rng := rand.New(rand.NewPCG(seed, seed))
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = rng.NormFloat64()
	}
	return xs
}

// Permutation returns a random permutation of 0..n-1 as floats, so the rank of each value is the value itself.
func Permutation(seed uint64, n int) []float64 {
	rng := rand.New(rand.NewPCG(seed, seed))
	xs := make([]float64, n)
	for i, v := range rng.Perm(n) {
		xs[i] = float64(v)
	}
	return xs
}
