package batch

import (
	"math/rand/v2"
)

// PathSampler caps the number of paths per triple by drawing a uniform
// subset without replacement.
type PathSampler struct {
	Cap int
	rng *rand.Rand
}

// NewPathSampler creates a sampler keeping at most limit paths. The sampler owns rng
// and is not safe for concurrent use.
func NewPathSampler(limit int, rng *rand.Rand) *PathSampler {
	return &PathSampler{Cap: limit, rng: rng}
}

// NewSeededPathSampler creates a sampler drawing from a PCG source.
func NewSeededPathSampler(limit int, seed uint64) *PathSampler {
	return NewPathSampler(limit, rand.New(rand.NewPCG(seed, seed+1)))
}

// Sample returns the indices of the paths to keep out of n. When n does not
// exceed the cap all indices are kept in order, otherwise Cap indices are
// drawn in random order.
func (s *PathSampler) Sample(n int) []int {
	if n <= s.Cap {
		keep := make([]int, n)
		for i := range keep {
			keep[i] = i
		}
		return keep
	}
	return s.rng.Perm(n)[:s.Cap]
}
