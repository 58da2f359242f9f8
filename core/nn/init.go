package nn

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// InitStd is the standard deviation of freshly initialised weights.
const InitStd = 0.02

// Init draws initial parameters from a seeded source so that two models
// built with the same seed are identical.
type Init struct {
	rng *rand.Rand
}

// NewInit creates a parameter initialiser for the given seed.
func NewInit(seed uint64) *Init {
	return &Init{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Normal returns a rows x cols matrix drawn from N(0, std²).
func (in *Init) Normal(rows, cols int, std float64) *mat.Dense {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = in.rng.NormFloat64() * std
	}
	return mat.NewDense(rows, cols, data)
}

// Constant returns a vector filled with v.
func Constant(n int, v float64) []float64 {
	out := make([]float64, n)
	if v != 0 {
		for i := range out {
			out[i] = v
		}
	}
	return out
}
