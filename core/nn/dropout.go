package nn

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Dropout carries the randomness of a training pass. A nil *Dropout is an
// inference pass and leaves every input untouched.
type Dropout struct {
	rng *rand.Rand
}

// NewDropout enables dropout drawing from rng.
func NewDropout(rng *rand.Rand) *Dropout {
	return &Dropout{rng: rng}
}

// Active reports whether dropout is applied.
func (d *Dropout) Active() bool {
	return d != nil && d.rng != nil
}

// Apply zeroes each element with probability p and rescales the rest by
// 1/(1-p), in place.
func (d *Dropout) Apply(m *mat.Dense, p float64) {
	if !d.Active() || p <= 0 || m.IsEmpty() {
		return
	}
	scale := 1 / (1 - p)
	rows, _ := m.Dims()
	for i := 0; i < rows; i++ {
		row := m.RawRowView(i)
		for j := range row {
			if d.rng.Float64() < p {
				row[j] = 0
			} else {
				row[j] *= scale
			}
		}
	}
}
