package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Activation is an element-wise nonlinearity.
type Activation func(float64) float64

// ReLU is max(0, x).
func ReLU(x float64) float64 {
	if x < 0 {
		return 0
	}
	return x
}

// GELU is the exact (erf based) Gaussian error linear unit.
func GELU(x float64) float64 {
	return 0.5 * x * (1 + math.Erf(x/math.Sqrt2))
}

// Apply runs f over every element of m in place.
func Apply(m *mat.Dense, f Activation) {
	if m.IsEmpty() {
		return
	}
	rows, _ := m.Dims()
	for i := 0; i < rows; i++ {
		row := m.RawRowView(i)
		for j, v := range row {
			row[j] = f(v)
		}
	}
}
