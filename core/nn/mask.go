package nn

import (
	"gonum.org/v1/gonum/mat"
)

// MaskBias turns a 0/1 validity mask into an additive attention bias,
// (m_i*m_j - 1) * scale. Pairs of valid positions get 0, everything else
// -scale.
func MaskBias(mask []int, scale float64) *mat.Dense {
	n := len(mask)
	bias := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		row := bias.RawRowView(i)
		for j := 0; j < n; j++ {
			row[j] = (float64(mask[i]*mask[j]) - 1) * scale
		}
	}
	return bias
}
