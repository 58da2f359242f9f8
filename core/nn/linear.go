package nn

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// LayerNormEps is the epsilon used by every layer norm of the model.
const LayerNormEps = 1e-12

// Linear is an affine map y = xW + b with W of shape in x out.
type Linear struct {
	Weight *mat.Dense
	Bias   []float64
}

// NewLinear initialises a linear layer with normal weights and zero bias.
func NewLinear(in *Init, inDim, outDim int) *Linear {
	return &Linear{
		Weight: in.Normal(inDim, outDim, InitStd),
		Bias:   Constant(outDim, 0),
	}
}

// InDim is the input width.
func (l *Linear) InDim() int {
	r, _ := l.Weight.Dims()
	return r
}

// OutDim is the output width.
func (l *Linear) OutDim() int {
	_, c := l.Weight.Dims()
	return c
}

// Forward applies the layer to every row of x. An empty x gives an empty
// result.
func (l *Linear) Forward(x mat.Matrix) *mat.Dense {
	rows, _ := x.Dims()
	if rows == 0 {
		return &mat.Dense{}
	}
	out := mat.NewDense(rows, l.OutDim(), nil)
	out.Mul(x, l.Weight)
	for i := 0; i < rows; i++ {
		floats.Add(out.RawRowView(i), l.Bias)
	}
	return out
}

// LayerNorm normalises each row to zero mean and unit variance, then scales
// and shifts it.
type LayerNorm struct {
	Gamma []float64
	Beta  []float64
	Eps   float64
}

// NewLayerNorm returns an identity-initialised layer norm.
func NewLayerNorm(dim int) *LayerNorm {
	return &LayerNorm{
		Gamma: Constant(dim, 1),
		Beta:  Constant(dim, 0),
		Eps:   LayerNormEps,
	}
}

// Forward returns a normalised copy of x.
func (n *LayerNorm) Forward(x mat.Matrix) *mat.Dense {
	if rows, _ := x.Dims(); rows == 0 {
		return &mat.Dense{}
	}
	out := mat.DenseCopyOf(x)
	rows, _ := out.Dims()
	for i := 0; i < rows; i++ {
		row := out.RawRowView(i)
		mean, variance := stat.PopMeanVariance(row, nil)
		inv := 1 / math.Sqrt(variance+n.Eps)
		for j := range row {
			row[j] = (row[j]-mean)*inv*n.Gamma[j] + n.Beta[j]
		}
	}
	return out
}

// Embedding is a lookup table with one row per id.
type Embedding struct {
	Table *mat.Dense
}

// NewEmbedding initialises a size x dim table.
func NewEmbedding(in *Init, size, dim int) *Embedding {
	return &Embedding{Table: in.Normal(size, dim, InitStd)}
}

// Size is the number of rows.
func (e *Embedding) Size() int {
	r, _ := e.Table.Dims()
	return r
}

// Lookup gathers the rows of ids. Ids must be in range.
func (e *Embedding) Lookup(ids []int) *mat.Dense {
	return Gather(e.Table, ids)
}

// Gather copies the rows of table selected by ids into a new matrix.
func Gather(table *mat.Dense, ids []int) *mat.Dense {
	if len(ids) == 0 {
		return &mat.Dense{}
	}
	_, dim := table.Dims()
	out := mat.NewDense(len(ids), dim, nil)
	for i, id := range ids {
		copy(out.RawRowView(i), table.RawRowView(id))
	}
	return out
}
