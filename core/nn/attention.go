package nn

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// MultiHeadAttention is scaled dot-product attention split over Heads.
type MultiHeadAttention struct {
	Query       *Linear
	Key         *Linear
	Value       *Linear
	Heads       int
	DropoutProb float64
}

// NewMultiHeadAttention initialises the query, key and value projections.
func NewMultiHeadAttention(in *Init, hidden, heads int, dropout float64) *MultiHeadAttention {
	return &MultiHeadAttention{
		Query:       NewLinear(in, hidden, hidden),
		Key:         NewLinear(in, hidden, hidden),
		Value:       NewLinear(in, hidden, hidden),
		Heads:       heads,
		DropoutProb: dropout,
	}
}

// Forward attends from the rows of x to the rows of context. The optional
// bias (rows of x by rows of context) is added to the scaled scores of
// every head.
func (a *MultiHeadAttention) Forward(x, context, bias *mat.Dense, d *Dropout) *mat.Dense {
	q := a.Query.Forward(x)
	k := a.Key.Forward(context)
	v := a.Value.Forward(context)

	lq, hidden := q.Dims()
	lk, _ := k.Dims()
	headDim := hidden / a.Heads
	scale := 1 / math.Sqrt(float64(headDim))

	out := mat.NewDense(lq, hidden, nil)
	scores := mat.NewDense(lq, lk, nil)
	for h := 0; h < a.Heads; h++ {
		lo, hi := h*headDim, (h+1)*headDim
		qh := q.Slice(0, lq, lo, hi)
		kh := k.Slice(0, lk, lo, hi)
		vh := v.Slice(0, lk, lo, hi)

		scores.Mul(qh, kh.T())
		scores.Scale(scale, scores)
		if bias != nil {
			scores.Add(scores, bias)
		}
		Softmax(scores)
		d.Apply(scores, a.DropoutProb)

		out.Slice(0, lq, lo, hi).(*mat.Dense).Mul(scores, vh)
	}
	return out
}

// Softmax normalises every row of m in place.
func Softmax(m *mat.Dense) {
	rows, _ := m.Dims()
	for i := 0; i < rows; i++ {
		row := m.RawRowView(i)
		top := floats.Max(row)
		for j, v := range row {
			row[j] = math.Exp(v - top)
		}
		floats.Scale(1/floats.Sum(row), row)
	}
}

// AttentionBlock is attention followed by an output projection, dropout, a
// residual connection and a layer norm.
type AttentionBlock struct {
	Attention   *MultiHeadAttention
	Output      *Linear
	Norm        *LayerNorm
	DropoutProb float64
}

// NewAttentionBlock initialises a block from a layer configuration.
func NewAttentionBlock(in *Init, config LayerConfig) *AttentionBlock {
	return &AttentionBlock{
		Attention:   NewMultiHeadAttention(in, config.Hidden, config.Heads, config.AttentionDropout),
		Output:      NewLinear(in, config.Hidden, config.Hidden),
		Norm:        NewLayerNorm(config.Hidden),
		DropoutProb: config.HiddenDropout,
	}
}

// Forward lets x attend to context. Passing x as context is self attention.
func (b *AttentionBlock) Forward(x, context, bias *mat.Dense, d *Dropout) *mat.Dense {
	h := b.Output.Forward(b.Attention.Forward(x, context, bias, d))
	d.Apply(h, b.DropoutProb)
	h.Add(h, x)
	return b.Norm.Forward(h)
}

// FeedForward is the position-wise two layer network with a residual
// connection and a layer norm.
type FeedForward struct {
	Intermediate *Linear
	Output       *Linear
	Norm         *LayerNorm
	Activation   Activation
	DropoutProb  float64
}

// NewFeedForward initialises a feed-forward block from a layer configuration.
func NewFeedForward(in *Init, config LayerConfig) *FeedForward {
	return &FeedForward{
		Intermediate: NewLinear(in, config.Hidden, config.Intermediate),
		Output:       NewLinear(in, config.Intermediate, config.Hidden),
		Norm:         NewLayerNorm(config.Hidden),
		Activation:   config.Activation,
		DropoutProb:  config.HiddenDropout,
	}
}

// Forward applies the block to every row of x.
func (f *FeedForward) Forward(x *mat.Dense, d *Dropout) *mat.Dense {
	h := f.Intermediate.Forward(x)
	Apply(h, f.Activation)
	out := f.Output.Forward(h)
	d.Apply(out, f.DropoutProb)
	out.Add(out, x)
	return f.Norm.Forward(out)
}
