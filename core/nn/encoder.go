package nn

import (
	"fmt"

	"github.com/siherrmann/carst/helper"
	"gonum.org/v1/gonum/mat"
)

// LayerConfig describes one transformer layer.
type LayerConfig struct {
	Hidden           int
	Heads            int
	Intermediate     int
	HiddenDropout    float64
	AttentionDropout float64
	Activation       Activation
}

// Validate checks the layer dimensions.
func (c LayerConfig) Validate() error {
	if c.Hidden <= 0 || c.Intermediate <= 0 || c.Heads <= 0 {
		return helper.NewError("validate layer config", fmt.Errorf("%w: hidden, intermediate and heads must be positive", helper.ErrConfiguration))
	}
	if c.Hidden%c.Heads != 0 {
		return helper.NewError("validate layer config", fmt.Errorf("%w: hidden size %d is not a multiple of %d heads", helper.ErrConfiguration, c.Hidden, c.Heads))
	}
	if c.Activation == nil {
		return helper.NewError("validate layer config", fmt.Errorf("%w: missing activation", helper.ErrConfiguration))
	}
	return nil
}

// EncoderLayer is a post-norm transformer layer: self attention followed by
// the feed-forward block.
type EncoderLayer struct {
	Attention   *AttentionBlock
	FeedForward *FeedForward
}

// NewEncoderLayer initialises one layer.
func NewEncoderLayer(in *Init, config LayerConfig) *EncoderLayer {
	return &EncoderLayer{
		Attention:   NewAttentionBlock(in, config),
		FeedForward: NewFeedForward(in, config),
	}
}

// Forward runs the layer on one sequence.
func (l *EncoderLayer) Forward(x, bias *mat.Dense, d *Dropout) *mat.Dense {
	return l.FeedForward.Forward(l.Attention.Forward(x, x, bias, d), d)
}

// Encoder is a stack of encoder layers over batches of equally long
// sequences.
type Encoder struct {
	Layers []*EncoderLayer
	Hidden int
}

// NewEncoder initialises a stack of depth layers.
func NewEncoder(in *Init, config LayerConfig, depth int) (*Encoder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	layers := make([]*EncoderLayer, depth)
	for i := range layers {
		layers[i] = NewEncoderLayer(in, config)
	}
	return &Encoder{Layers: layers, Hidden: config.Hidden}, nil
}

// Forward encodes every sequence of the batch. All sequences must have the
// same length and width Hidden, biases (if given) one square matrix per
// sequence.
func (e *Encoder) Forward(batch []*mat.Dense, biases []*mat.Dense, d *Dropout) ([]*mat.Dense, error) {
	seqLen, err := CheckBatch(batch, e.Hidden)
	if err != nil {
		return nil, helper.NewError("encoder forward", err)
	}
	if biases != nil {
		if len(biases) != len(batch) {
			return nil, helper.NewError("encoder forward", fmt.Errorf("%w: %d bias masks for %d sequences", helper.ErrShape, len(biases), len(batch)))
		}
		for i, bias := range biases {
			if r, c := bias.Dims(); r != seqLen || c != seqLen {
				return nil, helper.NewError("encoder forward", fmt.Errorf("%w: bias %d is %dx%d, want %dx%d", helper.ErrShape, i, r, c, seqLen, seqLen))
			}
		}
	}

	out := make([]*mat.Dense, len(batch))
	for i, x := range batch {
		var bias *mat.Dense
		if biases != nil {
			bias = biases[i]
		}
		h := mat.DenseCopyOf(x)
		for _, layer := range e.Layers {
			h = layer.Forward(h, bias, d)
		}
		out[i] = h
	}
	return out, nil
}

// CheckBatch verifies that batch is a well formed [batch, length, width]
// tensor and returns the sequence length.
func CheckBatch(batch []*mat.Dense, width int) (int, error) {
	if len(batch) == 0 {
		return 0, fmt.Errorf("%w: empty batch", helper.ErrShape)
	}

	seqLen := -1
	for i, x := range batch {
		if x == nil || x.IsEmpty() {
			return 0, fmt.Errorf("%w: sequence %d is empty", helper.ErrShape, i)
		}
		r, c := x.Dims()
		if c != width {
			return 0, fmt.Errorf("%w: sequence %d has width %d, want %d", helper.ErrShape, i, c, width)
		}
		if seqLen >= 0 && r != seqLen {
			return 0, fmt.Errorf("%w: sequence %d has length %d, want %d", helper.ErrShape, i, r, seqLen)
		}
		seqLen = r
	}
	return seqLen, nil
}

// FirstRows stacks row 0 of every sequence into a [batch, width] matrix.
func FirstRows(batch []*mat.Dense) *mat.Dense {
	if len(batch) == 0 {
		return &mat.Dense{}
	}
	_, width := batch[0].Dims()
	out := mat.NewDense(len(batch), width, nil)
	for i, x := range batch {
		copy(out.RawRowView(i), x.RawRowView(0))
	}
	return out
}
