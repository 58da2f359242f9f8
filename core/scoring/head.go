package scoring

import (
	"fmt"
	"math"

	"github.com/siherrmann/carst/core/nn"
	"github.com/siherrmann/carst/helper"
	"gonum.org/v1/gonum/mat"
)

// ScoreHead turns the readout of the overall encoder into one score per
// triple.
type ScoreHead struct {
	Norm          *nn.LayerNorm
	DropoutProb   float64
	Transform     *nn.Linear
	TransformNorm *nn.LayerNorm
	Output        *nn.Linear
	// RelationBias is added per relation id, zero initialised.
	RelationBias []float64
}

// Score returns norm, dropout, linear, norm, GELU and a scalar projection of
// every readout row plus the bias of its relation.
func (h *ScoreHead) Score(readout *mat.Dense, relations []int, d *nn.Dropout) []float64 {
	x := h.Norm.Forward(readout)
	d.Apply(x, h.DropoutProb)
	x = h.TransformNorm.Forward(h.Transform.Forward(x))
	nn.Apply(x, nn.GELU)
	out := h.Output.Forward(x)

	scores := make([]float64, len(relations))
	for i, r := range relations {
		scores[i] = out.At(i, 0) + h.RelationBias[r]
	}
	return scores
}

// BCELoss is the summed binary cross entropy with logits, labelling
// positives 1 and negatives 0. Every positive is paired with one negative.
func BCELoss(pos, neg []float64) (float64, error) {
	if len(pos) != len(neg) {
		return 0, helper.NewError("bce loss", fmt.Errorf("%w: %d positive and %d negative scores", helper.ErrShape, len(pos), len(neg)))
	}

	loss := 0.0
	for _, x := range pos {
		loss += softplus(-x)
	}
	for _, x := range neg {
		loss += softplus(x)
	}
	return loss, nil
}

// softplus is log(1 + e^x) without overflow.
func softplus(x float64) float64 {
	return math.Max(x, 0) + math.Log1p(math.Exp(-math.Abs(x)))
}
