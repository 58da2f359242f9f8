package scoring

import (
	"github.com/siherrmann/carst/core/batch"
	"github.com/siherrmann/carst/core/nn"
	"github.com/siherrmann/carst/helper"
	"gonum.org/v1/gonum/mat"
)

// PathBiasScale is the attention penalty used by the path and overall
// encoders.
const PathBiasScale = 1e6

// PathEncoder encodes every relational path of a batch into one vector.
type PathEncoder struct {
	Positions   *nn.Embedding
	Norm        *nn.LayerNorm
	DropoutProb float64
	Encoder     *nn.Encoder
}

// Encode returns one row per path of the arena. A batch without paths skips
// the transformer and returns an empty matrix.
func (p *PathEncoder) Encode(table *RelationTable, arena *batch.PathArena, d *nn.Dropout) (*mat.Dense, error) {
	n := arena.NumPaths()
	if n == 0 {
		return &mat.Dense{}, nil
	}

	positions := make([]int, arena.SeqLen)
	for j := range positions {
		positions[j] = j
	}
	posEmb := p.Positions.Lookup(positions)

	inputs := make([]*mat.Dense, n)
	biases := make([]*mat.Dense, n)
	for i := 0; i < n; i++ {
		ids, mask := arena.Path(i)
		x := table.Rows(ids)
		x.Add(x, posEmb)
		x = p.Norm.Forward(x)
		d.Apply(x, p.DropoutProb)

		inputs[i] = x
		biases[i] = nn.MaskBias(mask, PathBiasScale)
	}

	out, err := p.Encoder.Forward(inputs, biases, d)
	if err != nil {
		return nil, helper.NewError("encode paths", err)
	}
	return nn.FirstRows(out), nil
}
