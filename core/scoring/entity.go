package scoring

import (
	"github.com/siherrmann/carst/core/batch"
	"github.com/siherrmann/carst/core/nn"
	"github.com/siherrmann/carst/helper"
	"gonum.org/v1/gonum/mat"
)

// EntityBiasScale is the attention penalty of padded neighbourhood positions.
const EntityBiasScale = 1e4

// EntityEncoder encodes relational neighbourhoods into one vector per
// entity (or per entity pair).
type EntityEncoder struct {
	Norm        *nn.LayerNorm
	DropoutProb float64
	// Types embeds the segment ids of entity pairs.
	Types   *nn.Embedding
	Encoder *nn.Encoder
}

// Encode returns row 0 of every encoded sequence.
func (e *EntityEncoder) Encode(table *RelationTable, seqs batch.Sequences, d *nn.Dropout) (*mat.Dense, error) {
	inputs := make([]*mat.Dense, seqs.Len())
	biases := make([]*mat.Dense, seqs.Len())
	for i, ids := range seqs.IDs {
		x := table.Rows(ids)
		if seqs.Types != nil {
			types := e.Types.Lookup(seqs.Types[i])
			x.Add(x, types)
		}
		x = e.Norm.Forward(x)
		d.Apply(x, e.DropoutProb)

		inputs[i] = x
		biases[i] = nn.MaskBias(seqs.Masks[i], EntityBiasScale)
	}

	out, err := e.Encoder.Forward(inputs, biases, d)
	if err != nil {
		return nil, helper.NewError("encode entities", err)
	}
	return nn.FirstRows(out), nil
}
