package scoring

import (
	"fmt"

	"github.com/siherrmann/carst/core/batch"
	"github.com/siherrmann/carst/core/nn"
	"github.com/siherrmann/carst/helper"
	"gonum.org/v1/gonum/mat"
)

// ReadoutSlot is the overall sequence position read by the score head.
const ReadoutSlot = 1

// OverallEncoder fuses placeholder, relation, entity and path embeddings of
// each triple.
type OverallEncoder struct {
	Norm        *nn.LayerNorm
	DropoutProb float64
	Encoder     *nn.Encoder
	// Placeholder is the relation id whose table row fills slot 0.
	Placeholder int
}

// Assemble builds the raw [Slots, E] input of every triple. Path slots past
// a triple's path count take the table row named by the overall mask value
// of that slot.
func (o *OverallEncoder) Assemble(table *RelationTable, plan *batch.Plan, entities, paths *mat.Dense) ([]*mat.Dense, error) {
	entitySlots := 2
	if plan.Pair {
		entitySlots = 1
	}
	firstPath := 2 + entitySlots

	rows, _ := entities.Dims()
	if rows != plan.Size()*entitySlots {
		return nil, helper.NewError("assemble overall input", fmt.Errorf("%w: %d entity rows for %d triples", helper.ErrShape, rows, plan.Size()))
	}

	inputs := make([]*mat.Dense, plan.Size())
	for i := 0; i < plan.Size(); i++ {
		mask := plan.OverallMasks[i]
		if len(mask) != plan.Slots {
			return nil, helper.NewError("assemble overall input", fmt.Errorf("%w: triple %d has %d slots, want %d", helper.ErrShape, i, len(mask), plan.Slots))
		}

		x := mat.NewDense(plan.Slots, table.Dim(), nil)
		copy(x.RawRowView(0), table.Embeddings.RawRowView(o.Placeholder))
		copy(x.RawRowView(1), table.Embeddings.RawRowView(plan.Relations[i]))
		if plan.Pair {
			copy(x.RawRowView(2), entities.RawRowView(i))
		} else {
			copy(x.RawRowView(2), entities.RawRowView(i))
			copy(x.RawRowView(3), entities.RawRowView(plan.Size()+i))
		}

		start, end := plan.Paths.Span(i)
		for slot := firstPath; slot < plan.Slots; slot++ {
			p := start + slot - firstPath
			if p < end {
				copy(x.RawRowView(slot), paths.RawRowView(p))
			} else {
				copy(x.RawRowView(slot), table.Embeddings.RawRowView(mask[slot]))
			}
		}
		inputs[i] = x
	}
	return inputs, nil
}

// Encode runs the overall transformer and returns the readout slot of every
// triple.
func (o *OverallEncoder) Encode(table *RelationTable, plan *batch.Plan, entities, paths *mat.Dense, d *nn.Dropout) (*mat.Dense, error) {
	inputs, err := o.Assemble(table, plan, entities, paths)
	if err != nil {
		return nil, err
	}

	biases := make([]*mat.Dense, len(inputs))
	for i, x := range inputs {
		x = o.Norm.Forward(x)
		d.Apply(x, o.DropoutProb)
		inputs[i] = x
		biases[i] = nn.MaskBias(plan.OverallMasks[i], PathBiasScale)
	}

	out, err := o.Encoder.Forward(inputs, biases, d)
	if err != nil {
		return nil, helper.NewError("encode overall", err)
	}

	readout := mat.NewDense(len(out), table.Dim(), nil)
	for i, h := range out {
		copy(readout.RawRowView(i), h.RawRowView(ReadoutSlot))
	}
	return readout, nil
}
