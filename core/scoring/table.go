package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/carst/core/fusion"
	"github.com/siherrmann/carst/core/nn"
	"github.com/siherrmann/carst/core/pipeline"
	"github.com/siherrmann/carst/core/structure"
	"github.com/siherrmann/carst/helper"
	"github.com/siherrmann/carst/model"
	"gonum.org/v1/gonum/mat"
)

// RelationTable is an immutable snapshot of the fused relation embeddings,
// one row per relation id.
type RelationTable struct {
	ID         uuid.UUID
	Mode       model.AblationMode
	Embeddings *mat.Dense
	CreatedAt  time.Time
}

// Size is the number of relations.
func (t *RelationTable) Size() int {
	r, _ := t.Embeddings.Dims()
	return r
}

// Dim is the embedding width.
func (t *RelationTable) Dim() int {
	_, c := t.Embeddings.Dims()
	return c
}

// Row returns a copy of the embedding of relation id.
func (t *RelationTable) Row(id int) []float64 {
	return append([]float64(nil), t.Embeddings.RawRowView(id)...)
}

// Rows gathers the embeddings of ids into a new matrix.
func (t *RelationTable) Rows(ids []int) *mat.Dense {
	return nn.Gather(t.Embeddings, ids)
}

// Float32Row returns the embedding of relation id as float32, the layout of
// the relation store.
func (t *RelationTable) Float32Row(id int) []float32 {
	row := t.Embeddings.RawRowView(id)
	out := make([]float32, len(row))
	for i, v := range row {
		out[i] = float32(v)
	}
	return out
}

// RelationSource computes the relation table for one ablation mode. Only
// the encoders the mode needs are set.
type RelationSource struct {
	Mode model.AblationMode

	Bank      *pipeline.TextBank
	Structure *structure.RGCN
	Cross     *fusion.CrossModel

	// TextProjection maps text position 0 (or the fused vector) to the
	// embedding width.
	TextProjection *nn.Linear
	// StructureProjection maps structure embeddings to the embedding width.
	StructureProjection *nn.Linear
	ConcatProjection    *nn.Linear
	Plain               *nn.Embedding

	Workers int
}

// Build returns a fresh [relations, embedding] matrix.
func (s *RelationSource) Build(ctx context.Context) (*mat.Dense, error) {
	switch s.Mode {
	case model.AblationFull:
		fused, err := s.Cross.FuseAll(ctx, s.Bank.Sequences, s.Structure.Forward(), s.Workers)
		if err != nil {
			return nil, helper.NewError("build relation table", err)
		}
		return s.TextProjection.Forward(fused), nil
	case model.AblationText:
		return s.TextProjection.Forward(s.Bank.First()), nil
	case model.AblationStructure:
		return s.StructureProjection.Forward(s.Structure.Forward()), nil
	case model.AblationConcat:
		text := s.TextProjection.Forward(s.Bank.First())
		graph := s.StructureProjection.Forward(s.Structure.Forward())
		rows, dim := text.Dims()
		joined := mat.NewDense(rows, 2*dim, nil)
		joined.Augment(text, graph)
		return s.ConcatProjection.Forward(joined), nil
	case model.AblationPlain:
		return mat.DenseCopyOf(s.Plain.Table), nil
	default:
		return nil, helper.NewError("build relation table", fmt.Errorf("%w: unknown ablation mode %d", helper.ErrConfiguration, int(s.Mode)))
	}
}
