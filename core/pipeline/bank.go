package pipeline

import (
	"context"
	"fmt"

	"github.com/siherrmann/carst/helper"
	"github.com/siherrmann/carst/model"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// TextBank holds the token embeddings of every relation description, padded
// to a common length. It is computed once and only read afterwards.
type TextBank struct {
	// Sequences has one [Length, Width] matrix per relation id.
	Sequences []*mat.Dense
	// Masks marks real tokens with 1 and padding with 0.
	Masks  [][]int
	Length int
	Width  int
}

// NewTextBank embeds the description of every relation id in
// [0, numRelations). The common length is min(maxTextLen, longest sequence).
func NewTextBank(ctx context.Context, vocab *model.Vocabulary, numRelations int, embed TokenEmbedFunc, maxTextLen int, workers int) (*TextBank, error) {
	if vocab == nil || embed == nil {
		return nil, helper.NewError("new text bank", fmt.Errorf("%w: missing vocabulary or embedder", helper.ErrConfiguration))
	}
	if err := vocab.Covers(numRelations); err != nil {
		return nil, helper.NewError("new text bank", err)
	}
	if numRelations <= 0 || maxTextLen <= 0 {
		return nil, helper.NewError("new text bank", fmt.Errorf("%w: relation count and max text length must be positive", helper.ErrConfiguration))
	}
	if workers <= 0 {
		workers = 1
	}

	tokens := make([][][]float32, numRelations)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for id := 0; id < numRelations; id++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			text, _ := vocab.Text(id)
			vectors, err := embed(text, maxTextLen)
			if err != nil {
				return helper.NewError(fmt.Sprintf("embed relation %d", id), err)
			}
			if len(vectors) == 0 {
				return helper.NewError(fmt.Sprintf("embed relation %d", id), fmt.Errorf("%w: no token embeddings for %q", helper.ErrConfiguration, text))
			}
			tokens[id] = vectors
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, helper.NewError("new text bank", err)
	}

	width := len(tokens[0][0])
	length := 0
	for id, vectors := range tokens {
		for _, v := range vectors {
			if len(v) != width || width == 0 {
				return nil, helper.NewError("new text bank", fmt.Errorf("%w: relation %d has token width %d, want %d", helper.ErrConfiguration, id, len(v), width))
			}
		}
		length = max(length, len(vectors))
	}
	length = min(length, maxTextLen)

	bank := &TextBank{
		Sequences: make([]*mat.Dense, numRelations),
		Masks:     make([][]int, numRelations),
		Length:    length,
		Width:     width,
	}
	for id, vectors := range tokens {
		seq := mat.NewDense(length, width, nil)
		mask := make([]int, length)
		for i := 0; i < len(vectors) && i < length; i++ {
			row := seq.RawRowView(i)
			for j, v := range vectors[i] {
				row[j] = float64(v)
			}
			mask[i] = 1
		}
		bank.Sequences[id] = seq
		bank.Masks[id] = mask
	}
	return bank, nil
}

// Size is the number of relations in the bank.
func (b *TextBank) Size() int {
	return len(b.Sequences)
}

// First stacks position 0 of every description into a [relations, Width]
// matrix.
func (b *TextBank) First() *mat.Dense {
	out := mat.NewDense(len(b.Sequences), b.Width, nil)
	for id, seq := range b.Sequences {
		copy(out.RawRowView(id), seq.RawRowView(0))
	}
	return out
}
