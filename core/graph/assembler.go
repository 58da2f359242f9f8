package graph

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/siherrmann/carst/helper"
	"github.com/siherrmann/carst/model"
)

// Assembler turns raw triples into model inputs using the training graph.
// A triple that is part of the graph is hidden from its own context.
type Assembler struct {
	Graph      *TripleGraph
	Vocab      *model.Vocabulary
	MaxHops    int
	MaxPaths   int
	MaxContext int
}

// NewAssembler sizes neighbourhoods and paths after config.
func NewAssembler(g *TripleGraph, vocab *model.Vocabulary, config *model.ModelConfig) *Assembler {
	return &Assembler{
		Graph:      g,
		Vocab:      vocab,
		MaxHops:    config.MaxPathLen,
		MaxPaths:   config.MaxNumPath,
		MaxContext: config.MaxRelContext,
	}
}

// Instance builds the neighbourhoods and relational paths of t.
func (a *Assembler) Instance(ctx context.Context, t Triple) (model.TripleInstance, error) {
	relation, ok := a.Vocab.ID(t.Relation)
	if !ok {
		return model.TripleInstance{}, helper.NewError("assemble triple", fmt.Errorf("%w: relation %q is not in the vocabulary", helper.ErrShape, t.Relation))
	}
	hidden := a.Graph.Has(t)

	head, err := a.neighbourhood(t.Head, Arc{Relation: t.Relation, Entity: t.Tail}, hidden)
	if err != nil {
		return model.TripleInstance{}, helper.NewError("assemble triple", err)
	}
	tail, err := a.neighbourhood(t.Tail, Arc{Relation: Inverse(t.Relation), Entity: t.Head}, hidden)
	if err != nil {
		return model.TripleInstance{}, helper.NewError("assemble triple", err)
	}

	limit := a.MaxPaths
	if hidden && limit > 0 {
		limit++
	}
	walks, err := RelationalPaths(ctx, a.Graph, t.Head, t.Tail, a.MaxHops, limit)
	if err != nil {
		return model.TripleInstance{}, helper.NewError("assemble triple", err)
	}

	paths := make([]model.Path, 0, len(walks))
	for _, walk := range walks {
		if hidden && len(walk) == 1 && walk[0] == t.Relation {
			hidden = false
			continue
		}
		ids, err := a.ids(walk)
		if err != nil {
			return model.TripleInstance{}, helper.NewError("assemble triple", err)
		}
		paths = append(paths, model.Path{Relations: ids})
	}
	if a.MaxPaths > 0 && len(paths) > a.MaxPaths {
		paths = paths[:a.MaxPaths]
	}

	return model.TripleInstance{
		Relation:         relation,
		HeadNeighborhood: head,
		TailNeighborhood: tail,
		Paths:            paths,
		PathCount:        len(paths),
	}, nil
}

// Inference assembles every triple into a batch scored without dropout.
func (a *Assembler) Inference(ctx context.Context, triples []Triple) (model.InferenceBatch, error) {
	instances := make([]model.TripleInstance, len(triples))
	for i, t := range triples {
		inst, err := a.Instance(ctx, t)
		if err != nil {
			return model.InferenceBatch{}, err
		}
		instances[i] = inst
	}
	return model.InferenceBatch{Instances: instances}, nil
}

// Training assembles groups of a positive triple followed by its negatives.
// Every instance carries the index of its group as positive id.
func (a *Assembler) Training(ctx context.Context, groups [][]Triple) (model.TrainingBatch, error) {
	var b model.TrainingBatch
	for g, group := range groups {
		for _, t := range group {
			inst, err := a.Instance(ctx, t)
			if err != nil {
				return model.TrainingBatch{}, err
			}
			b.PositiveIDs = append(b.PositiveIDs, g)
			b.Instances = append(b.Instances, inst)
		}
	}
	return b, nil
}

// CorruptTails returns up to n copies of t with the tail replaced by an entity
// that does not form a known triple.
func (g *TripleGraph) CorruptTails(t Triple, n int, rng *rand.Rand) []Triple {
	entities := g.Entities()
	negatives := make([]Triple, 0, n)
	for _, k := range rng.Perm(len(entities)) {
		if len(negatives) == n {
			break
		}
		candidate := Triple{Head: t.Head, Relation: t.Relation, Tail: entities[k]}
		if candidate.Tail == t.Head || g.Has(candidate) {
			continue
		}
		negatives = append(negatives, candidate)
	}
	return negatives
}

// neighbourhood lists the relation ids around entity, dropping the first arc
// equal to skip when hide is set.
func (a *Assembler) neighbourhood(entity string, skip Arc, hide bool) ([]int, error) {
	arcs := a.Graph.Arcs(entity)
	ids := make([]int, 0, len(arcs))
	for _, arc := range arcs {
		if hide && arc == skip {
			hide = false
			continue
		}
		if a.MaxContext > 0 && len(ids) == a.MaxContext {
			break
		}
		id, ok := a.Vocab.ID(arc.Relation)
		if !ok {
			return nil, fmt.Errorf("%w: relation %q is not in the vocabulary", helper.ErrConfiguration, arc.Relation)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (a *Assembler) ids(relations []string) ([]int, error) {
	ids := make([]int, len(relations))
	for i, r := range relations {
		id, ok := a.Vocab.ID(r)
		if !ok {
			return nil, fmt.Errorf("%w: relation %q is not in the vocabulary", helper.ErrConfiguration, r)
		}
		ids[i] = id
	}
	return ids, nil
}
