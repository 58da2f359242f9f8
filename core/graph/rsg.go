package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/siherrmann/carst/helper"
	"github.com/siherrmann/carst/model"
	"golang.org/x/sync/errgroup"
)

// SimilarityScale turns a structure similarity in [0, 1] into an integer
// edge weight.
const SimilarityScale = 10

type entitySet map[string]struct{}

type relationPair struct {
	head, tail string
}

// BuildRelationStructureGraph links relations whose triples share
// neighbourhoods. Every unordered pair of triples (inverses included) adds
// int(SimilarityScale*sim) to the edge (r1, r2), where sim is the mean of the
// in- and out-neighbourhood Jaccard similarity of the two entity pairs.
// Pairs with zero weight, the same relation or inverse relations are skipped.
func BuildRelationStructureGraph(ctx context.Context, g *TripleGraph, vocab *model.Vocabulary, workers int) (*model.RelationGraph, error) {
	if g == nil || vocab == nil {
		return nil, helper.NewError("build relation structure graph", fmt.Errorf("%w: missing graph or vocabulary", helper.ErrConfiguration))
	}
	if workers <= 0 {
		workers = 1
	}

	triples := g.Triples()
	ins := make([]entitySet, len(triples))
	outs := make([]entitySet, len(triples))
	for i, t := range triples {
		ins[i] = g.neighbourSet(t, g.Predecessors)
		outs[i] = g.neighbourSet(t, g.Successors)
	}

	var mu sync.Mutex
	weights := map[relationPair]int{}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i := range triples {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			local := map[relationPair]int{}
			for j := i + 1; j < len(triples); j++ {
				a, b := triples[i], triples[j]
				if a == b || a.Relation == b.Relation || IsInversePair(a.Relation, b.Relation) {
					continue
				}
				sim := (jaccard(ins[i], ins[j]) + jaccard(outs[i], outs[j])) / 2
				if w := int(sim * SimilarityScale); w != 0 {
					local[relationPair{a.Relation, b.Relation}] += w
				}
			}

			mu.Lock()
			for k, w := range local {
				weights[k] += w
			}
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, helper.NewError("build relation structure graph", err)
	}

	graph := &model.RelationGraph{NumRelations: vocab.Size(), Edges: make([]model.RelationEdge, 0, len(weights))}
	for pair, w := range weights {
		head, ok := vocab.ID(pair.head)
		if !ok {
			return nil, helper.NewError("build relation structure graph", fmt.Errorf("%w: relation %q is not in the vocabulary", helper.ErrConfiguration, pair.head))
		}
		tail, ok := vocab.ID(pair.tail)
		if !ok {
			return nil, helper.NewError("build relation structure graph", fmt.Errorf("%w: relation %q is not in the vocabulary", helper.ErrConfiguration, pair.tail))
		}
		graph.Edges = append(graph.Edges, model.RelationEdge{Head: head, Type: w, Tail: tail})
	}
	sort.Slice(graph.Edges, func(i, j int) bool {
		if graph.Edges[i].Head != graph.Edges[j].Head {
			return graph.Edges[i].Head < graph.Edges[j].Head
		}
		return graph.Edges[i].Tail < graph.Edges[j].Tail
	})

	return graph, nil
}

// neighbourSet is the union of the neighbours of both endpoints of t,
// including the endpoints themselves.
func (g *TripleGraph) neighbourSet(t Triple, neighbours func(string) []string) entitySet {
	set := entitySet{t.Head: {}, t.Tail: {}}
	for _, e := range neighbours(t.Head) {
		set[e] = struct{}{}
	}
	for _, e := range neighbours(t.Tail) {
		set[e] = struct{}{}
	}
	return set
}

func jaccard(a, b entitySet) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}
	shared := 0
	for e := range a {
		if _, ok := b[e]; ok {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}
