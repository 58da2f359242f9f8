package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/siherrmann/carst/core/graph"
	"github.com/siherrmann/carst/helper"
	"github.com/siherrmann/carst/model"
)

// Scorer scores a batch of assembled triples.
type Scorer interface {
	Score(ctx context.Context, b model.Batch) ([]float64, error)
}

// RankedTriple is a candidate triple with its score and 1-based rank.
type RankedTriple struct {
	Triple graph.Triple
	Score  float64
	Rank   int
}

// Engine ranks candidate triples by model score
type Engine struct {
	scorer    Scorer
	assembler *graph.Assembler
	batchSize int
}

// NewEngine creates a new ranking engine. Candidates are scored in batches of
// at most batchSize triples.
func NewEngine(scorer Scorer, assembler *graph.Assembler, batchSize int) *Engine {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Engine{
		scorer:    scorer,
		assembler: assembler,
		batchSize: batchSize,
	}
}

// ScoreTriples assembles and scores triples without dropout, in input order.
func (e *Engine) ScoreTriples(ctx context.Context, triples []graph.Triple) ([]float64, error) {
	scores := make([]float64, 0, len(triples))
	for start := 0; start < len(triples); start += e.batchSize {
		end := min(start+e.batchSize, len(triples))

		b, err := e.assembler.Inference(ctx, triples[start:end])
		if err != nil {
			return nil, helper.NewError("score triples", err)
		}
		batchScores, err := e.scorer.Score(ctx, b)
		if err != nil {
			return nil, helper.NewError("score triples", err)
		}
		if len(batchScores) != end-start {
			return nil, helper.NewError("score triples", fmt.Errorf("%w: %d scores for %d triples", helper.ErrShape, len(batchScores), end-start))
		}
		scores = append(scores, batchScores...)
	}
	return scores, nil
}

// RankTails scores (head, relation, candidate) for every candidate and
// returns them best first. Equal scores keep the candidate order.
func (e *Engine) RankTails(ctx context.Context, head, relation string, candidates []string) ([]*RankedTriple, error) {
	triples := make([]graph.Triple, len(candidates))
	for i, tail := range candidates {
		triples[i] = graph.Triple{Head: head, Relation: relation, Tail: tail}
	}

	scores, err := e.ScoreTriples(ctx, triples)
	if err != nil {
		return nil, helper.NewError("rank tails", err)
	}

	results := make([]*RankedTriple, len(triples))
	for i, t := range triples {
		results[i] = &RankedTriple{Triple: t, Score: scores[i]}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	for i, r := range results {
		r.Rank = i + 1
	}

	return results, nil
}

// Rank returns the 1-based rank of positive among negatives: one plus the
// number of negatives scored strictly higher.
func (e *Engine) Rank(ctx context.Context, positive graph.Triple, negatives []graph.Triple) (int, error) {
	scores, err := e.ScoreTriples(ctx, append([]graph.Triple{positive}, negatives...))
	if err != nil {
		return 0, helper.NewError("rank", err)
	}

	rank := 1
	for _, s := range scores[1:] {
		if s > scores[0] {
			rank++
		}
	}
	return rank, nil
}
