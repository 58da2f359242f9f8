package retrieval

import (
	"context"
	"fmt"

	"github.com/siherrmann/carst/core/graph"
	"github.com/siherrmann/carst/helper"
	"gonum.org/v1/gonum/stat"
)

// Metrics summarises the ranks of positive triples among their negatives.
type Metrics struct {
	Count  int     `json:"count"`
	MRR    float64 `json:"mrr"`
	Hits1  float64 `json:"hits_1"`
	Hits3  float64 `json:"hits_3"`
	Hits10 float64 `json:"hits_10"`
}

// NewMetrics computes the mean reciprocal rank and hit rates of ranks.
func NewMetrics(ranks []int) Metrics {
	if len(ranks) == 0 {
		return Metrics{}
	}

	reciprocal := make([]float64, len(ranks))
	hits := func(k int) float64 {
		n := 0
		for _, r := range ranks {
			if r <= k {
				n++
			}
		}
		return float64(n) / float64(len(ranks))
	}
	for i, r := range ranks {
		reciprocal[i] = 1 / float64(r)
	}

	return Metrics{
		Count:  len(ranks),
		MRR:    stat.Mean(reciprocal, nil),
		Hits1:  hits(1),
		Hits3:  hits(3),
		Hits10: hits(10),
	}
}

// Evaluate ranks the first triple of every group against the rest.
func (e *Engine) Evaluate(ctx context.Context, groups [][]graph.Triple) (Metrics, error) {
	ranks := make([]int, 0, len(groups))
	for i, group := range groups {
		if len(group) == 0 {
			return Metrics{}, helper.NewError("evaluate", fmt.Errorf("%w: group %d is empty", helper.ErrShape, i))
		}
		rank, err := e.Rank(ctx, group[0], group[1:])
		if err != nil {
			return Metrics{}, helper.NewError("evaluate", err)
		}
		ranks = append(ranks, rank)
	}
	return NewMetrics(ranks), nil
}
