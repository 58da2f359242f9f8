package structure

import (
	"fmt"

	"github.com/siherrmann/carst/core/nn"
	"github.com/siherrmann/carst/helper"
	"github.com/siherrmann/carst/model"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Config sizes the relation structure encoder.
type Config struct {
	NumRelations int
	InputSize    int
	HiddenSize   int
	OutputSize   int
	EdgeTypes    int
}

// Conv is one relational graph convolution with mean aggregation per edge
// type:
//
//	h_i' = h_i W_root + b + sum_t mean_{j in N_t(i)} h_j W_t
type Conv struct {
	Root    *mat.Dense
	Bias    []float64
	Weights []*mat.Dense
}

// NewConv initialises a convolution for edgeTypes edge types.
func NewConv(in *nn.Init, inDim, outDim, edgeTypes int) *Conv {
	weights := make([]*mat.Dense, edgeTypes)
	for t := range weights {
		weights[t] = in.Normal(inDim, outDim, nn.InitStd)
	}
	return &Conv{
		Root:    in.Normal(inDim, outDim, nn.InitStd),
		Bias:    nn.Constant(outDim, 0),
		Weights: weights,
	}
}

// forward applies the convolution over the typed edges.
func (c *Conv) forward(x *mat.Dense, edges []typedEdge) *mat.Dense {
	nodes, inDim := x.Dims()
	_, outDim := c.Root.Dims()

	out := mat.NewDense(nodes, outDim, nil)
	out.Mul(x, c.Root)
	for i := 0; i < nodes; i++ {
		floats.Add(out.RawRowView(i), c.Bias)
	}

	byType := map[int][]typedEdge{}
	for _, e := range edges {
		byType[e.kind] = append(byType[e.kind], e)
	}

	message := mat.NewDense(nodes, outDim, nil)
	for kind, typed := range byType {
		aggregate := mat.NewDense(nodes, inDim, nil)
		counts := make([]float64, nodes)
		for _, e := range typed {
			floats.Add(aggregate.RawRowView(e.target), x.RawRowView(e.source))
			counts[e.target]++
		}
		for i, n := range counts {
			if n > 1 {
				floats.Scale(1/n, aggregate.RawRowView(i))
			}
		}
		message.Mul(aggregate, c.Weights[kind])
		out.Add(out, message)
	}
	return out
}

type typedEdge struct {
	source int
	target int
	kind   int
}

// RGCN encodes the relation structure graph into one vector per relation
// with two graph convolutions and a ReLU in between.
type RGCN struct {
	Features *mat.Dense
	Conv1    *Conv
	Conv2    *Conv
	edges    []typedEdge
}

// NewRGCN validates the graph against config and initialises the encoder.
// Edge types outside [0, EdgeTypes) are clamped into range.
func NewRGCN(in *nn.Init, config Config, graph *model.RelationGraph) (*RGCN, error) {
	if config.NumRelations <= 0 || config.InputSize <= 0 || config.HiddenSize <= 0 || config.OutputSize <= 0 || config.EdgeTypes <= 0 {
		return nil, helper.NewError("new rgcn", fmt.Errorf("%w: invalid structure encoder sizes %+v", helper.ErrConfiguration, config))
	}
	if graph == nil {
		return nil, helper.NewError("new rgcn", fmt.Errorf("%w: missing relation graph", helper.ErrConfiguration))
	}

	edges := make([]typedEdge, 0, len(graph.Edges))
	for i, e := range graph.Edges {
		if e.Head < 0 || e.Head >= config.NumRelations || e.Tail < 0 || e.Tail >= config.NumRelations {
			return nil, helper.NewError("new rgcn", fmt.Errorf("%w: edge %d (%d %d %d) references a relation outside [0, %d)", helper.ErrConfiguration, i, e.Head, e.Type, e.Tail, config.NumRelations))
		}
		edges = append(edges, typedEdge{source: e.Head, target: e.Tail, kind: ClampEdgeType(e.Type, config.EdgeTypes)})
	}

	return &RGCN{
		Features: in.Normal(config.NumRelations, config.InputSize, 1),
		Conv1:    NewConv(in, config.InputSize, config.HiddenSize, config.EdgeTypes),
		Conv2:    NewConv(in, config.HiddenSize, config.OutputSize, config.EdgeTypes),
		edges:    edges,
	}, nil
}

// Forward returns the [num_relations, output_size] structure embeddings.
func (r *RGCN) Forward() *mat.Dense {
	h := r.Conv1.forward(r.Features, r.edges)
	nn.Apply(h, nn.ReLU)
	return r.Conv2.forward(h, r.edges)
}

// ClampEdgeType maps a persisted edge type into [0, edgeTypes).
func ClampEdgeType(kind, edgeTypes int) int {
	if kind < 0 {
		return 0
	}
	if kind >= edgeTypes {
		return edgeTypes - 1
	}
	return kind
}
