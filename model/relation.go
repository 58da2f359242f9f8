package model

import (
	"time"

	"github.com/google/uuid"
)

// Relation is a relation type with its description.
type Relation struct {
	ID        int       `json:"id"`
	RID       uuid.UUID `json:"rid"`
	Text      string    `json:"text"`
	Metadata  Metadata  `json:"metadata,omitempty"`
	Embedding []float32 `json:"embedding,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RelationEdge is one line of the relation structure graph: a typed link
// from the head relation to the tail relation.
type RelationEdge struct {
	Head int `json:"head"`
	Type int `json:"type"`
	Tail int `json:"tail"`
}

// RelationGraph is the relation co-occurrence graph. It is not modified after
// loading.
type RelationGraph struct {
	NumRelations int            `json:"num_relations"`
	Edges        []RelationEdge `json:"edges"`
}

// EdgeIndex returns the source and target rows of the edge list.
func (g *RelationGraph) EdgeIndex() (sources []int, targets []int) {
	sources = make([]int, len(g.Edges))
	targets = make([]int, len(g.Edges))
	for i, e := range g.Edges {
		sources[i] = e.Head
		targets[i] = e.Tail
	}
	return sources, targets
}

// EdgeTypes returns the type column of the edge list.
func (g *RelationGraph) EdgeTypes() []int {
	types := make([]int, len(g.Edges))
	for i, e := range g.Edges {
		types[i] = e.Type
	}
	return types
}

// RelationMatch is a relation found by embedding similarity.
type RelationMatch struct {
	Relation   Relation `json:"relation"`
	Similarity float64  `json:"similarity"`
}
