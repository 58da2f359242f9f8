package graph

// Arc is an outgoing or incoming edge of an entity.
type Arc struct {
	Relation string
	Entity   string
}

// TripleGraph is a directed multigraph over entities. Every added triple is
// stored together with its inverse, so outgoing arcs cover both directions.
type TripleGraph struct {
	out     map[string][]Arc
	in      map[string][]Arc
	known   map[Triple]int
	triples []Triple
}

// NewTripleGraph builds the graph of triples and their inverses.
func NewTripleGraph(triples []Triple) *TripleGraph {
	g := &TripleGraph{
		out:   make(map[string][]Arc),
		in:    make(map[string][]Arc),
		known: make(map[Triple]int),
	}
	for _, t := range triples {
		g.Add(t)
	}
	return g
}

// Add stores t and its inverse.
func (g *TripleGraph) Add(t Triple) {
	for _, e := range []Triple{t, t.Inverse()} {
		g.out[e.Head] = append(g.out[e.Head], Arc{Relation: e.Relation, Entity: e.Tail})
		g.in[e.Tail] = append(g.in[e.Tail], Arc{Relation: e.Relation, Entity: e.Head})
		g.known[e]++
		g.triples = append(g.triples, e)
	}
}

// Triples returns every stored triple, inverses included, in insertion order.
func (g *TripleGraph) Triples() []Triple {
	return g.triples
}

// Has reports whether t was added (directly or as an inverse).
func (g *TripleGraph) Has(t Triple) bool {
	return g.known[t] > 0
}

// Entities returns every entity in first-seen order.
func (g *TripleGraph) Entities() []string {
	seen := make(map[string]bool, len(g.out))
	entities := make([]string, 0, len(g.out))
	for _, t := range g.triples {
		if !seen[t.Head] {
			seen[t.Head] = true
			entities = append(entities, t.Head)
		}
	}
	return entities
}

// Arcs returns the outgoing arcs of entity.
func (g *TripleGraph) Arcs(entity string) []Arc {
	return g.out[entity]
}

// Successors returns the distinct entities reachable over one outgoing arc.
func (g *TripleGraph) Successors(entity string) []string {
	return distinctEntities(g.out[entity])
}

// Predecessors returns the distinct entities with an arc into entity.
func (g *TripleGraph) Predecessors(entity string) []string {
	return distinctEntities(g.in[entity])
}

// Neighborhood returns the relations of the outgoing arcs of entity, at most
// limit of them (limit <= 0 returns all).
func (g *TripleGraph) Neighborhood(entity string, limit int) []string {
	arcs := g.out[entity]
	if limit > 0 && len(arcs) > limit {
		arcs = arcs[:limit]
	}
	relations := make([]string, len(arcs))
	for i, a := range arcs {
		relations[i] = a.Relation
	}
	return relations
}

func distinctEntities(arcs []Arc) []string {
	seen := make(map[string]bool, len(arcs))
	entities := make([]string, 0, len(arcs))
	for _, a := range arcs {
		if !seen[a.Entity] {
			seen[a.Entity] = true
			entities = append(entities, a.Entity)
		}
	}
	return entities
}
