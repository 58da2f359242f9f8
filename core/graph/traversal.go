package graph

import (
	"context"
	"slices"

	"github.com/siherrmann/carst/helper"
)

// ArcSource lists the outgoing arcs of an entity.
type ArcSource interface {
	Arcs(entity string) []Arc
}

// TraversalResult is an entity reached from a source together with the
// relations walked to get there.
type TraversalResult struct {
	Entity    string
	Distance  int
	Entities  []string // Entities from source to this entity
	Relations []string
}

// BFS performs breadth-first search from source and returns every entity at
// most maxHops arcs away, each with its first discovered walk.
func BFS(ctx context.Context, g ArcSource, source string, maxHops int) ([]*TraversalResult, error) {
	visited := map[string]bool{source: true}
	queue := []*TraversalResult{{Entity: source, Entities: []string{source}}}

	var results []*TraversalResult
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, helper.NewError("bfs", err)
		}
		current := queue[0]
		queue = queue[1:]
		results = append(results, current)

		if current.Distance >= maxHops {
			continue
		}
		for _, arc := range g.Arcs(current.Entity) {
			if visited[arc.Entity] {
				continue
			}
			visited[arc.Entity] = true
			queue = append(queue, current.extend(arc))
		}
	}
	return results, nil
}

// RelationalPaths enumerates the relation sequences of simple walks from head
// to tail with at most maxHops arcs, shortest first. At most limit paths are
// returned (limit <= 0 returns all).
func RelationalPaths(ctx context.Context, g ArcSource, head, tail string, maxHops, limit int) ([][]string, error) {
	if head == tail || maxHops <= 0 {
		return nil, nil
	}

	var paths [][]string
	queue := []*TraversalResult{{Entity: head, Entities: []string{head}}}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, helper.NewError("relational paths", err)
		}
		current := queue[0]
		queue = queue[1:]

		for _, arc := range g.Arcs(current.Entity) {
			if slices.Contains(current.Entities, arc.Entity) {
				continue
			}
			next := current.extend(arc)
			if arc.Entity == tail {
				paths = append(paths, next.Relations)
				if limit > 0 && len(paths) >= limit {
					return paths, nil
				}
				continue
			}
			if next.Distance < maxHops {
				queue = append(queue, next)
			}
		}
	}
	return paths, nil
}

func (r *TraversalResult) extend(arc Arc) *TraversalResult {
	entities := make([]string, len(r.Entities), len(r.Entities)+1)
	copy(entities, r.Entities)
	relations := make([]string, len(r.Relations), len(r.Relations)+1)
	copy(relations, r.Relations)

	return &TraversalResult{
		Entity:    arc.Entity,
		Distance:  r.Distance + 1,
		Entities:  append(entities, arc.Entity),
		Relations: append(relations, arc.Relation),
	}
}
