package graph

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/siherrmann/carst/helper"
	"github.com/siherrmann/carst/model"
)

// ParseRelationGraph reads one `head type tail` edge of relation ids per line.
func ParseRelationGraph(r io.Reader, numRelations int) (*model.RelationGraph, error) {
	graph := &model.RelationGraph{NumRelations: numRelations}

	line := 0
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 3 {
			return nil, helper.NewError("parse relation graph", fmt.Errorf("%w: line %d has %d fields, want 3", helper.ErrConfiguration, line, len(fields)))
		}

		var ids [3]int
		for k, f := range fields {
			id, err := strconv.Atoi(f)
			if err != nil {
				return nil, helper.NewError("parse relation graph", fmt.Errorf("%w: line %d: %v", helper.ErrConfiguration, line, err))
			}
			ids[k] = id
		}
		edge := model.RelationEdge{Head: ids[0], Type: ids[1], Tail: ids[2]}
		if edge.Head < 0 || edge.Head >= numRelations || edge.Tail < 0 || edge.Tail >= numRelations {
			return nil, helper.NewError("parse relation graph", fmt.Errorf("%w: line %d: relation outside [0, %d)", helper.ErrConfiguration, line, numRelations))
		}
		if edge.Type < 0 {
			return nil, helper.NewError("parse relation graph", fmt.Errorf("%w: line %d: negative edge type %d", helper.ErrConfiguration, line, edge.Type))
		}
		graph.Edges = append(graph.Edges, edge)
	}
	if err := scanner.Err(); err != nil {
		return nil, helper.NewError("parse relation graph", err)
	}
	return graph, nil
}

// LoadRelationGraph reads a relation structure graph file.
func LoadRelationGraph(path string, numRelations int) (*model.RelationGraph, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, helper.NewError("open relation graph", err)
	}
	defer file.Close()

	return ParseRelationGraph(file, numRelations)
}

// WriteRelationGraph writes graph as tab separated `head type tail` lines.
func WriteRelationGraph(path string, graph *model.RelationGraph) error {
	file, err := os.Create(path)
	if err != nil {
		return helper.NewError("create relation graph", err)
	}

	w := bufio.NewWriter(file)
	for _, e := range graph.Edges {
		fmt.Fprintf(w, "%d\t%d\t%d\n", e.Head, e.Type, e.Tail)
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return helper.NewError("write relation graph", err)
	}
	if err := file.Close(); err != nil {
		return helper.NewError("write relation graph", err)
	}
	return nil
}
