package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/siherrmann/carst/helper"
	"github.com/siherrmann/carst/model"
	loadSql "github.com/siherrmann/carst/sql"
)

// RelationEdgesDBHandlerFunctions defines the interface for relation graph database operations.
type RelationEdgesDBHandlerFunctions interface {
	InsertRelationEdge(edge *model.RelationEdge) error
	InsertRelationGraph(ctx context.Context, graph *model.RelationGraph, replace bool) error
	SelectRelationEdgesFrom(head int) ([]model.RelationEdge, error)
	SelectRelationGraph(numRelations int) (*model.RelationGraph, error)
	DeleteRelationEdges() error
}

// RelationEdgesDBHandler handles relation structure graph database operations
type RelationEdgesDBHandler struct {
	db *helper.Database
}

// NewRelationEdgesDBHandler creates a new relation edges database handler.
// If force is true, it will reload the SQL functions even if they already exist.
func NewRelationEdgesDBHandler(db *helper.Database, force bool) (*RelationEdgesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	edgesDbHandler := &RelationEdgesDBHandler{
		db: db,
	}

	err := loadSql.LoadRelationEdgesSql(edgesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load relation edges sql", err)
	}

	err = edgesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized RelationEdgesDBHandler")

	return edgesDbHandler, nil
}

// CreateTable creates the 'relation_edges' table and its indexes if it does not exist.
func (h *RelationEdgesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_relation_edges();`)
	if err != nil {
		return helper.NewError("init relation edges", err)
	}

	h.db.Logger.Info("Checked/created table relation_edges")

	return nil
}

// InsertRelationEdge inserts a single edge
func (h *RelationEdgesDBHandler) InsertRelationEdge(edge *model.RelationEdge) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_relation_edge($1, $2, $3)`,
		edge.Head,
		edge.Type,
		edge.Tail,
	)

	err := row.Scan(&edge.Head, &edge.Type, &edge.Tail)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// InsertRelationGraph stores every edge of graph in one transaction. With
// replace set the stored graph is deleted first.
func (h *RelationEdgesDBHandler) InsertRelationGraph(ctx context.Context, graph *model.RelationGraph, replace bool) error {
	tx, err := h.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return helper.NewError("begin transaction", err)
	}
	defer tx.Rollback()

	if replace {
		_, err = tx.ExecContext(ctx, `SELECT delete_relation_edges()`)
		if err != nil {
			return helper.NewError("delete relation edges", err)
		}
	}

	for _, edge := range graph.Edges {
		_, err = tx.ExecContext(ctx, `SELECT * FROM insert_relation_edge($1, $2, $3)`, edge.Head, edge.Type, edge.Tail)
		if err != nil {
			return helper.NewError("insert relation edge", err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return helper.NewError("commit", err)
	}

	h.db.Logger.Info("Stored relation graph", slog.Int("edges", len(graph.Edges)), slog.Bool("replace", replace))

	return nil
}

// SelectRelationEdgesFrom retrieves the outgoing edges of a relation
func (h *RelationEdgesDBHandler) SelectRelationEdgesFrom(head int) ([]model.RelationEdge, error) {
	return h.selectEdges(`SELECT * FROM select_relation_edges_from($1)`, head)
}

// SelectRelationGraph loads the stored graph. Every edge must connect
// relations in [0, numRelations).
func (h *RelationEdgesDBHandler) SelectRelationGraph(numRelations int) (*model.RelationGraph, error) {
	edges, err := h.selectEdges(`SELECT * FROM select_relation_graph()`)
	if err != nil {
		return nil, err
	}

	for _, e := range edges {
		if e.Head < 0 || e.Head >= numRelations || e.Tail < 0 || e.Tail >= numRelations {
			return nil, helper.NewError("select relation graph", fmt.Errorf("%w: edge %d -> %d outside [0, %d)", helper.ErrConfiguration, e.Head, e.Tail, numRelations))
		}
	}

	return &model.RelationGraph{NumRelations: numRelations, Edges: edges}, nil
}

// DeleteRelationEdges deletes the whole stored graph
func (h *RelationEdgesDBHandler) DeleteRelationEdges() error {
	_, err := h.db.Instance.Exec(`SELECT delete_relation_edges()`)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

func (h *RelationEdgesDBHandler) selectEdges(query string, args ...any) ([]model.RelationEdge, error) {
	rows, err := h.db.Instance.Query(query, args...)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var edges []model.RelationEdge
	for rows.Next() {
		var edge model.RelationEdge
		err := rows.Scan(&edge.Head, &edge.Type, &edge.Tail)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		edges = append(edges, edge)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return edges, nil
}
