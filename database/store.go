package database

import (
	"context"
	"log/slog"

	"github.com/siherrmann/carst/helper"
	"github.com/siherrmann/carst/model"
)

// Store bundles the relation and relation graph handlers of one database.
type Store struct {
	DB        *helper.Database
	Relations *RelationsDBHandler
	Edges     *RelationEdgesDBHandler
}

// NewStore creates both handlers, relations first.
func NewStore(db *helper.Database, embeddingDim int, force bool) (*Store, error) {
	relations, err := NewRelationsDBHandler(db, embeddingDim, force)
	if err != nil {
		return nil, helper.NewError("create relations handler", err)
	}

	edges, err := NewRelationEdgesDBHandler(db, force)
	if err != nil {
		return nil, helper.NewError("create relation edges handler", err)
	}

	return &Store{DB: db, Relations: relations, Edges: edges}, nil
}

// Import stores every vocabulary entry as a relation and replaces the stored
// relation graph.
func (s *Store) Import(ctx context.Context, vocab *model.Vocabulary, graph *model.RelationGraph) error {
	for id, text := range vocab.IDToText {
		if err := ctx.Err(); err != nil {
			return helper.NewError("import relations", err)
		}
		if err := s.Relations.InsertRelation(&model.Relation{ID: id, Text: text}); err != nil {
			return helper.NewError("import relations", err)
		}
	}

	if graph != nil {
		if err := s.Edges.InsertRelationGraph(ctx, graph, true); err != nil {
			return helper.NewError("import relation graph", err)
		}
	}

	s.DB.Logger.Info("Imported relations", slog.Int("relations", vocab.Size()))
	return nil
}

// Load reads the vocabulary and the relation graph.
func (s *Store) Load() (*model.Vocabulary, *model.RelationGraph, error) {
	vocab, err := s.Relations.SelectVocabulary()
	if err != nil {
		return nil, nil, helper.NewError("load vocabulary", err)
	}

	graph, err := s.Edges.SelectRelationGraph(vocab.Size())
	if err != nil {
		return nil, nil, helper.NewError("load relation graph", err)
	}

	return vocab, graph, nil
}
