package database

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/carst/helper"
	"github.com/siherrmann/carst/model"
	loadSql "github.com/siherrmann/carst/sql"
)

// RelationsDBHandlerFunctions defines the interface for Relations database operations.
type RelationsDBHandlerFunctions interface {
	InsertRelation(relation *model.Relation) error
	SelectRelation(id int) (*model.Relation, error)
	SelectAllRelations() ([]*model.Relation, error)
	SelectVocabulary() (*model.Vocabulary, error)
	UpdateRelationEmbedding(id int, embedding []float32) error
	SelectRelationsBySimilarity(embedding []float32, limit int, excludeID *int) ([]*model.RelationMatch, error)
	DeleteRelation(id int) error
}

// RelationsDBHandler handles relation-related database operations
type RelationsDBHandler struct {
	db *helper.Database
}

// NewRelationsDBHandler creates a new relations database handler.
// It loads the relation SQL functions and creates the table with an
// embedding column of embeddingDim. If force is true, it will reload the SQL
// functions even if they already exist.
func NewRelationsDBHandler(db *helper.Database, embeddingDim int, force bool) (*RelationsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}
	if embeddingDim <= 0 {
		return nil, helper.NewError("embedding dimension validation", fmt.Errorf("%w: embedding dimension must be positive", helper.ErrConfiguration))
	}

	relationsDbHandler := &RelationsDBHandler{
		db: db,
	}

	err := loadSql.LoadRelationsSql(relationsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load relations sql", err)
	}

	err = relationsDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized RelationsDBHandler")

	return relationsDbHandler, nil
}

// CreateTable creates the 'relations' table with its indexes if it does not exist.
func (h *RelationsDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_relations($1);`, embeddingDim)
	if err != nil {
		return helper.NewError("init relations", err)
	}

	h.db.Logger.Info("Checked/created table relations")

	return nil
}

// InsertRelation inserts a relation or replaces the text and metadata of the
// relation with the same id. A nil embedding keeps the stored one.
func (h *RelationsDBHandler) InsertRelation(relation *model.Relation) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_relation($1, $2, $3, $4)`,
		relation.ID,
		relation.Text,
		relation.Metadata,
		vectorParam(relation.Embedding),
	)

	err := scanRelation(row, relation)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectRelation retrieves a relation by id
func (h *RelationsDBHandler) SelectRelation(id int) (*model.Relation, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_relation($1)`,
		id,
	)

	relation := &model.Relation{}
	err := scanRelation(row, relation)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return relation, nil
}

// SelectAllRelations retrieves every relation ordered by id
func (h *RelationsDBHandler) SelectAllRelations() ([]*model.Relation, error) {
	rows, err := h.db.Instance.Query(`SELECT * FROM select_all_relations()`)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var relations []*model.Relation
	for rows.Next() {
		relation := &model.Relation{}
		err := scanRelation(rows, relation)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		relations = append(relations, relation)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return relations, nil
}

// SelectVocabulary builds the relation vocabulary from the stored relations.
// Ids must form the contiguous range [0, n).
func (h *RelationsDBHandler) SelectVocabulary() (*model.Vocabulary, error) {
	relations, err := h.SelectAllRelations()
	if err != nil {
		return nil, helper.NewError("select relations", err)
	}

	texts := make([]string, len(relations))
	for i, relation := range relations {
		if relation.ID != i {
			return nil, helper.NewError("build vocabulary", fmt.Errorf("%w: relation id %d missing", helper.ErrConfiguration, i))
		}
		texts[i] = relation.Text
	}

	return model.NewVocabulary(texts), nil
}

// UpdateRelationEmbedding replaces the embedding of a relation
func (h *RelationsDBHandler) UpdateRelationEmbedding(id int, embedding []float32) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM update_relation_embedding($1, $2)`,
		id,
		vectorParam(embedding),
	)

	relation := &model.Relation{}
	err := scanRelation(row, relation)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectRelationsBySimilarity returns the relations closest to embedding by
// cosine similarity. A non-nil excludeID is left out of the result.
func (h *RelationsDBHandler) SelectRelationsBySimilarity(embedding []float32, limit int, excludeID *int) ([]*model.RelationMatch, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_relations_by_similarity($1, $2, $3)`,
		pgvector.NewVector(embedding),
		limit,
		excludeID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var results []*model.RelationMatch
	for rows.Next() {
		match := &model.RelationMatch{}
		err := rows.Scan(
			&match.Relation.ID,
			&match.Relation.RID,
			&match.Relation.Text,
			&match.Relation.Metadata,
			pq.Array(&match.Relation.Embedding),
			&match.Relation.CreatedAt,
			&match.Similarity,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		results = append(results, match)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return results, nil
}

// DeleteRelation deletes a relation by id
func (h *RelationsDBHandler) DeleteRelation(id int) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_relation($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRelation(row rowScanner, relation *model.Relation) error {
	return row.Scan(
		&relation.ID,
		&relation.RID,
		&relation.Text,
		&relation.Metadata,
		pq.Array(&relation.Embedding),
		&relation.CreatedAt,
	)
}

// vectorParam passes nil for a missing embedding, since an empty vector does
// not fit a sized column.
func vectorParam(embedding []float32) any {
	if len(embedding) == 0 {
		return nil
	}
	return pgvector.NewVector(embedding)
}
