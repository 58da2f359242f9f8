package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/siherrmann/carst/helper"
)

// ChangeIndexType changes the relation embedding index between HNSW and IVFFlat
// indexType: "hnsw" or "ivfflat"
// params: optional parameters for index creation
//   - For HNSW: "m" (int, default 16), "ef_construction" (int, default 64)
//   - For IVFFlat: "lists" (int, default 100)
func (h *RelationsDBHandler) ChangeIndexType(ctx context.Context, indexType string, params map[string]interface{}) error {
	createIndexSQL, err := indexStatement(indexType, params)
	if err != nil {
		return helper.NewError("change index type", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	tx, err := h.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return helper.NewError("begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `DROP INDEX IF EXISTS idx_relations_embedding;`)
	if err != nil {
		return helper.NewError("drop index", err)
	}

	_, err = tx.ExecContext(ctx, createIndexSQL)
	if err != nil {
		return helper.NewError("create index", err)
	}

	err = tx.Commit()
	if err != nil {
		return helper.NewError("commit", err)
	}

	h.db.Logger.Info("Created vector index", slog.String("type", indexType), slog.Any("params", params))

	return nil
}

func indexStatement(indexType string, params map[string]interface{}) (string, error) {
	switch indexType {
	case "hnsw":
		m := 16
		efConstruction := 64

		if mVal, ok := params["m"].(int); ok {
			m = mVal
		}
		if efVal, ok := params["ef_construction"].(int); ok {
			efConstruction = efVal
		}

		return fmt.Sprintf(
			`CREATE INDEX idx_relations_embedding ON relations USING hnsw (embedding vector_cosine_ops) WITH (m = %d, ef_construction = %d);`,
			m, efConstruction,
		), nil

	case "ivfflat":
		lists := 100
		if listsVal, ok := params["lists"].(int); ok {
			lists = listsVal
		}

		return fmt.Sprintf(
			`CREATE INDEX idx_relations_embedding ON relations USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d);`,
			lists,
		), nil

	default:
		return "", fmt.Errorf("%w: unsupported index type: %s (use 'hnsw' or 'ivfflat')", helper.ErrConfiguration, indexType)
	}
}
