package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
)

//go:embed init.sql
var initSQL string

//go:embed relations.sql
var relationsSQL string

//go:embed relation_edges.sql
var relationEdgesSQL string

// Function lists for verification
var RelationsFunctions = []string{
	"init_relations",
	"insert_relation",
	"select_relation",
	"select_all_relations",
	"update_relation_embedding",
	"select_relations_by_similarity",
	"delete_relation",
}

var RelationEdgesFunctions = []string{
	"init_relation_edges",
	"insert_relation_edge",
	"select_relation_edges_from",
	"select_relation_graph",
	"delete_relation_edges",
}

// Init intializes db extensions
func Init(db *sql.DB) error {
	_, err := db.Exec(initSQL)
	if err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}

	slog.Info("Database extensions initialized successfully")
	return nil
}

// LoadRelationsSql loads relation-related SQL functions
func LoadRelationsSql(db *sql.DB, force bool) error {
	return loadFunctions(db, "relations", relationsSQL, RelationsFunctions, force)
}

// LoadRelationEdgesSql loads relation-graph-related SQL functions
func LoadRelationEdgesSql(db *sql.DB, force bool) error {
	return loadFunctions(db, "relation edges", relationEdgesSQL, RelationEdgesFunctions, force)
}

// LoadAllSql loads all SQL functions
func LoadAllSql(db *sql.DB, force bool) error {
	if err := LoadRelationsSql(db, force); err != nil {
		return err
	}

	if err := LoadRelationEdgesSql(db, force); err != nil {
		return err
	}

	return nil
}

// loadFunctions executes script unless all functions exist already (or force
// is set) and verifies they exist afterwards.
func loadFunctions(db *sql.DB, name string, script string, functions []string, force bool) error {
	if !force {
		exist, err := checkFunctions(db, functions)
		if err != nil {
			return fmt.Errorf("error checking existing %s functions: %w", name, err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(script)
	if err != nil {
		return fmt.Errorf("error executing %s SQL: %w", name, err)
	}

	exist, err := checkFunctions(db, functions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	slog.Info("SQL functions loaded successfully", slog.String("group", name))
	return nil
}

// checkFunctions verifies that all required functions exist in the database
func checkFunctions(db *sql.DB, sqlFunctions []string) (bool, error) {
	var allExist bool
	for _, f := range sqlFunctions {
		err := db.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);`,
			f,
		).Scan(&allExist)
		if err != nil {
			return false, fmt.Errorf("error checking existence of function %s: %w", f, err)
		}
		if !allExist {
			slog.Debug("SQL function does not exist", slog.String("function", f))
			break
		}
	}
	return allExist, nil
}
