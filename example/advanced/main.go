package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/siherrmann/carst"
	"github.com/siherrmann/carst/core/graph"
	"github.com/siherrmann/carst/core/pipeline"
	"github.com/siherrmann/carst/database"
	"github.com/siherrmann/carst/helper"
	"github.com/siherrmann/carst/model"
	loadSql "github.com/siherrmann/carst/sql"
)

const trainTriples = `oak	similar_to	elm
elm	similar_to	beech
elm	part_of	forest
oak	part_of	forest
beech	part_of	forest
pine	part_of	forest
forest	part_of	landscape
meadow	part_of	landscape
clover	part_of	meadow
grass	similar_to	clover
grass	part_of	meadow`

var reserved = []string{"[PAD]", "[CLS]", "[MASK]", "inv_[MASK]", "[UNK]", "inv_[CLS]"}

func main() {
	ctx := context.Background()

	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	triples, err := graph.ParseTriples(strings.NewReader(trainTriples))
	if err != nil {
		log.Fatalf("Failed to parse triples: %v", err)
	}
	triplesGraph := graph.NewTripleGraph(triples)

	// Write and reload the vocabulary the way a preprocessed dataset ships it
	dir, err := os.MkdirTemp("", "carst-advanced")
	if err != nil {
		log.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	vocabPath := filepath.Join(dir, "vocab_rel.txt")
	if err := os.WriteFile(vocabPath, []byte(strings.Join(vocabularyTexts(triples), "\n")+"\n"), 0o644); err != nil {
		log.Fatalf("Failed to write vocabulary: %v", err)
	}
	vocab, err := model.LoadVocabulary(vocabPath)
	if err != nil {
		log.Fatalf("Failed to load vocabulary: %v", err)
	}

	fmt.Println("=== Building Relation Structure Graph ===")
	rsg, err := graph.BuildRelationStructureGraph(ctx, triplesGraph, vocab, 4)
	if err != nil {
		log.Fatalf("Failed to build relation structure graph: %v", err)
	}
	rsgPath := filepath.Join(dir, "RSG.txt")
	if err := graph.WriteRelationGraph(rsgPath, rsg); err != nil {
		log.Fatalf("Failed to write relation structure graph: %v", err)
	}
	rsg, err = graph.LoadRelationGraph(rsgPath, vocab.Size())
	if err != nil {
		log.Fatalf("Failed to reload relation structure graph: %v", err)
	}
	fmt.Printf("%d relations, %d edges written to %s\n", vocab.Size(), len(rsg.Edges), rsgPath)

	config := model.DefaultModelConfig()
	config.EmbeddingSize = 32
	config.NumAttentionHeads = 4
	config.IntermediateSize = 64
	config.MaxPathLen = 3
	config.MaxNumPath = 4
	config.MaxTextLen = 8
	config.StructureHiddenSize = 32
	config.StructureOutputSize = 32
	config.Cross.NumAttentionHeads = 2
	config.Cross.IntermediateSize = 64
	config.Cross.StructureLayers = 2

	// Import vocabulary and graph into Postgres
	fmt.Println("\n=== Importing Into Postgres ===")
	db := helper.NewDatabase("carst-import", dbConfig, helper.NewLogger(os.Stdout, slog.LevelInfo))
	if err := loadSql.Init(db.Instance); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	store, err := database.NewStore(db, config.EmbeddingSize, true)
	if err != nil {
		log.Fatalf("Failed to create store: %v", err)
	}
	if err := store.Import(ctx, vocab, rsg); err != nil {
		log.Fatalf("Failed to import: %v", err)
	}
	db.Close()

	// The vocabulary size is taken from the database
	c, err := carst.NewCarstFromDatabase(ctx, dbConfig, config, pipeline.HashTokenEmbedder(24))
	if err != nil {
		log.Fatalf("Failed to create carst: %v", err)
	}
	defer c.Close()

	fmt.Println("\n=== Persisting Relation Table ===")
	if err := c.PersistRelationTable(ctx); err != nil {
		log.Fatalf("Failed to persist relation table: %v", err)
	}

	partOfID, _ := vocab.ID("part_of")
	matches, err := c.SimilarRelations(ctx, partOfID, 3)
	if err != nil {
		log.Fatalf("Failed to search similar relations: %v", err)
	}
	fmt.Println("Relations closest to part_of:")
	for _, m := range matches {
		fmt.Printf("  %s (similarity %.4f)\n", m.Relation.Text, m.Similarity)
	}

	// Rank every training triple against corrupted tails
	fmt.Println("\n=== Link Prediction ===")
	c.UseTriples(triples)
	rng := rand.New(rand.NewPCG(config.Seed, 1))
	groups := make([][]graph.Triple, 0, len(triples))
	for _, t := range triples {
		groups = append(groups, append([]graph.Triple{t}, triplesGraph.CorruptTails(t, 5, rng)...))
	}

	metrics, err := c.Evaluate(ctx, groups)
	if err != nil {
		log.Fatalf("Failed to evaluate: %v", err)
	}
	fmt.Printf("Triples: %d\n", metrics.Count)
	fmt.Printf("MRR:     %.4f\n", metrics.MRR)
	fmt.Printf("Hits@1:  %.4f\n", metrics.Hits1)
	fmt.Printf("Hits@3:  %.4f\n", metrics.Hits3)
	fmt.Printf("Hits@10: %.4f\n", metrics.Hits10)

	fmt.Println("\nAdvanced example completed successfully!")
}

// vocabularyTexts lists the reserved tokens followed by every relation and
// its inverse in first-seen order.
func vocabularyTexts(triples []graph.Triple) []string {
	texts := append([]string{}, reserved...)
	seen := map[string]bool{}
	var relations []string
	for _, t := range triples {
		if !seen[t.Relation] {
			seen[t.Relation] = true
			relations = append(relations, t.Relation)
		}
	}
	texts = append(texts, relations...)
	for _, r := range relations {
		texts = append(texts, graph.Inverse(r))
	}
	return texts
}
