package main

import (
	"context"
	"fmt"
	"log"

	"github.com/siherrmann/carst"
	"github.com/siherrmann/carst/core/graph"
	"github.com/siherrmann/carst/core/pipeline"
	"github.com/siherrmann/carst/model"
)

func main() {
	ctx := context.Background()

	// Two relations and their inverses after the reserved tokens
	vocab := model.NewVocabulary([]string{
		"[PAD]", "[CLS]", "[MASK]", "inv_[MASK]", "[UNK]", "inv_[CLS]",
		"similar_to", "part_of", "inv_similar_to", "inv_part_of",
	})

	triples := []graph.Triple{
		{Head: "oak", Relation: "similar_to", Tail: "elm"},
		{Head: "elm", Relation: "part_of", Tail: "forest"},
		{Head: "oak", Relation: "part_of", Tail: "forest"},
		{Head: "pine", Relation: "part_of", Tail: "forest"},
	}
	triplesGraph := graph.NewTripleGraph(triples)

	rsg, err := graph.BuildRelationStructureGraph(ctx, triplesGraph, vocab, 2)
	if err != nil {
		log.Fatalf("Failed to build relation structure graph: %v", err)
	}
	fmt.Printf("Relation structure graph has %d edges\n", len(rsg.Edges))

	// Small model with a hashed embedder so the example runs offline
	config := model.DefaultModelConfig()
	config.VocabRelationSize = vocab.Size()
	config.EmbeddingSize = 32
	config.NumAttentionHeads = 4
	config.IntermediateSize = 64
	config.MaxPathLen = 2
	config.MaxNumPath = 3
	config.MaxTextLen = 8
	config.StructureHiddenSize = 16
	config.StructureOutputSize = 16
	config.StructureEdgeTypes = 16
	config.Cross.NumAttentionHeads = 2
	config.Cross.IntermediateSize = 32
	config.Cross.StructureLayers = 2

	c, err := carst.NewCarst(ctx, config, vocab, rsg, pipeline.HashTokenEmbedder(24))
	if err != nil {
		log.Fatalf("Failed to create carst: %v", err)
	}
	defer c.Close()

	table, err := c.Refresh(ctx)
	if err != nil {
		log.Fatalf("Failed to refresh relation table: %v", err)
	}
	fmt.Printf("Relation table: %d rows of width %d\n", table.Size(), table.Dim())

	// Score candidate tails for (oak, similar_to, ?)
	c.UseTriples(triples)
	ranked, err := c.Engine.RankTails(ctx, "oak", "similar_to", []string{"elm", "forest", "pine"})
	if err != nil {
		log.Fatalf("Failed to rank tails: %v", err)
	}

	fmt.Println("\nRanked tails for (oak, similar_to, ?):")
	for _, r := range ranked {
		fmt.Printf("%d. %s (score %.4f)\n", r.Rank, r.Triple.Tail, r.Score)
	}

	similarToID, _ := vocab.ID("similar_to")
	matches, err := c.SimilarRelations(ctx, similarToID, 3)
	if err != nil {
		log.Fatalf("Failed to find similar relations: %v", err)
	}

	fmt.Println("\nRelations closest to similar_to:")
	for _, m := range matches {
		fmt.Printf("%s (similarity %.4f)\n", m.Relation.Text, m.Similarity)
	}

	fmt.Println("\nBasic example completed successfully!")
}
