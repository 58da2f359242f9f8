package carst

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"

	"github.com/siherrmann/carst/core/graph"
	"github.com/siherrmann/carst/core/pipeline"
	"github.com/siherrmann/carst/core/retrieval"
	"github.com/siherrmann/carst/core/scoring"
	"github.com/siherrmann/carst/database"
	"github.com/siherrmann/carst/helper"
	"github.com/siherrmann/carst/model"
	loadSql "github.com/siherrmann/carst/sql"
	"github.com/viterin/vek/vek32"
)

// Carst provides a unified interface to the scoring model and the optional
// relation store
type Carst struct {
	Model *scoring.Model
	Vocab *model.Vocabulary
	Graph *model.RelationGraph
	Store *database.Store // nil without a database

	// Set by UseTriples
	Triples   *graph.TripleGraph
	Assembler *graph.Assembler
	Engine    *retrieval.Engine

	// Logging
	log *slog.Logger
}

func newLogger() *slog.Logger {
	return helper.NewLogger(os.Stdout, slog.LevelInfo)
}

// NewCarst builds the model from an in-memory vocabulary and relation graph.
func NewCarst(ctx context.Context, config model.ModelConfig, vocab *model.Vocabulary, rsg *model.RelationGraph, embed pipeline.TokenEmbedFunc, opts ...scoring.Option) (*Carst, error) {
	logger := newLogger()
	return newCarst(ctx, logger, config, vocab, rsg, embed, nil, opts...)
}

// NewCarstFromDatabase loads the vocabulary and relation graph from Postgres.
// A zero VocabRelationSize is set to the size of the stored vocabulary.
func NewCarstFromDatabase(ctx context.Context, dbConfig *helper.DatabaseConfiguration, config model.ModelConfig, embed pipeline.TokenEmbedFunc, opts ...scoring.Option) (*Carst, error) {
	logger := newLogger()

	db := helper.NewDatabase("carst", dbConfig, logger)
	err := loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	store, err := database.NewStore(db, config.EmbeddingSize, false)
	if err != nil {
		return nil, helper.NewError("create store", err)
	}

	vocab, rsg, err := store.Load()
	if err != nil {
		return nil, helper.NewError("load store", err)
	}
	if config.VocabRelationSize == 0 {
		config.VocabRelationSize = vocab.Size()
	}

	return newCarst(ctx, logger, config, vocab, rsg, embed, store, opts...)
}

func newCarst(ctx context.Context, logger *slog.Logger, config model.ModelConfig, vocab *model.Vocabulary, rsg *model.RelationGraph, embed pipeline.TokenEmbedFunc, store *database.Store, opts ...scoring.Option) (*Carst, error) {
	m, err := scoring.NewModel(ctx, config, vocab, rsg, embed, logger, opts...)
	if err != nil {
		return nil, helper.NewError("create model", err)
	}

	return &Carst{
		Model: m,
		Vocab: vocab,
		Graph: rsg,
		Store: store,
		log:   logger,
	}, nil
}

// Close closes the database connection
func (c *Carst) Close() error {
	if c.Store != nil && c.Store.DB != nil && c.Store.DB.Instance != nil {
		return c.Store.DB.Close()
	}
	return nil
}

// Refresh recomputes the fused relation table.
func (c *Carst) Refresh(ctx context.Context) (*scoring.RelationTable, error) {
	return c.Model.Refresh(ctx)
}

// Score returns one score per triple of b, in input order.
func (c *Carst) Score(ctx context.Context, b model.Batch) ([]float64, error) {
	return c.Model.Score(ctx, b)
}

// Loss scores a training batch and returns the summed binary cross entropy.
// The first instance of every positive id is the positive triple; every
// following instance with the same id is a negative paired with it.
func (c *Carst) Loss(ctx context.Context, b model.TrainingBatch) (float64, error) {
	scores, err := c.Model.Score(ctx, b)
	if err != nil {
		return 0, helper.NewError("loss", err)
	}

	positive := map[int]float64{}
	var pos, neg []float64
	for i, id := range b.PositiveIDs {
		p, seen := positive[id]
		if !seen {
			positive[id] = scores[i]
			continue
		}
		pos = append(pos, p)
		neg = append(neg, scores[i])
	}
	if len(neg) == 0 {
		return 0, helper.NewError("loss", fmt.Errorf("%w: training batch has no negatives", helper.ErrShape))
	}

	return scoring.BCELoss(pos, neg)
}

// UseTriples sets the training triples used to assemble raw triples.
func (c *Carst) UseTriples(triples []graph.Triple) {
	config := c.Model.Config()
	c.Triples = graph.NewTripleGraph(triples)
	c.Assembler = graph.NewAssembler(c.Triples, c.Vocab, &config)
	c.Engine = retrieval.NewEngine(c.Model, c.Assembler, config.BatchSize)

	c.log.Info("Using training triples", slog.Int("triples", len(triples)), slog.Int("entities", len(c.Triples.Entities())))
}

// ScoreTriples scores raw triples against the training triples.
func (c *Carst) ScoreTriples(ctx context.Context, triples []graph.Triple) ([]float64, error) {
	if c.Engine == nil {
		return nil, helper.NewError("score triples", fmt.Errorf("%w: training triples not set, use UseTriples() first", helper.ErrConfiguration))
	}
	return c.Engine.ScoreTriples(ctx, triples)
}

// Evaluate ranks the first triple of every group against the rest.
func (c *Carst) Evaluate(ctx context.Context, groups [][]graph.Triple) (retrieval.Metrics, error) {
	if c.Engine == nil {
		return retrieval.Metrics{}, helper.NewError("evaluate", fmt.Errorf("%w: training triples not set, use UseTriples() first", helper.ErrConfiguration))
	}
	return c.Engine.Evaluate(ctx, groups)
}

// PersistRelationTable writes the current relation table into the relation
// embeddings of the store, refreshing it first if there is none.
func (c *Carst) PersistRelationTable(ctx context.Context) error {
	if c.Store == nil {
		return helper.NewError("persist relation table", fmt.Errorf("%w: no database", helper.ErrConfiguration))
	}

	table, err := c.table(ctx)
	if err != nil {
		return helper.NewError("persist relation table", err)
	}

	for id := 0; id < table.Size(); id++ {
		if err := ctx.Err(); err != nil {
			return helper.NewError("persist relation table", err)
		}
		if err := c.Store.Relations.UpdateRelationEmbedding(id, table.Float32Row(id)); err != nil {
			return helper.NewError("persist relation table", err)
		}
	}

	c.log.Info("Persisted relation table", slog.String("id", table.ID.String()), slog.Int("relations", table.Size()))
	return nil
}

// SimilarRelations returns the k relations closest to relationID by cosine
// similarity of their fused embeddings. With a store the persisted
// embeddings are searched, otherwise the current table.
func (c *Carst) SimilarRelations(ctx context.Context, relationID int, k int) ([]*model.RelationMatch, error) {
	table, err := c.table(ctx)
	if err != nil {
		return nil, helper.NewError("similar relations", err)
	}
	if relationID < 0 || relationID >= table.Size() {
		return nil, helper.NewError("similar relations", fmt.Errorf("%w: relation %d outside [0, %d)", helper.ErrShape, relationID, table.Size()))
	}

	query := table.Float32Row(relationID)
	if c.Store != nil {
		return c.Store.Relations.SelectRelationsBySimilarity(query, k, &relationID)
	}

	matches := make([]*model.RelationMatch, 0, table.Size()-1)
	for id := 0; id < table.Size(); id++ {
		if id == relationID {
			continue
		}
		text, _ := c.Vocab.Text(id)
		embedding := table.Float32Row(id)
		matches = append(matches, &model.RelationMatch{
			Relation:   model.Relation{ID: id, Text: text, Embedding: embedding},
			Similarity: cosine(query, embedding),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if k >= 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (c *Carst) table(ctx context.Context) (*scoring.RelationTable, error) {
	if table := c.Model.Table(); table != nil {
		return table, nil
	}
	return c.Model.Refresh(ctx)
}

func cosine(a, b []float32) float64 {
	norm := math.Sqrt(float64(vek32.Dot(a, a)) * float64(vek32.Dot(b, b)))
	if norm == 0 {
		return 0
	}
	return float64(vek32.Dot(a, b)) / norm
}
