package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/carst/core/batch"
	"github.com/siherrmann/carst/core/fusion"
	"github.com/siherrmann/carst/core/nn"
	"github.com/siherrmann/carst/core/pipeline"
	"github.com/siherrmann/carst/core/structure"
	"github.com/siherrmann/carst/helper"
	"github.com/siherrmann/carst/model"
)

// Option configures a Model.
type Option func(*Model)

// WithSampler replaces the path sampler seeded from the model seed.
func WithSampler(sampler *batch.PathSampler) Option {
	return func(m *Model) {
		m.sampler = sampler
	}
}

// WithDropoutSource sets the randomness used for dropout in training batches.
func WithDropoutSource(rng *rand.Rand) Option {
	return func(m *Model) {
		m.dropout = rng
	}
}

// Model scores triples against a fused relation table.
type Model struct {
	config model.ModelConfig
	logger *slog.Logger

	Source  *RelationSource
	Entity  *EntityEncoder
	Path    *PathEncoder
	Overall *OverallEncoder
	Head    *ScoreHead

	mu      sync.Mutex
	sampler *batch.PathSampler
	dropout *rand.Rand
	table   *RelationTable
}

// NewModel validates the config and initialises every parameter from the
// config seed. The description bank and the structure encoder are only built
// for ablation modes that use them.
func NewModel(ctx context.Context, config model.ModelConfig, vocab *model.Vocabulary, graph *model.RelationGraph, embed pipeline.TokenEmbedFunc, logger *slog.Logger, opts ...Option) (*Model, error) {
	if err := config.Validate(); err != nil {
		return nil, helper.NewError("new model", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	in := nn.NewInit(config.Seed)
	size := config.VocabRelationSize
	emb := config.EmbeddingSize

	source, err := newRelationSource(ctx, in, &config, vocab, graph, embed)
	if err != nil {
		return nil, helper.NewError("new model", err)
	}

	layer := nn.LayerConfig{
		Hidden:           emb,
		Heads:            config.NumAttentionHeads,
		Intermediate:     config.IntermediateSize,
		HiddenDropout:    config.HiddenDropoutProb,
		AttentionDropout: config.PathAttentionDropoutProb,
		Activation:       nn.ReLU,
	}
	pathEncoder, err := nn.NewEncoder(in, layer, config.PathTransformerLayers)
	if err != nil {
		return nil, helper.NewError("new model", err)
	}

	layer.AttentionDropout = config.OverallAttentionDropoutProb
	entityEncoder, err := nn.NewEncoder(in, layer, config.PathTransformerLayers)
	if err != nil {
		return nil, helper.NewError("new model", err)
	}
	overallEncoder, err := nn.NewEncoder(in, layer, config.OverallTransformerLayers)
	if err != nil {
		return nil, helper.NewError("new model", err)
	}

	m := &Model{
		config: config,
		logger: logger,
		Source: source,
		Entity: &EntityEncoder{
			Norm:        nn.NewLayerNorm(emb),
			DropoutProb: config.HiddenDropoutProb,
			Types:       nn.NewEmbedding(in, 3, emb),
			Encoder:     entityEncoder,
		},
		Path: &PathEncoder{
			Positions:   nn.NewEmbedding(in, config.PathSeqLen(), emb),
			Norm:        nn.NewLayerNorm(emb),
			DropoutProb: config.HiddenDropoutProb,
			Encoder:     pathEncoder,
		},
		Overall: &OverallEncoder{
			Norm:        nn.NewLayerNorm(emb),
			DropoutProb: config.HiddenDropoutProb,
			Encoder:     overallEncoder,
			Placeholder: config.SpecialTokens.Mask,
		},
		Head: &ScoreHead{
			Norm:          nn.NewLayerNorm(emb),
			DropoutProb:   config.HiddenDropoutProb,
			Transform:     nn.NewLinear(in, emb, emb),
			TransformNorm: nn.NewLayerNorm(emb),
			Output:        nn.NewLinear(in, emb, 1),
			RelationBias:  nn.Constant(size, 0),
		},
		sampler: batch.NewSeededPathSampler(config.PathSlots(), config.Seed),
		dropout: rand.New(rand.NewPCG(config.Seed, config.Seed^0x5851f42d4c957f2d)),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.logger.Info("model ready", slog.String("ablation", config.Ablation.String()), slog.Int("relations", size), slog.Int("slots", config.OverallSlots()))
	return m, nil
}

func newRelationSource(ctx context.Context, in *nn.Init, config *model.ModelConfig, vocab *model.Vocabulary, graph *model.RelationGraph, embed pipeline.TokenEmbedFunc) (*RelationSource, error) {
	size := config.VocabRelationSize
	emb := config.EmbeddingSize
	mode := config.Ablation
	source := &RelationSource{Mode: mode, Workers: config.Workers}

	if mode == model.AblationPlain {
		source.Plain = nn.NewEmbedding(in, size, emb)
		return source, nil
	}

	if mode.UsesText() {
		bank, err := pipeline.NewTextBank(ctx, vocab, size, embed, config.MaxTextLen, config.Workers)
		if err != nil {
			return nil, err
		}
		source.Bank = bank
		source.TextProjection = nn.NewLinear(in, bank.Width, emb)
	}

	if mode.UsesStructure() {
		inputSize := config.StructureInputSize
		if inputSize == 0 {
			inputSize = size
		}
		rgcn, err := structure.NewRGCN(in, structure.Config{
			NumRelations: size,
			InputSize:    inputSize,
			HiddenSize:   config.StructureHiddenSize,
			OutputSize:   config.StructureOutputSize,
			EdgeTypes:    config.StructureEdgeTypes,
		}, graph)
		if err != nil {
			return nil, err
		}
		source.Structure = rgcn
		if mode != model.AblationFull {
			source.StructureProjection = nn.NewLinear(in, config.StructureOutputSize, emb)
		}
	}

	switch mode {
	case model.AblationFull:
		cross, err := fusion.NewCrossModel(in, fusion.Config{
			Hidden:        source.Bank.Width,
			StructureSize: config.StructureOutputSize,
			Cross:         config.Cross,
		})
		if err != nil {
			return nil, err
		}
		source.Cross = cross
	case model.AblationConcat:
		source.ConcatProjection = nn.NewLinear(in, 2*emb, emb)
	}
	return source, nil
}

// Config returns the validated configuration.
func (m *Model) Config() model.ModelConfig {
	return m.config
}

// Table returns the current relation table snapshot, nil before the first
// refresh.
func (m *Model) Table() *RelationTable {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.table
}

// Refresh recomputes the relation table from the description bank and the
// relation graph and makes it the current snapshot. Dropout is never applied.
func (m *Model) Refresh(ctx context.Context) (*RelationTable, error) {
	start := time.Now()
	embeddings, err := m.Source.Build(ctx)
	if err != nil {
		return nil, helper.NewError("refresh relation table", err)
	}
	if rows, cols := embeddings.Dims(); rows != m.config.VocabRelationSize || cols != m.config.EmbeddingSize {
		return nil, helper.NewError("refresh relation table", fmt.Errorf("%w: table is %dx%d, want %dx%d", helper.ErrShape, rows, cols, m.config.VocabRelationSize, m.config.EmbeddingSize))
	}

	table := &RelationTable{
		ID:         uuid.New(),
		Mode:       m.config.Ablation,
		Embeddings: embeddings,
		CreatedAt:  time.Now(),
	}

	m.mu.Lock()
	m.table = table
	m.mu.Unlock()

	m.logger.Info("relation table refreshed", slog.String("id", table.ID.String()), slog.String("ablation", table.Mode.String()), slog.Duration("took", time.Since(start)))
	return table, nil
}

// Score returns one score per triple in input order. The table is refreshed
// first if there is none yet. Dropout is only active for training batches.
func (m *Model) Score(ctx context.Context, b model.Batch) ([]float64, error) {
	table := m.Table()
	if table == nil {
		var err error
		table, err = m.Refresh(ctx)
		if err != nil {
			return nil, helper.NewError("score", err)
		}
	}

	m.mu.Lock()
	plan, err := batch.Prepare(b, &m.config, m.sampler)
	var d *nn.Dropout
	if err == nil && plan.Training {
		d = nn.NewDropout(rand.New(rand.NewPCG(m.dropout.Uint64(), m.dropout.Uint64())))
	}
	m.mu.Unlock()
	if err != nil {
		return nil, helper.NewError("score", err)
	}

	return m.scorePlan(table, plan, d)
}

func (m *Model) scorePlan(table *RelationTable, plan *batch.Plan, d *nn.Dropout) ([]float64, error) {
	entities, err := m.Entity.Encode(table, plan.Entities, d)
	if err != nil {
		return nil, helper.NewError("score", err)
	}

	paths, err := m.Path.Encode(table, plan.Paths, d)
	if err != nil {
		return nil, helper.NewError("score", err)
	}

	readout, err := m.Overall.Encode(table, plan, entities, paths, d)
	if err != nil {
		return nil, helper.NewError("score", err)
	}

	m.logger.Debug("scored batch", slog.Int("triples", plan.Size()), slog.Int("paths", plan.Paths.NumPaths()), slog.Bool("training", plan.Training))
	return m.Head.Score(readout, plan.Relations, d), nil
}
