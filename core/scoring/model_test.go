package scoring

import (
	"context"
	"io"
	"math"
	"sync/atomic"
	"testing"

	"github.com/siherrmann/carst/core/batch"
	"github.com/siherrmann/carst/core/pipeline"
	"github.com/siherrmann/carst/helper"
	"github.com/siherrmann/carst/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

const (
	similarTo = 6
	partOf    = 7
)

func testVocabulary() *model.Vocabulary {
	return model.NewVocabulary([]string{"[PAD]", "[CLS]", "[MASK]", "inv_[MASK]", "[UNK]", "inv_[CLS]", "similar_to", "part_of"})
}

func testGraph() *model.RelationGraph {
	return &model.RelationGraph{NumRelations: 8, Edges: []model.RelationEdge{{Head: similarTo, Type: 5, Tail: partOf}}}
}

func testConfig(mode model.AblationMode) model.ModelConfig {
	config := model.DefaultModelConfig()
	config.VocabRelationSize = 8
	config.EmbeddingSize = 16
	config.NumAttentionHeads = 2
	config.IntermediateSize = 32
	config.PathTransformerLayers = 1
	config.OverallTransformerLayers = 2
	config.MaxPathLen = 2
	config.MaxNumPath = 3
	config.MaxRelContext = 4
	config.MaxTextLen = 6
	config.StructureHiddenSize = 8
	config.StructureOutputSize = 8
	config.StructureEdgeTypes = 8
	config.Cross.NumAttentionHeads = 2
	config.Cross.IntermediateSize = 16
	config.Cross.StructureLayers = 2
	config.Ablation = mode
	config.Seed = 11
	return config
}

func newTestModel(t *testing.T, config model.ModelConfig, embed pipeline.TokenEmbedFunc) *Model {
	if embed == nil {
		embed = pipeline.HashTokenEmbedder(12)
	}
	m, err := NewModel(context.Background(), config, testVocabulary(), testGraph(), embed, helper.NewLogger(io.Discard, 0))
	require.NoError(t, err)
	return m
}

// scenarioBatch is the triple (e0, part_of, e1) where both entities have the
// neighbourhood [similar_to] and one path [similar_to] connects them.
func scenarioBatch() model.InferenceBatch {
	return model.InferenceBatch{Instances: []model.TripleInstance{{
		Relation:         partOf,
		HeadNeighborhood: []int{similarTo},
		TailNeighborhood: []int{similarTo},
		Paths:            []model.Path{{Relations: []int{similarTo}}},
		PathCount:        1,
	}}}
}

var allModes = []model.AblationMode{model.AblationFull, model.AblationText, model.AblationStructure, model.AblationConcat, model.AblationPlain}

func assertFinite(t *testing.T, scores []float64) {
	for _, s := range scores {
		assert.False(t, math.IsNaN(s) || math.IsInf(s, 0), "score %v should be finite", s)
	}
}

func TestNewModel(t *testing.T) {
	t.Run("Unknown ablation mode is a configuration error", func(t *testing.T) {
		_, err := NewModel(context.Background(), testConfig(model.AblationMode(7)), testVocabulary(), testGraph(), pipeline.HashTokenEmbedder(12), nil)
		assert.ErrorIs(t, err, helper.ErrConfiguration)
	})

	t.Run("Vocabulary must cover every relation", func(t *testing.T) {
		small := model.NewVocabulary([]string{"[PAD]", "[CLS]"})
		_, err := NewModel(context.Background(), testConfig(model.AblationText), small, testGraph(), pipeline.HashTokenEmbedder(12), nil)
		assert.ErrorIs(t, err, helper.ErrConfiguration)
	})

	t.Run("Malformed graph is a configuration error", func(t *testing.T) {
		graph := &model.RelationGraph{NumRelations: 8, Edges: []model.RelationEdge{{Head: 0, Type: 1, Tail: 99}}}
		_, err := NewModel(context.Background(), testConfig(model.AblationStructure), testVocabulary(), graph, pipeline.HashTokenEmbedder(12), nil)
		assert.ErrorIs(t, err, helper.ErrConfiguration)
	})

	t.Run("Only the encoders of the mode are built", func(t *testing.T) {
		text := newTestModel(t, testConfig(model.AblationText), nil)
		assert.NotNil(t, text.Source.Bank)
		assert.Nil(t, text.Source.Structure)

		structure := newTestModel(t, testConfig(model.AblationStructure), nil)
		assert.Nil(t, structure.Source.Bank)
		assert.NotNil(t, structure.Source.Structure)

		full := newTestModel(t, testConfig(model.AblationFull), nil)
		assert.NotNil(t, full.Source.Cross)
	})
}

func TestModel_Refresh(t *testing.T) {
	for _, mode := range allModes {
		t.Run("Table has one row per relation in mode "+mode.String(), func(t *testing.T) {
			m := newTestModel(t, testConfig(mode), nil)

			first, err := m.Refresh(context.Background())
			require.NoError(t, err)
			second, err := m.Refresh(context.Background())
			require.NoError(t, err)

			assert.Equal(t, 8, first.Size())
			assert.Equal(t, 16, first.Dim())
			assert.Equal(t, mode, first.Mode)
			assert.True(t, mat.Equal(first.Embeddings, second.Embeddings), "Refreshing twice must give the same table")
			assert.NotEqual(t, first.ID, second.ID, "Every refresh is a new snapshot")
			assert.Same(t, second, m.Table())
		})
	}

	t.Run("Same seed gives the same table", func(t *testing.T) {
		a, err := newTestModel(t, testConfig(model.AblationFull), nil).Refresh(context.Background())
		require.NoError(t, err)
		b, err := newTestModel(t, testConfig(model.AblationFull), nil).Refresh(context.Background())
		require.NoError(t, err)
		assert.True(t, mat.Equal(a.Embeddings, b.Embeddings))
	})

	t.Run("Float32 rows match the table", func(t *testing.T) {
		table, err := newTestModel(t, testConfig(model.AblationPlain), nil).Refresh(context.Background())
		require.NoError(t, err)

		row := table.Float32Row(partOf)
		assert.Len(t, row, 16)
		assert.InDelta(t, table.Row(partOf)[3], float64(row[3]), 1e-6)
	})
}

func TestModel_Score(t *testing.T) {
	t.Run("Two relation scenario gives one stable finite score", func(t *testing.T) {
		m := newTestModel(t, testConfig(model.AblationFull), nil)

		first, err := m.Score(context.Background(), scenarioBatch())
		require.NoError(t, err)
		second, err := m.Score(context.Background(), scenarioBatch())
		require.NoError(t, err)

		require.Len(t, first, 1)
		assertFinite(t, first)
		assert.Equal(t, first, second, "Scores without dropout must be stable")
	})

	t.Run("Zero path triples keep the slot count", func(t *testing.T) {
		m := newTestModel(t, testConfig(model.AblationFull), nil)
		table, err := m.Refresh(context.Background())
		require.NoError(t, err)

		b := model.InferenceBatch{Instances: []model.TripleInstance{{Relation: similarTo}}}
		plan, err := batch.Prepare(b, &m.config, m.sampler)
		require.NoError(t, err)

		entities, err := m.Entity.Encode(table, plan.Entities, nil)
		require.NoError(t, err)
		paths, err := m.Path.Encode(table, plan.Paths, nil)
		require.NoError(t, err)
		assert.True(t, paths.IsEmpty(), "No paths skip the path transformer")

		inputs, err := m.Overall.Assemble(table, plan, entities, paths)
		require.NoError(t, err)
		r, _ := inputs[0].Dims()
		assert.Equal(t, 7, r, "placeholder, relation, head, tail and three path slots")
		assert.Equal(t, table.Row(0), inputs[0].RawRowView(4), "Empty path slots use the masked row")

		scores, err := m.Score(context.Background(), b)
		require.NoError(t, err)
		assertFinite(t, scores)
	})

	t.Run("Ablation mode changes content but not slot count", func(t *testing.T) {
		var reference []float64
		for _, mode := range allModes {
			m := newTestModel(t, testConfig(mode), nil)
			table, err := m.Refresh(context.Background())
			require.NoError(t, err)

			plan, err := batch.Prepare(scenarioBatch(), &m.config, m.sampler)
			require.NoError(t, err)
			entities, err := m.Entity.Encode(table, plan.Entities, nil)
			require.NoError(t, err)
			paths, err := m.Path.Encode(table, plan.Paths, nil)
			require.NoError(t, err)
			inputs, err := m.Overall.Assemble(table, plan, entities, paths)
			require.NoError(t, err)

			r, c := inputs[0].Dims()
			assert.Equal(t, 7, r, mode.String())
			assert.Equal(t, 16, c, mode.String())
			if reference != nil {
				assert.NotEqual(t, reference, inputs[0].RawRowView(1), "Relation slot content should depend on %s", mode)
			}
			reference = append([]float64(nil), inputs[0].RawRowView(1)...)
		}
	})

	t.Run("Plain mode without paths never touches text or structure", func(t *testing.T) {
		var calls atomic.Int32
		counting := func(text string, maxTokens int) ([][]float32, error) {
			calls.Add(1)
			return pipeline.HashTokenEmbedder(12)(text, maxTokens)
		}

		m := newTestModel(t, testConfig(model.AblationPlain), counting)
		scores, err := m.Score(context.Background(), model.InferenceBatch{Instances: []model.TripleInstance{
			{Relation: partOf, HeadNeighborhood: []int{similarTo}},
		}})
		require.NoError(t, err)

		assertFinite(t, scores)
		assert.Zero(t, calls.Load(), "Text encoder must not run")
		assert.Nil(t, m.Source.Bank)
		assert.Nil(t, m.Source.Structure)
		assert.Nil(t, m.Source.Cross)
	})

	t.Run("Sampled batches score with the capped slot count", func(t *testing.T) {
		config := testConfig(model.AblationText)
		config.SamplePath = 2
		m := newTestModel(t, config, nil)

		many := make([]model.Path, 6)
		for i := range many {
			many[i] = model.Path{Relations: []int{similarTo, partOf}}
		}
		b := model.TrainingBatch{
			PositiveIDs: []int{0, 0},
			Instances: []model.TripleInstance{
				{Relation: partOf, Paths: many, PathCount: 6},
				{Relation: similarTo, Paths: many[:1], PathCount: 1},
			},
		}

		scores, err := m.Score(context.Background(), b)
		require.NoError(t, err)
		require.Len(t, scores, 2)
		assertFinite(t, scores)
	})

	t.Run("Pair mode scores", func(t *testing.T) {
		config := testConfig(model.AblationConcat)
		config.EncodeEntPair = true
		m := newTestModel(t, config, nil)

		scores, err := m.Score(context.Background(), scenarioBatch())
		require.NoError(t, err)
		assertFinite(t, scores)
	})

	t.Run("Scores come back in input order", func(t *testing.T) {
		m := newTestModel(t, testConfig(model.AblationStructure), nil)
		one := scenarioBatch().Instances[0]
		other := model.TripleInstance{Relation: similarTo, TailNeighborhood: []int{partOf, partOf}}

		forward, err := m.Score(context.Background(), model.InferenceBatch{Instances: []model.TripleInstance{one, other}})
		require.NoError(t, err)
		backward, err := m.Score(context.Background(), model.InferenceBatch{Instances: []model.TripleInstance{other, one}})
		require.NoError(t, err)

		assert.InDelta(t, forward[0], backward[1], 1e-9)
		assert.InDelta(t, forward[1], backward[0], 1e-9)
	})

	t.Run("Contract errors are shape errors", func(t *testing.T) {
		m := newTestModel(t, testConfig(model.AblationPlain), nil)
		b := model.InferenceBatch{Instances: []model.TripleInstance{{Relation: partOf, Paths: []model.Path{{Relations: []int{1, 2, 3, 4}}}, PathCount: 1}}}

		_, err := m.Score(context.Background(), b)
		assert.ErrorIs(t, err, helper.ErrShape)
	})
}

func TestEntityEncoder_PaddingInvariance(t *testing.T) {
	m := newTestModel(t, testConfig(model.AblationPlain), nil)
	table, err := m.Refresh(context.Background())
	require.NoError(t, err)
	special := m.config.SpecialTokens

	alone := batch.SeparateEntities(
		batch.NewRagged([][]int{{similarTo}}, 0),
		batch.NewRagged([][]int{{partOf}}, 0),
		special.HeadCls, special.TailCls, special.Pad)
	padded := batch.SeparateEntities(
		batch.NewRagged([][]int{{similarTo}, {similarTo, partOf, similarTo, partOf}}, 0),
		batch.NewRagged([][]int{{partOf}, {}}, 0),
		special.HeadCls, special.TailCls, special.Pad)
	require.Equal(t, 2, alone.SeqLen())
	require.Equal(t, 5, padded.SeqLen())

	a, err := m.Entity.Encode(table, alone, nil)
	require.NoError(t, err)
	b, err := m.Entity.Encode(table, padded, nil)
	require.NoError(t, err)

	assert.InDeltaSlice(t, a.RawRowView(0), b.RawRowView(0), 1e-9, "Head encoding must not depend on padding")
	assert.InDeltaSlice(t, a.RawRowView(1), b.RawRowView(2), 1e-9, "Tail encoding must not depend on padding")
}

func TestBCELoss(t *testing.T) {
	t.Run("Zero logits cost log 2 each", func(t *testing.T) {
		loss, err := BCELoss([]float64{0}, []float64{0})
		require.NoError(t, err)
		assert.InDelta(t, 2*math.Ln2, loss, 1e-12)
	})

	t.Run("Confident correct scores cost almost nothing", func(t *testing.T) {
		loss, err := BCELoss([]float64{50, 40}, []float64{-50, -40})
		require.NoError(t, err)
		assert.InDelta(t, 0, loss, 1e-12)
	})

	t.Run("Large wrong scores do not overflow", func(t *testing.T) {
		loss, err := BCELoss([]float64{-1000}, []float64{1000})
		require.NoError(t, err)
		assert.InDelta(t, 2000, loss, 1e-9)
	})

	t.Run("Unpaired scores are shape errors", func(t *testing.T) {
		_, err := BCELoss([]float64{1, 2}, []float64{1})
		assert.ErrorIs(t, err, helper.ErrShape)
	})
}
