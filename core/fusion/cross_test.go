package fusion

import (
	"context"
	"testing"

	"github.com/siherrmann/carst/core/nn"
	"github.com/siherrmann/carst/helper"
	"github.com/siherrmann/carst/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func testConfig() Config {
	return Config{
		Hidden:        8,
		StructureSize: 4,
		Cross: model.CrossConfig{
			NumAttentionHeads: 2,
			IntermediateSize:  16,
			TextLayers:        1,
			StructureLayers:   2,
			CrossLayers:       1,
		},
	}
}

func TestNewCrossModel(t *testing.T) {
	t.Run("Builds the configured depths", func(t *testing.T) {
		m, err := NewCrossModel(nn.NewInit(1), testConfig())
		require.NoError(t, err)

		assert.Len(t, m.TextLayers, 1)
		assert.Len(t, m.StructureLayers, 2)
		assert.Len(t, m.CrossLayers, 1)
	})

	t.Run("Hidden size must divide into heads", func(t *testing.T) {
		config := testConfig()
		config.Cross.NumAttentionHeads = 3

		_, err := NewCrossModel(nn.NewInit(1), config)
		assert.ErrorIs(t, err, helper.ErrConfiguration)
	})
}

func TestCrossModel_Fuse(t *testing.T) {
	in := nn.NewInit(2)
	m, err := NewCrossModel(in, testConfig())
	require.NoError(t, err)

	t.Run("Returns one hidden vector", func(t *testing.T) {
		fused, err := m.Fuse(in.Normal(5, 8, 1), []float64{1, 2, 3, 4}, nil)
		require.NoError(t, err)
		assert.Len(t, fused, 8)
	})

	t.Run("Structure changes the fused vector", func(t *testing.T) {
		text := in.Normal(3, 8, 1)
		a, err := m.Fuse(text, []float64{1, 0, 0, 0}, nil)
		require.NoError(t, err)
		b, err := m.Fuse(text, []float64{0, 0, 0, 5}, nil)
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("Description width mismatch is a shape error", func(t *testing.T) {
		_, err := m.Fuse(in.Normal(3, 6, 1), []float64{1, 2, 3, 4}, nil)
		assert.ErrorIs(t, err, helper.ErrShape)
	})

	t.Run("Structure width mismatch is a shape error", func(t *testing.T) {
		_, err := m.Fuse(in.Normal(3, 8, 1), []float64{1, 2}, nil)
		assert.ErrorIs(t, err, helper.ErrShape)
	})
}

func TestCrossModel_FuseAll(t *testing.T) {
	in := nn.NewInit(3)
	m, err := NewCrossModel(in, testConfig())
	require.NoError(t, err)

	texts := []*mat.Dense{in.Normal(4, 8, 1), in.Normal(4, 8, 1), in.Normal(4, 8, 1)}
	structure := in.Normal(3, 4, 1)

	t.Run("Parallel result matches sequential fusion", func(t *testing.T) {
		out, err := m.FuseAll(context.Background(), texts, structure, 3)
		require.NoError(t, err)

		for i := range texts {
			expected, err := m.Fuse(texts[i], structure.RawRowView(i), nil)
			require.NoError(t, err)
			assert.Equal(t, expected, out.RawRowView(i), "relation %d", i)
		}
	})

	t.Run("Count mismatch is a shape error", func(t *testing.T) {
		_, err := m.FuseAll(context.Background(), texts[:2], structure, 1)
		assert.ErrorIs(t, err, helper.ErrShape)
	})

	t.Run("Cancelled context stops fusion", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := m.FuseAll(ctx, texts, structure, 1)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
