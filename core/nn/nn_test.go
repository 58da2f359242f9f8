package nn

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/siherrmann/carst/helper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func testLayerConfig() LayerConfig {
	return LayerConfig{
		Hidden:           8,
		Heads:            2,
		Intermediate:     16,
		HiddenDropout:    0.1,
		AttentionDropout: 0.1,
		Activation:       ReLU,
	}
}

func TestInit(t *testing.T) {
	t.Run("Same seed gives same parameters", func(t *testing.T) {
		a := NewInit(7).Normal(3, 4, InitStd)
		b := NewInit(7).Normal(3, 4, InitStd)
		assert.True(t, mat.Equal(a, b))
	})

	t.Run("Different seeds differ", func(t *testing.T) {
		a := NewInit(7).Normal(3, 4, InitStd)
		b := NewInit(8).Normal(3, 4, InitStd)
		assert.False(t, mat.Equal(a, b))
	})
}

func TestLinear(t *testing.T) {
	t.Run("Computes xW + b", func(t *testing.T) {
		l := &Linear{
			Weight: mat.NewDense(2, 3, []float64{1, 0, 2, 0, 1, 3}),
			Bias:   []float64{1, 1, 1},
		}
		out := l.Forward(mat.NewDense(1, 2, []float64{2, 3}))

		assert.Equal(t, []float64{3, 4, 14}, out.RawRowView(0))
	})

	t.Run("Empty input gives empty output", func(t *testing.T) {
		l := NewLinear(NewInit(1), 2, 3)
		assert.True(t, l.Forward(&mat.Dense{}).IsEmpty())
	})
}

func TestLayerNorm(t *testing.T) {
	norm := NewLayerNorm(4)
	out := norm.Forward(mat.NewDense(2, 4, []float64{1, 2, 3, 4, 10, 10, 10, 10}))

	row := out.RawRowView(0)
	assert.InDelta(t, 0, floats.Sum(row), 1e-9, "Normalised row should have zero mean")
	assert.InDelta(t, 4, floats.Dot(row, row), 1e-6, "Normalised row should have unit variance")
	assert.Equal(t, []float64{0, 0, 0, 0}, out.RawRowView(1), "Constant row normalises to zero")
}

func TestActivations(t *testing.T) {
	assert.Equal(t, 0.0, ReLU(-2))
	assert.Equal(t, 2.0, ReLU(2))
	assert.InDelta(t, 0.8413, GELU(1), 1e-4)
	assert.InDelta(t, 0, GELU(0), 1e-12)
}

func TestDropout(t *testing.T) {
	t.Run("Nil dropout is a no-op", func(t *testing.T) {
		var d *Dropout
		m := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
		d.Apply(m, 0.5)
		assert.Equal(t, []float64{1, 2}, m.RawRowView(0))
		assert.False(t, d.Active())
	})

	t.Run("Active dropout zeroes or rescales", func(t *testing.T) {
		d := NewDropout(rand.New(rand.NewPCG(1, 2)))
		m := mat.NewDense(1, 100, Constant(100, 1))
		d.Apply(m, 0.5)

		for _, v := range m.RawRowView(0) {
			assert.True(t, v == 0 || v == 2, "value %v", v)
		}
	})
}

func TestSoftmax(t *testing.T) {
	m := mat.NewDense(1, 3, []float64{0, 0, -1e6})
	Softmax(m)
	assert.InDeltaSlice(t, []float64{0.5, 0.5, 0}, m.RawRowView(0), 1e-12)
}

func TestMaskBias(t *testing.T) {
	bias := MaskBias([]int{1, 1, 0}, 10000)

	assert.Equal(t, []float64{0, 0, -10000}, bias.RawRowView(0))
	assert.Equal(t, []float64{-10000, -10000, -10000}, bias.RawRowView(2))
}

func TestEncoder(t *testing.T) {
	in := NewInit(3)
	encoder, err := NewEncoder(in, testLayerConfig(), 2)
	require.NoError(t, err)

	t.Run("Keeps the batch shape", func(t *testing.T) {
		batch := []*mat.Dense{in.Normal(3, 8, 1), in.Normal(3, 8, 1)}
		out, err := encoder.Forward(batch, nil, nil)
		require.NoError(t, err)

		require.Len(t, out, 2)
		r, c := out[1].Dims()
		assert.Equal(t, 3, r)
		assert.Equal(t, 8, c)
	})

	t.Run("Deterministic without dropout", func(t *testing.T) {
		batch := []*mat.Dense{in.Normal(4, 8, 1)}
		a, err := encoder.Forward(batch, nil, nil)
		require.NoError(t, err)
		b, err := encoder.Forward(batch, nil, nil)
		require.NoError(t, err)
		assert.True(t, mat.Equal(a[0], b[0]))
	})

	t.Run("Masked positions do not change valid outputs", func(t *testing.T) {
		x := in.Normal(4, 8, 1)
		y := mat.DenseCopyOf(x)
		for j := 0; j < 8; j++ {
			y.Set(2, j, 100)
			y.Set(3, j, -100)
		}
		bias := MaskBias([]int{1, 1, 0, 0}, 10000)

		a, err := encoder.Forward([]*mat.Dense{x}, []*mat.Dense{bias}, nil)
		require.NoError(t, err)
		b, err := encoder.Forward([]*mat.Dense{y}, []*mat.Dense{bias}, nil)
		require.NoError(t, err)

		assert.InDeltaSlice(t, a[0].RawRowView(0), b[0].RawRowView(0), 1e-9)
		assert.InDeltaSlice(t, a[0].RawRowView(1), b[0].RawRowView(1), 1e-9)
	})

	t.Run("Ragged batch is a shape error", func(t *testing.T) {
		_, err := encoder.Forward([]*mat.Dense{in.Normal(3, 8, 1), in.Normal(2, 8, 1)}, nil, nil)
		assert.ErrorIs(t, err, helper.ErrShape)
	})

	t.Run("Wrong width is a shape error", func(t *testing.T) {
		_, err := encoder.Forward([]*mat.Dense{in.Normal(3, 6, 1)}, nil, nil)
		assert.ErrorIs(t, err, helper.ErrShape)
	})

	t.Run("Wrong bias shape is a shape error", func(t *testing.T) {
		_, err := encoder.Forward([]*mat.Dense{in.Normal(3, 8, 1)}, []*mat.Dense{MaskBias([]int{1, 1}, 1)}, nil)
		assert.ErrorIs(t, err, helper.ErrShape)
	})

	t.Run("Outputs are finite", func(t *testing.T) {
		out, err := encoder.Forward([]*mat.Dense{in.Normal(5, 8, 1)}, nil, nil)
		require.NoError(t, err)
		for _, v := range out[0].RawMatrix().Data {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		}
	})
}

func TestNewEncoder_InvalidConfig(t *testing.T) {
	config := testLayerConfig()
	config.Heads = 3

	_, err := NewEncoder(NewInit(1), config, 1)
	assert.ErrorIs(t, err, helper.ErrConfiguration)
}

func TestAttentionBlock_Cross(t *testing.T) {
	in := NewInit(5)
	block := NewAttentionBlock(in, testLayerConfig())

	x := in.Normal(3, 8, 1)
	context := in.Normal(1, 8, 1)
	out := block.Forward(x, context, nil, nil)

	r, c := out.Dims()
	assert.Equal(t, 3, r, "Cross attention keeps the query length")
	assert.Equal(t, 8, c)
}
