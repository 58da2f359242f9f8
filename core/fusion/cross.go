package fusion

import (
	"context"
	"fmt"

	"github.com/siherrmann/carst/core/nn"
	"github.com/siherrmann/carst/helper"
	"github.com/siherrmann/carst/model"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Config sizes the cross-modal encoder. Hidden is the width of the text
// token embeddings.
type Config struct {
	Hidden        int
	StructureSize int
	Cross         model.CrossConfig
}

func (c Config) layerConfig() nn.LayerConfig {
	return nn.LayerConfig{
		Hidden:           c.Hidden,
		Heads:            c.Cross.NumAttentionHeads,
		Intermediate:     c.Cross.IntermediateSize,
		HiddenDropout:    c.Cross.HiddenDropoutProb,
		AttentionDropout: c.Cross.AttentionDropoutProb,
		Activation:       nn.GELU,
	}
}

// CrossLayer lets text and structure attend to each other, then refines each
// modality with self attention and a feed-forward block.
type CrossLayer struct {
	// Cross is shared by both directions.
	Cross         *nn.AttentionBlock
	TextSelf      *nn.AttentionBlock
	StructureSelf *nn.AttentionBlock
	TextFFN       *nn.FeedForward
	StructureFFN  *nn.FeedForward
}

// NewCrossLayer initialises one cross layer.
func NewCrossLayer(in *nn.Init, config nn.LayerConfig) *CrossLayer {
	return &CrossLayer{
		Cross:         nn.NewAttentionBlock(in, config),
		TextSelf:      nn.NewAttentionBlock(in, config),
		StructureSelf: nn.NewAttentionBlock(in, config),
		TextFFN:       nn.NewFeedForward(in, config),
		StructureFFN:  nn.NewFeedForward(in, config),
	}
}

// Forward runs the layer on one relation.
func (l *CrossLayer) Forward(text, structure *mat.Dense, d *nn.Dropout) (*mat.Dense, *mat.Dense) {
	textAtt := l.Cross.Forward(text, structure, nil, d)
	structureAtt := l.Cross.Forward(structure, text, nil, d)

	textAtt = l.TextSelf.Forward(textAtt, textAtt, nil, d)
	structureAtt = l.StructureSelf.Forward(structureAtt, structureAtt, nil, d)

	return l.TextFFN.Forward(textAtt, d), l.StructureFFN.Forward(structureAtt, d)
}

// CrossModel fuses the description tokens of a relation with its structure
// embedding and pools the result into one vector of width Hidden.
type CrossModel struct {
	StructureProjection *nn.Linear
	StructureNorm       *nn.LayerNorm
	DropoutProb         float64

	TextLayers      []*nn.EncoderLayer
	StructureLayers []*nn.EncoderLayer
	CrossLayers     []*CrossLayer

	Pooler *nn.Linear
	hidden int
}

// NewCrossModel initialises the encoder with the configured depths.
func NewCrossModel(in *nn.Init, config Config) (*CrossModel, error) {
	layerConfig := config.layerConfig()
	if err := layerConfig.Validate(); err != nil {
		return nil, helper.NewError("new cross model", err)
	}
	if config.StructureSize <= 0 {
		return nil, helper.NewError("new cross model", fmt.Errorf("%w: structure size must be positive", helper.ErrConfiguration))
	}
	if config.Cross.TextLayers < 0 || config.Cross.StructureLayers < 0 || config.Cross.CrossLayers < 0 {
		return nil, helper.NewError("new cross model", fmt.Errorf("%w: negative layer count", helper.ErrConfiguration))
	}

	m := &CrossModel{
		StructureProjection: nn.NewLinear(in, config.StructureSize, config.Hidden),
		StructureNorm:       nn.NewLayerNorm(config.Hidden),
		DropoutProb:         config.Cross.HiddenDropoutProb,
		TextLayers:          make([]*nn.EncoderLayer, config.Cross.TextLayers),
		StructureLayers:     make([]*nn.EncoderLayer, config.Cross.StructureLayers),
		CrossLayers:         make([]*CrossLayer, config.Cross.CrossLayers),
		Pooler:              nn.NewLinear(in, config.Hidden, config.Hidden),
		hidden:              config.Hidden,
	}
	for i := range m.TextLayers {
		m.TextLayers[i] = nn.NewEncoderLayer(in, layerConfig)
	}
	for i := range m.StructureLayers {
		m.StructureLayers[i] = nn.NewEncoderLayer(in, layerConfig)
	}
	for i := range m.CrossLayers {
		m.CrossLayers[i] = NewCrossLayer(in, layerConfig)
	}
	return m, nil
}

// Fuse returns the pooled fused vector of one relation given its [L, Hidden]
// description tokens and its structure embedding.
func (m *CrossModel) Fuse(text *mat.Dense, structure []float64, d *nn.Dropout) ([]float64, error) {
	if text == nil || text.IsEmpty() {
		return nil, helper.NewError("fuse relation", fmt.Errorf("%w: empty description sequence", helper.ErrShape))
	}
	if _, c := text.Dims(); c != m.hidden {
		return nil, helper.NewError("fuse relation", fmt.Errorf("%w: description width %d, want %d", helper.ErrShape, c, m.hidden))
	}
	if len(structure) != m.StructureProjection.InDim() {
		return nil, helper.NewError("fuse relation", fmt.Errorf("%w: structure width %d, want %d", helper.ErrShape, len(structure), m.StructureProjection.InDim()))
	}

	s := m.StructureNorm.Forward(m.StructureProjection.Forward(mat.NewDense(1, len(structure), structure)))
	d.Apply(s, m.DropoutProb)

	t := text
	for _, layer := range m.TextLayers {
		t = layer.Forward(t, nil, d)
	}
	for _, layer := range m.StructureLayers {
		s = layer.Forward(s, nil, d)
	}
	for _, layer := range m.CrossLayers {
		t, s = layer.Forward(t, s, d)
	}

	pooled := m.Pooler.Forward(t.Slice(0, 1, 0, m.hidden))
	nn.Apply(pooled, nn.ReLU)
	return pooled.RawRowView(0), nil
}

// FuseAll fuses every relation, spreading relations over workers
// goroutines. Dropout is never applied. The result has one row per relation.
func (m *CrossModel) FuseAll(ctx context.Context, texts []*mat.Dense, structure *mat.Dense, workers int) (*mat.Dense, error) {
	rows, _ := structure.Dims()
	if len(texts) != rows {
		return nil, helper.NewError("fuse relations", fmt.Errorf("%w: %d description sequences for %d structure rows", helper.ErrShape, len(texts), rows))
	}
	if workers <= 0 {
		workers = 1
	}

	out := mat.NewDense(rows, m.hidden, nil)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range texts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fused, err := m.Fuse(texts[i], structure.RawRowView(i), nil)
			if err != nil {
				return helper.NewError(fmt.Sprintf("relation %d", i), err)
			}
			copy(out.RawRowView(i), fused)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, helper.NewError("fuse relations", err)
	}
	return out, nil
}
