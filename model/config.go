package model

import (
	"fmt"
	"os"

	"github.com/siherrmann/carst/helper"
	"gopkg.in/yaml.v3"
)

// SpecialTokens are the relation ids with a fixed role in every sequence.
type SpecialTokens struct {
	Pad     int `json:"pad" yaml:"pad"`           // padding, also the masked empty slot
	Cls     int `json:"cls" yaml:"cls"`           // valid empty slot
	Mask    int `json:"mask" yaml:"mask"`         // overall placeholder
	HeadCls int `json:"head_cls" yaml:"head_cls"` // first token of a head neighbourhood
	TailCls int `json:"tail_cls" yaml:"tail_cls"` // first token of a tail neighbourhood
}

// CrossConfig configures the cross-modal fusion encoder. The hidden size is
// the width of the text encoder output.
type CrossConfig struct {
	NumAttentionHeads    int     `json:"num_attention_heads" yaml:"num_attention_heads"`
	IntermediateSize     int     `json:"intermediate_size" yaml:"intermediate_size"`
	TextLayers           int     `json:"text_layers" yaml:"text_layers"`
	StructureLayers      int     `json:"structure_layers" yaml:"structure_layers"`
	CrossLayers          int     `json:"cross_layers" yaml:"cross_layers"`
	HiddenDropoutProb    float64 `json:"hidden_dropout_prob" yaml:"hidden_dropout_prob"`
	AttentionDropoutProb float64 `json:"attention_probs_dropout_prob" yaml:"attention_probs_dropout_prob"`
}

// ModelConfig holds every option of the scoring model.
type ModelConfig struct {
	PathTransformerLayers       int     `json:"path_transformer_layers" yaml:"path_transformer_layers"`
	OverallTransformerLayers    int     `json:"overall_transformer_layers" yaml:"overall_transformer_layers"`
	NumAttentionHeads           int     `json:"num_attention_heads" yaml:"num_attention_heads"`
	EmbeddingSize               int     `json:"embedding_size" yaml:"embedding_size"`
	IntermediateSize            int     `json:"intermediate_size" yaml:"intermediate_size"`
	HiddenDropoutProb           float64 `json:"hidden_dropout_prob" yaml:"hidden_dropout_prob"`
	PathAttentionDropoutProb    float64 `json:"path_attention_dropout_prob" yaml:"path_attention_dropout_prob"`
	OverallAttentionDropoutProb float64 `json:"overall_attention_dropout_prob" yaml:"overall_attention_dropout_prob"`

	VocabRelationSize int `json:"vocab_relation_size" yaml:"vocab_relation_size"`
	MaxPathLen        int `json:"max_path_len" yaml:"max_path_len"`
	MaxNumPath        int `json:"max_num_path" yaml:"max_num_path"`
	// SamplePath caps the paths per triple. Negative means no sampling,
	// MaxNumPath is used as the slot budget.
	SamplePath    int          `json:"sample_path" yaml:"sample_path"`
	Ablation      AblationMode `json:"ablation" yaml:"ablation"`
	MaxRelContext int          `json:"max_rel_context" yaml:"max_rel_context"`
	EncodeEntPair bool         `json:"encode_ent_pair" yaml:"encode_ent_pair"`
	BatchSize     int          `json:"batch_size" yaml:"batch_size"`
	// Margin is kept for configuration compatibility, scoring never reads it.
	Margin    float64 `json:"margin" yaml:"margin"`
	SoftLabel float64 `json:"soft_label" yaml:"soft_label"`

	MaxTextLen          int `json:"max_text_len" yaml:"max_text_len"`
	StructureInputSize  int `json:"structure_input_size" yaml:"structure_input_size"` // 0 means vocab size
	StructureHiddenSize int `json:"structure_hidden_size" yaml:"structure_hidden_size"`
	StructureOutputSize int `json:"structure_output_size" yaml:"structure_output_size"`
	StructureEdgeTypes  int `json:"structure_edge_types" yaml:"structure_edge_types"`

	Cross         CrossConfig   `json:"cross" yaml:"cross"`
	SpecialTokens SpecialTokens `json:"special_tokens" yaml:"special_tokens"`

	Workers int    `json:"workers" yaml:"workers"`
	Seed    uint64 `json:"seed" yaml:"seed"`

	RSGPath   string `json:"rsg_path,omitempty" yaml:"rsg_path,omitempty"`
	VocabPath string `json:"vocab_path,omitempty" yaml:"vocab_path,omitempty"`
}

// DefaultModelConfig returns the configuration used for the WN18RR/FB237 runs.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		PathTransformerLayers:       2,
		OverallTransformerLayers:    2,
		NumAttentionHeads:           4,
		EmbeddingSize:               128,
		IntermediateSize:            512,
		HiddenDropoutProb:           0.1,
		PathAttentionDropoutProb:    0.1,
		OverallAttentionDropoutProb: 0.1,
		MaxPathLen:                  3,
		MaxNumPath:                  10,
		SamplePath:                  -1,
		Ablation:                    AblationFull,
		MaxRelContext:               64,
		EncodeEntPair:               false,
		BatchSize:                   512,
		Margin:                      1.0,
		MaxTextLen:                  32,
		StructureHiddenSize:         512,
		StructureOutputSize:         256,
		StructureEdgeTypes:          32,
		Cross: CrossConfig{
			NumAttentionHeads: 12,
			IntermediateSize:  1536,
			TextLayers:        1,
			StructureLayers:   5,
			CrossLayers:       1,
		},
		SpecialTokens: SpecialTokens{
			Pad:     0,
			Cls:     1,
			Mask:    2,
			HeadCls: 3,
			TailCls: 5,
		},
		Workers: 4,
		Seed:    2024,
	}
}

// LoadModelConfig reads a YAML file on top of the defaults.
func LoadModelConfig(path string) (ModelConfig, error) {
	config := DefaultModelConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, helper.NewError("read model config", err)
	}

	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return config, helper.NewError("decode model config", fmt.Errorf("%w: %v", helper.ErrConfiguration, err))
	}

	return config, config.Validate()
}

// PathSlots is the number of path slots of the overall sequence.
func (c *ModelConfig) PathSlots() int {
	if c.SamplePath >= 0 {
		return c.SamplePath
	}
	return c.MaxNumPath
}

// OverallSlots is the length of the overall sequence: placeholder, relation,
// head and tail (or one entity pair) followed by the path slots.
func (c *ModelConfig) OverallSlots() int {
	if c.EncodeEntPair {
		return 3 + c.PathSlots()
	}
	return 4 + c.PathSlots()
}

// PathSeqLen is the padded length of a single relational path.
func (c *ModelConfig) PathSeqLen() int {
	return c.MaxPathLen + 1
}

// Validate checks the configuration invariants.
func (c *ModelConfig) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return helper.NewError("validate model config", fmt.Errorf("%w: "+format, append([]interface{}{helper.ErrConfiguration}, args...)...))
	}

	if !c.Ablation.Valid() {
		return invalid("unknown ablation mode %d", int(c.Ablation))
	}
	if c.EmbeddingSize <= 0 || c.IntermediateSize <= 0 {
		return invalid("embedding_size and intermediate_size must be positive")
	}
	if c.NumAttentionHeads <= 0 || c.EmbeddingSize%c.NumAttentionHeads != 0 {
		return invalid("embedding_size %d is not a multiple of num_attention_heads %d", c.EmbeddingSize, c.NumAttentionHeads)
	}
	if c.PathTransformerLayers < 0 || c.OverallTransformerLayers < 0 {
		return invalid("layer counts must not be negative")
	}
	if c.VocabRelationSize <= 0 {
		return invalid("vocab_relation_size must be positive")
	}
	if c.MaxPathLen <= 0 {
		return invalid("max_path_len must be positive")
	}
	if c.MaxNumPath < 0 {
		return invalid("max_num_path must not be negative")
	}
	if c.MaxRelContext <= 0 {
		return invalid("max_rel_context must be positive")
	}
	for _, p := range []float64{c.HiddenDropoutProb, c.PathAttentionDropoutProb, c.OverallAttentionDropoutProb, c.Cross.HiddenDropoutProb, c.Cross.AttentionDropoutProb} {
		if p < 0 || p >= 1 {
			return invalid("dropout probability %v out of [0, 1)", p)
		}
	}

	special := c.SpecialTokens
	for _, id := range []int{special.Pad, special.Cls, special.Mask, special.HeadCls, special.TailCls} {
		if id < 0 || id >= c.VocabRelationSize {
			return invalid("special token id %d outside vocabulary of size %d", id, c.VocabRelationSize)
		}
	}

	if c.Ablation.UsesStructure() {
		if c.StructureHiddenSize <= 0 || c.StructureOutputSize <= 0 || c.StructureEdgeTypes <= 0 || c.StructureInputSize < 0 {
			return invalid("structure encoder sizes must be positive")
		}
	}
	if c.Ablation.UsesText() && c.MaxTextLen <= 0 {
		return invalid("max_text_len must be positive")
	}
	if c.Ablation == AblationFull {
		if c.Cross.NumAttentionHeads <= 0 || c.Cross.IntermediateSize <= 0 {
			return invalid("cross encoder heads and intermediate size must be positive")
		}
		if c.Cross.TextLayers < 0 || c.Cross.StructureLayers < 0 || c.Cross.CrossLayers < 0 {
			return invalid("cross encoder layer counts must not be negative")
		}
	}

	return nil
}
