package pipeline

import (
	"fmt"
	"hash/fnv"
	"math"

	"github.com/knights-analytics/hugot"
	"github.com/siherrmann/carst/helper"
	"github.com/viterin/vek/vek32"
)

// DefaultModelName is the sentence transformer used for relation descriptions.
const DefaultModelName = "sentence-transformers/all-MiniLM-L6-v2"

// DefaultEmbedder creates a batch embedder using a real sentence transformer model
// Uses the all-MiniLM-L6-v2 model which produces 384-dimensional embeddings
func DefaultEmbedder() (EmbedBatchFunc, error) {
	modelPath, err := helper.PrepareModel(DefaultModelName, "")
	if err != nil {
		return nil, err
	}

	// Initialize hugot session with Go backend
	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "relation-description-pipeline",
	}
	sentencePipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create sentence pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create sentence pipeline: %w", err)
	}

	return func(texts []string) ([][]float32, error) {
		result, err := sentencePipeline.RunPipeline(texts)
		if err != nil {
			return nil, fmt.Errorf("failed to generate embeddings: %w", err)
		}

		if len(result.Embeddings) != len(texts) {
			return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Embeddings))
		}
		return result.Embeddings, nil
	}, nil
}

// DefaultTokenEmbedder is the token embedder backed by DefaultEmbedder.
func DefaultTokenEmbedder() (TokenEmbedFunc, error) {
	embed, err := DefaultEmbedder()
	if err != nil {
		return nil, err
	}
	return NewTokenEmbedder(embed), nil
}

// PCG LCG constants (Knuth MMIX)
const (
	pcgMult = 6364136223846793005
	pcgInc  = 1442695040888963407
)

// HashEmbed maps text to a deterministic unit vector of width dim.
func HashEmbed(text string, dim int) []float32 {
	vec := make([]float32, dim)

	h := fnv.New64a()
	h.Write([]byte(text))
	state := h.Sum64()

	for i := range dim {
		state = state*pcgMult + pcgInc
		vec[i] = (float32(state>>32)/float32(math.MaxUint32))*2 - 1
	}

	norm := math.Sqrt(float64(vek32.Dot(vec, vec)))
	if norm > 0 {
		vek32.MulNumber_Inplace(vec, float32(1/norm))
	}
	return vec
}

// HashEmbedder embeds without a model. Equal texts get equal vectors.
func HashEmbedder(dim int) EmbedBatchFunc {
	return func(texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = HashEmbed(text, dim)
		}
		return out, nil
	}
}

// HashTokenEmbedder is the offline counterpart of DefaultTokenEmbedder.
func HashTokenEmbedder(dim int) TokenEmbedFunc {
	return NewTokenEmbedder(HashEmbedder(dim))
}
