package pipeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viterin/vek/vek32"
)

func TestDefaultEmbedder(t *testing.T) {
	// Note: DefaultEmbedder uses hugot which requires downloading models
	// These tests may take longer on first run

	t.Run("Generate embeddings for texts", func(t *testing.T) {
		if testing.Short() {
			t.Skip("Skipping DefaultEmbedder test in short mode (requires model download)")
		}

		embedder, err := DefaultEmbedder()
		require.NoError(t, err)

		embeddings, err := embedder([]string{"hypernym", "member of domain region"})
		require.NoError(t, err)
		require.Len(t, embeddings, 2)
		assert.Equal(t, 384, len(embeddings[0]), "all-MiniLM-L6-v2 produces 384-dimensional embeddings")
	})

	t.Run("Token embedder puts the whole description first", func(t *testing.T) {
		if testing.Short() {
			t.Skip("Skipping DefaultEmbedder test in short mode (requires model download)")
		}

		embedder, err := DefaultTokenEmbedder()
		require.NoError(t, err)

		tokens, err := embedder("/film/film/genre", 8)
		require.NoError(t, err)
		assert.Len(t, tokens, 4, "Whole text plus three words")
	})
}

func TestHashEmbed(t *testing.T) {
	t.Run("Same text produces same embedding", func(t *testing.T) {
		assert.Equal(t, HashEmbed("part_of", 16), HashEmbed("part_of", 16))
	})

	t.Run("Different texts produce different embeddings", func(t *testing.T) {
		assert.NotEqual(t, HashEmbed("part_of", 16), HashEmbed("similar_to", 16))
	})

	t.Run("Embeddings are unit vectors", func(t *testing.T) {
		v := HashEmbed("hypernym", 32)
		assert.InDelta(t, 1.0, math.Sqrt(float64(vek32.Dot(v, v))), 1e-5)
	})
}

func TestWords(t *testing.T) {
	assert.Equal(t, []string{"film", "film", "genre"}, Words("/film/film/genre"))
	assert.Equal(t, []string{"member", "of", "domain", "usage"}, Words("_member_of_domain_usage"))
	assert.Equal(t, []string{"similar", "to"}, Words("similar to"))
	assert.Empty(t, Words(""))
}

func TestNewTokenEmbedder(t *testing.T) {
	embed := HashTokenEmbedder(8)

	t.Run("Whole text then words", func(t *testing.T) {
		tokens, err := embed("similar_to", 10)
		require.NoError(t, err)

		require.Len(t, tokens, 3)
		assert.Equal(t, HashEmbed("similar_to", 8), tokens[0])
		assert.Equal(t, HashEmbed("similar", 8), tokens[1])
		assert.Equal(t, HashEmbed("to", 8), tokens[2])
	})

	t.Run("Truncates to max tokens", func(t *testing.T) {
		tokens, err := embed("a b c d e", 2)
		require.NoError(t, err)
		assert.Len(t, tokens, 2)
	})

	t.Run("Special tokens embed as one token", func(t *testing.T) {
		tokens, err := embed("[MASK]", 4)
		require.NoError(t, err)
		assert.Len(t, tokens, 2)
	})

	t.Run("Max tokens must be positive", func(t *testing.T) {
		_, err := embed("a", 0)
		assert.Error(t, err)
	})
}
