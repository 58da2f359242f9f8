package pipeline

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/siherrmann/carst/helper"
)

// TokenEmbedFunc returns up to maxTokens contextual token vectors for a
// relation description. All vectors have the same width.
type TokenEmbedFunc func(text string, maxTokens int) ([][]float32, error)

// EmbedBatchFunc embeds several texts at once, in order.
type EmbedBatchFunc func(texts []string) ([][]float32, error)

// Words splits a relation description into words. Relation names such as
// "/film/film/genre" or "_member_of_domain_usage" are split on their
// separators.
func Words(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || r == '_' || r == '/' || r == '.'
	})
}

// NewTokenEmbedder lays out a description as the embedding of the whole text
// at position 0 followed by the embeddings of its words.
func NewTokenEmbedder(embed EmbedBatchFunc) TokenEmbedFunc {
	return func(text string, maxTokens int) ([][]float32, error) {
		if maxTokens <= 0 {
			return nil, helper.NewError("embed tokens", fmt.Errorf("%w: max tokens must be positive", helper.ErrConfiguration))
		}

		inputs := append([]string{text}, Words(text)...)
		if len(inputs) > maxTokens {
			inputs = inputs[:maxTokens]
		}

		vectors, err := embed(inputs)
		if err != nil {
			return nil, helper.NewError("embed tokens", err)
		}
		if len(vectors) != len(inputs) {
			return nil, helper.NewError("embed tokens", fmt.Errorf("%w: %d embeddings for %d inputs", helper.ErrShape, len(vectors), len(inputs)))
		}
		return vectors, nil
	}
}
