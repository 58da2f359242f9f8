package database

import (
	"context"
	"testing"

	"github.com/siherrmann/carst/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	database := initDB(t)

	store, err := NewStore(database, testEmbeddingDim, true)
	require.NoError(t, err, "Expected NewStore to not return an error")

	_, err = database.Instance.Exec(`DELETE FROM relations;`)
	require.NoError(t, err)

	vocab := model.NewVocabulary([]string{"[PAD]", "[CLS]", "similar_to", "part_of"})
	graph := &model.RelationGraph{NumRelations: 4, Edges: []model.RelationEdge{{Head: 2, Type: 5, Tail: 3}}}

	t.Run("Import then load", func(t *testing.T) {
		err := store.Import(context.Background(), vocab, graph)
		require.NoError(t, err)

		loadedVocab, loadedGraph, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, vocab.IDToText, loadedVocab.IDToText)
		assert.Equal(t, graph, loadedGraph)
	})

	t.Run("Import is repeatable", func(t *testing.T) {
		err := store.Import(context.Background(), vocab, graph)
		require.NoError(t, err)

		_, loadedGraph, err := store.Load()
		require.NoError(t, err)
		assert.Len(t, loadedGraph.Edges, 1, "Expected the graph to be replaced, not appended")
	})

	t.Run("Cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := store.Import(ctx, vocab, graph)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
