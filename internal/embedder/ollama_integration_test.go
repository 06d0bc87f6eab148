//go:build integration

package embedder

import (
	"context"
	"os"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test_Ollama_Integration performs a real HTTP call to a locally running
// Ollama instance.
//
// Prerequisites:
//
//	ollama pull nomic-embed-text
//	ollama serve
//
// Run with:
//
//	go test -tags=integration -run Test_Ollama_Integration ./internal/embedder/
//
// Set OLLAMA_HOST if Ollama is not on localhost:11434.
func Test_Ollama_Integration(t *testing.T) {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = defaultOllamaHost
	}
	model := os.Getenv("EMBEDDING_MODEL")
	if model == "" {
		model = defaultOllamaModel
	}

	emb := NewOllamaEmbedder(&OllamaConfig{Host: host, Model: model})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	texts := []string{
		"The invoice total is due within thirty days of receipt.",
		"Section 4 describes the cooling requirements of the rack.",
	}

	embeddings, err := emb.Embed(ctx, texts)
	require.NoError(t, err, "ensure Ollama is running and %q is pulled: ollama pull %s", model, model)
	require.Len(t, embeddings, len(texts))
	for i, vec := range embeddings {
		assert.NotEmpty(t, vec, "embedding[%d]", i)
	}
	assert.False(t, slices.Equal(embeddings[0], embeddings[1]), "distinct texts produced identical vectors")

	t.Logf("model=%s dim=%d (set EMBEDDING_DIMENSIONS=%d for the collection)", model, len(embeddings[0]), len(embeddings[0]))
}
