// Package rag defines the vector storage contract used by the PDF ingestion
// service: batch upsert of (id, vector, payload) triples and similarity
// search that collates matched payloads into chunk texts and their sources.
// Concrete implementations (Qdrant, in-memory) satisfy these interfaces so
// the pipeline and HTTP layers never depend on a specific backend.
package rag

import (
	"context"
)

// Defaults applied when a store is constructed with zero-valued settings.
const (
	// DefaultCollection is the collection name used when none is configured.
	DefaultCollection = "docs"

	// DefaultDimensions is the vector size of a new collection. It matches
	// text-embedding-3-large and gemini-embedding-001.
	DefaultDimensions = 3072

	// DefaultTopK is the number of neighbours returned when Search is
	// called with topK <= 0.
	DefaultTopK = 5
)

// Recognised payload keys.
const (
	// PayloadText holds the chunk's source text.
	PayloadText = "text"

	// PayloadSource identifies the document the chunk was cut from.
	PayloadSource = "source"
)

// Payload is the metadata stored alongside a vector. Values must be
// JSON-like: strings, numbers, booleans, nil, []any or map[string]any.
type Payload map[string]any

// SearchResult is the collated outcome of a similarity search.
type SearchResult struct {
	// Contexts holds the non-empty chunk texts in similarity-ranked order.
	Contexts []string `json:"contexts"`

	// Sources holds the distinct source identifiers of the matched chunks,
	// in order of first appearance. An empty string is included when a
	// matched chunk carried text but no source.
	Sources []string `json:"sources"`
}

// VectorStore persists and searches chunk embeddings.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Upsert writes one point per index i with identifier ids[i], vector
	// vectors[i] and payload payloads[i], in a single batch. Re-upserting an
	// id replaces its vector and payload. The three slices must be of equal
	// length and every vector must match the collection's dimensionality.
	Upsert(ctx context.Context, ids []string, vectors [][]float32, payloads []Payload) error

	// Search returns the texts and sources of the topK nearest neighbours to
	// query by cosine similarity.
	Search(ctx context.Context, query []float32, topK int) (*SearchResult, error)

	// Delete removes points by their identifiers. Unknown ids are ignored.
	Delete(ctx context.Context, ids []string) error

	// Close releases any resources held by the store.
	Close() error
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever fetches the contexts relevant to a natural-language query.
// Implementations must be safe to call from multiple goroutines.
type Retriever interface {
	// Retrieve embeds query and returns the collated topK search result.
	Retrieve(ctx context.Context, query string, topK int) (*SearchResult, error)
}
