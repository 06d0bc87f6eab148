package rag

import (
	"errors"
	"fmt"
)

// Validation errors returned by every VectorStore implementation.
var (
	// ErrLengthMismatch is returned by Upsert when ids, vectors and payloads
	// differ in length.
	ErrLengthMismatch = errors.New("rag: ids, vectors and payloads length mismatch")

	// ErrDimensionMismatch is returned when a vector's length differs from
	// the collection's configured dimensionality.
	ErrDimensionMismatch = errors.New("rag: vector dimension mismatch")
)

// ErrEmptyQuery is returned by Retrieve for a blank query.
var ErrEmptyQuery = errors.New("rag: query is empty")

// validateBatch checks the upsert invariants shared by all stores.
func validateBatch(dim int, ids []string, vectors [][]float32, payloads []Payload) error {
	if len(ids) != len(vectors) || len(ids) != len(payloads) {
		return fmt.Errorf("%w: %d ids, %d vectors, %d payloads",
			ErrLengthMismatch, len(ids), len(vectors), len(payloads))
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d (id %q) has %d dimensions, collection expects %d",
				ErrDimensionMismatch, i, ids[i], len(v), dim)
		}
	}
	return nil
}

// validateQuery checks that a query vector matches the collection.
func validateQuery(dim int, query []float32) error {
	if len(query) != dim {
		return fmt.Errorf("%w: query has %d dimensions, collection expects %d",
			ErrDimensionMismatch, len(query), dim)
	}
	return nil
}
