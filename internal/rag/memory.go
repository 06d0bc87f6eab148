package rag

import (
	"context"
	"maps"
	"math"
	"slices"
	"sync"
)

// memoryPoint is a stored vector with its payload.
type memoryPoint struct {
	vector  []float32
	payload Payload
	// seq is the insertion order, used to break score ties deterministically.
	seq uint64
}

// MemoryStore implements VectorStore with brute-force cosine similarity.
// It is safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	dim    int
	points map[string]*memoryPoint
	next   uint64
}

var _ VectorStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store for vectors of size dim
// (DefaultDimensions when dim <= 0).
func NewMemoryStore(dim int) *MemoryStore {
	if dim <= 0 {
		dim = DefaultDimensions
	}
	return &MemoryStore{dim: dim, points: make(map[string]*memoryPoint)}
}

// Dim returns the store's vector dimensionality.
func (s *MemoryStore) Dim() int { return s.dim }

// Len returns the number of stored points.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}

// Upsert stores or replaces a batch of points.
func (s *MemoryStore) Upsert(_ context.Context, ids []string, vectors [][]float32, payloads []Payload) error {
	if err := validateBatch(s.dim, ids, vectors, payloads); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, id := range ids {
		p, ok := s.points[id]
		if !ok {
			p = &memoryPoint{seq: s.next}
			s.next++
			s.points[id] = p
		}
		p.vector = slices.Clone(vectors[i])
		p.payload = maps.Clone(payloads[i])
	}
	return nil
}

// Search ranks every stored point by cosine similarity to query.
func (s *MemoryStore) Search(_ context.Context, query []float32, topK int) (*SearchResult, error) {
	if err := validateQuery(s.dim, query); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	type scored struct {
		p     *memoryPoint
		score float64
	}

	s.mu.RLock()
	hits := make([]scored, 0, len(s.points))
	for _, p := range s.points {
		hits = append(hits, scored{p: p, score: cosine(query, p.vector)})
	}
	s.mu.RUnlock()

	slices.SortFunc(hits, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		case a.p.seq < b.p.seq:
			return -1
		case a.p.seq > b.p.seq:
			return 1
		}
		return 0
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}

	c := newCollector()
	for _, h := range hits {
		c.add(payloadString(h.p.payload, PayloadText), payloadString(h.p.payload, PayloadSource))
	}
	return c.result(), nil
}

// Delete removes points by id.
func (s *MemoryStore) Delete(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.points, id)
	}
	return nil
}

// Close is a no-op; the store stays usable.
func (s *MemoryStore) Close() error { return nil }

// cosine returns the cosine similarity of two equal-length vectors, or 0 when
// either has zero magnitude.
func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
