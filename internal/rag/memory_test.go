package rag

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"testing"
)

// fill returns a vector of n copies of v.
func fill(n int, v float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func Test_Memory_UpsertThenSearchFindsPoint(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore(3)
	ctx := context.Background()

	err := s.Upsert(ctx,
		[]string{"a", "b"},
		[][]float32{{1, 0, 0}, {0, 1, 0}},
		[]Payload{
			{PayloadText: "alpha", PayloadSource: "doc1"},
			{PayloadText: "beta", PayloadSource: "doc2"},
		})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	res, err := s.Search(ctx, []float32{0, 1, 0}, 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !slices.Equal(res.Contexts, []string{"beta"}) {
		t.Errorf("contexts: want [beta], got %v", res.Contexts)
	}
	if !slices.Equal(res.Sources, []string{"doc2"}) {
		t.Errorf("sources: want [doc2], got %v", res.Sources)
	}
}

func Test_Memory_ReupsertReplacesPayload(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore(3)
	ctx := context.Background()
	vec := []float32{0.2, 0.4, 0.6}

	if err := s.Upsert(ctx, []string{"a"}, [][]float32{vec}, []Payload{{PayloadText: "old", PayloadSource: "v1"}}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := s.Upsert(ctx, []string{"a"}, [][]float32{vec}, []Payload{{PayloadText: "new", PayloadSource: "v2"}}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	if s.Len() != 1 {
		t.Fatalf("want 1 point after re-upsert, got %d", s.Len())
	}
	res, err := s.Search(ctx, vec, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !slices.Equal(res.Contexts, []string{"new"}) {
		t.Errorf("contexts: want [new], got %v", res.Contexts)
	}
	if !slices.Equal(res.Sources, []string{"v2"}) {
		t.Errorf("sources: want [v2], got %v", res.Sources)
	}
}

func Test_Memory_TopKBoundsContexts(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore(2)
	ctx := context.Background()

	ids := []string{"1", "2", "3", "4", "5", "6"}
	vectors := make([][]float32, len(ids))
	payloads := make([]Payload, len(ids))
	for i := range ids {
		vectors[i] = []float32{1, float32(i)}
		payloads[i] = Payload{PayloadText: "chunk " + ids[i], PayloadSource: "doc"}
	}
	if err := s.Upsert(ctx, ids, vectors, payloads); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	for _, k := range []int{1, 3, 6, 10} {
		res, err := s.Search(ctx, []float32{1, 1}, k)
		if err != nil {
			t.Fatalf("search k=%d: %v", k, err)
		}
		if len(res.Contexts) > k {
			t.Errorf("k=%d: got %d contexts", k, len(res.Contexts))
		}
	}
}

func Test_Memory_DefaultTopK(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore(1)
	ctx := context.Background()

	ids := []string{"a", "b", "c", "d", "e", "f", "g"}
	vectors := make([][]float32, len(ids))
	payloads := make([]Payload, len(ids))
	for i, id := range ids {
		vectors[i] = []float32{1}
		payloads[i] = Payload{PayloadText: id}
	}
	if err := s.Upsert(ctx, ids, vectors, payloads); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	res, err := s.Search(ctx, []float32{1}, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Contexts) != DefaultTopK {
		t.Errorf("want %d contexts, got %d", DefaultTopK, len(res.Contexts))
	}
	// Ties are broken by insertion order.
	if !slices.Equal(res.Contexts, ids[:DefaultTopK]) {
		t.Errorf("want %v, got %v", ids[:DefaultTopK], res.Contexts)
	}
}

func Test_Memory_EmptyCollectionReturnsEmptyLists(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore(3)

	res, err := s.Search(context.Background(), []float32{1, 2, 3}, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	raw, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"contexts":[],"sources":[]}` {
		t.Errorf("want empty lists, got %s", raw)
	}
}

func Test_Memory_SingleChunkExample(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore(DefaultDimensions)
	ctx := context.Background()

	err := s.Upsert(ctx,
		[]string{"a"},
		[][]float32{fill(DefaultDimensions, 0.1)},
		[]Payload{{PayloadText: "hello", PayloadSource: "doc1"}})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	res, err := s.Search(ctx, fill(DefaultDimensions, 0.1), 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	raw, _ := json.Marshal(res)
	if string(raw) != `{"contexts":["hello"],"sources":["doc1"]}` {
		t.Errorf("unexpected result: %s", raw)
	}
}

func Test_Memory_LengthMismatchFails(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore(2)

	tests := []struct {
		name     string
		ids      []string
		vectors  [][]float32
		payloads []Payload
	}{
		{"fewer vectors", []string{"a", "b"}, [][]float32{{1, 2}}, []Payload{{}, {}}},
		{"fewer payloads", []string{"a", "b"}, [][]float32{{1, 2}, {3, 4}}, []Payload{{}}},
		{"fewer ids", []string{"a"}, [][]float32{{1, 2}, {3, 4}}, []Payload{{}, {}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Upsert(context.Background(), tt.ids, tt.vectors, tt.payloads)
			if !errors.Is(err, ErrLengthMismatch) {
				t.Errorf("want ErrLengthMismatch, got %v", err)
			}
		})
	}
	if s.Len() != 0 {
		t.Errorf("failed upserts must not store points, got %d", s.Len())
	}
}

func Test_Memory_DimensionMismatchFails(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore(3)
	ctx := context.Background()

	err := s.Upsert(ctx, []string{"a"}, [][]float32{{1, 2}}, []Payload{{PayloadText: "x"}})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("upsert: want ErrDimensionMismatch, got %v", err)
	}

	_, err = s.Search(ctx, []float32{1, 2, 3, 4}, 1)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("search: want ErrDimensionMismatch, got %v", err)
	}
}

func Test_Memory_CollatesTextAndSources(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore(2)
	ctx := context.Background()

	// Descending similarity to the query {1, 0}: a, b, c, d.
	err := s.Upsert(ctx,
		[]string{"a", "b", "c", "d"},
		[][]float32{{1, 0}, {1, 0.1}, {1, 0.5}, {1, 2}},
		[]Payload{
			{PayloadText: "one", PayloadSource: "doc1"},
			{PayloadText: "", PayloadSource: "skipped"},
			{PayloadText: "three", PayloadSource: "doc1"},
			{PayloadText: "four"},
		})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	res, err := s.Search(ctx, []float32{1, 0}, 4)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !slices.Equal(res.Contexts, []string{"one", "three", "four"}) {
		t.Errorf("contexts: got %v", res.Contexts)
	}
	if !slices.Equal(res.Sources, []string{"doc1", ""}) {
		t.Errorf("sources: got %q", res.Sources)
	}
}

func Test_Memory_DeleteRemovesPoints(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore(1)
	ctx := context.Background()

	if err := s.Upsert(ctx, []string{"a", "b"}, [][]float32{{1}, {1}}, []Payload{{PayloadText: "a"}, {PayloadText: "b"}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.Delete(ctx, []string{"a", "missing"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	res, err := s.Search(ctx, []float32{1}, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !slices.Equal(res.Contexts, []string{"b"}) {
		t.Errorf("want [b], got %v", res.Contexts)
	}
}

func Test_Memory_UpsertCopiesInputs(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore(1)
	ctx := context.Background()

	vec := []float32{1}
	payload := Payload{PayloadText: "original"}
	if err := s.Upsert(ctx, []string{"a"}, [][]float32{vec}, []Payload{payload}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	payload[PayloadText] = "mutated"

	res, err := s.Search(ctx, []float32{1}, 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !slices.Equal(res.Contexts, []string{"original"}) {
		t.Errorf("store aliased caller payload: got %v", res.Contexts)
	}
}
