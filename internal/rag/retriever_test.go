package rag

import (
	"context"
	"errors"
	"slices"
	"testing"
)

// stubEmbedder returns a fixed vector for every text.
type stubEmbedder struct {
	vec []float32
	err error
}

func (e *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = e.vec
	}
	return out, nil
}

func Test_Retriever_NilDependencies(t *testing.T) {
	t.Parallel()
	if _, err := NewRetriever(nil, NewMemoryStore(1), 0); err == nil {
		t.Error("want error for nil embedder")
	}
	if _, err := NewRetriever(&stubEmbedder{}, nil, 0); err == nil {
		t.Error("want error for nil store")
	}
}

func Test_Retriever_EmbedsAndSearches(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore(2)
	if err := store.Upsert(ctx,
		[]string{"x", "y"},
		[][]float32{{1, 0}, {0, 1}},
		[]Payload{{PayloadText: "east", PayloadSource: "map"}, {PayloadText: "north", PayloadSource: "map"}},
	); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	r, err := NewRetriever(&stubEmbedder{vec: []float32{0, 1}}, store, 1)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	res, err := r.Retrieve(ctx, "which way is up?", 0)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if !slices.Equal(res.Contexts, []string{"north"}) {
		t.Errorf("want [north], got %v", res.Contexts)
	}
}

func Test_Retriever_EmbedErrorWrapped(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	r, err := NewRetriever(&stubEmbedder{err: boom}, NewMemoryStore(2), 0)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	if _, err := r.Retrieve(context.Background(), "q", 0); !errors.Is(err, boom) {
		t.Errorf("want wrapped boom, got %v", err)
	}
}

func Test_Retriever_BlankQuery(t *testing.T) {
	t.Parallel()
	emb := &countingEmbedder{}
	r, err := NewRetriever(emb, NewMemoryStore(2), 0)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	if _, err := r.Retrieve(context.Background(), "  \n\t", 3); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("want ErrEmptyQuery, got %v", err)
	}
	if emb.calls != 0 {
		t.Errorf("blank query must not be embedded, got %d calls", emb.calls)
	}
}

func Test_Retriever_WrongVectorCount(t *testing.T) {
	t.Parallel()
	r, err := NewRetriever(&countingEmbedder{extra: true}, NewMemoryStore(2), 0)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	if _, err := r.Retrieve(context.Background(), "q", 0); err == nil {
		t.Error("want error when the embedder returns two vectors for one query")
	}
}

// countingEmbedder counts calls and can return one vector too many.
type countingEmbedder struct {
	calls int
	extra bool
}

func (e *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0}
	}
	if e.extra {
		out = append(out, []float32{0, 1})
	}
	return out, nil
}
