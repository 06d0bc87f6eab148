package ingestion

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/ragpdf-go/internal/rag"
	"github.com/54b3r/ragpdf-go/internal/store"
)

// fakeExtractor returns canned text for any location.
type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Extract(_ context.Context, _ string) (*Extraction, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &Extraction{Text: f.text, Pages: 1, SHA256: "deadbeef"}, nil
}

// countingEmbedder maps each text to a 2-d vector and records batch sizes.
type countingEmbedder struct {
	mu      sync.Mutex
	batches []int
	err     error
}

func (e *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.mu.Lock()
	e.batches = append(e.batches, len(texts))
	e.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{1, float32(len(t))}
	}
	return out, nil
}

func newTestPipeline(t *testing.T, text string, cfg *Config, opts ...Option) (*Pipeline, *rag.MemoryStore, *countingEmbedder) {
	t.Helper()
	vs := rag.NewMemoryStore(2)
	emb := &countingEmbedder{}
	opts = append([]Option{WithExtractor(&fakeExtractor{text: text})}, opts...)
	p, err := NewPipeline(emb, vs, cfg, opts...)
	require.NoError(t, err)
	return p, vs, emb
}

func Test_Pipeline_NilDependencies(t *testing.T) {
	t.Parallel()
	_, err := NewPipeline(nil, rag.NewMemoryStore(2), nil)
	assert.Error(t, err)
	_, err = NewPipeline(&countingEmbedder{}, nil, nil)
	assert.Error(t, err)
}

func Test_Pipeline_DefaultConfig(t *testing.T) {
	t.Parallel()
	p, _, _ := newTestPipeline(t, "x", nil)
	assert.Equal(t, DefaultChunkSize, p.chunker.Size)
	assert.Equal(t, DefaultChunkOverlap, p.chunker.Overlap)
	assert.Equal(t, DefaultBatchSize, p.batchSize)
}

func Test_Pipeline_IngestStoresChunks(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("word ", 100)
	p, vs, _ := newTestPipeline(t, text, &Config{ChunkSize: 50, ChunkOverlap: 10})

	res, err := p.Ingest(context.Background(), Source{Location: "/tmp/report.pdf", SourceID: "report"})
	require.NoError(t, err)
	assert.Equal(t, "report", res.SourceID)
	assert.Equal(t, "deadbeef", res.SHA256)
	assert.Positive(t, res.Chunks)
	assert.Equal(t, res.Chunks, vs.Len())

	got, err := vs.Search(context.Background(), []float32{1, 4}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"report"}, got.Sources)
}

func Test_Pipeline_SourceIDDefaultsToLocation(t *testing.T) {
	t.Parallel()
	p, _, _ := newTestPipeline(t, "some text", nil)

	res, err := p.Ingest(context.Background(), Source{Location: "/docs/a.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "/docs/a.pdf", res.SourceID)
}

func Test_Pipeline_Batches(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("abcdefghij", 25) // 250 runes, 25 chunks of 10
	p, vs, emb := newTestPipeline(t, text, &Config{ChunkSize: 10, ChunkOverlap: 0, BatchSize: 10})

	res, err := p.Ingest(context.Background(), Source{Location: "x.pdf"})
	require.NoError(t, err)
	assert.Equal(t, 25, res.Chunks)
	assert.Equal(t, []int{10, 10, 5}, emb.batches)
	assert.Equal(t, 25, vs.Len())
}

func Test_Pipeline_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	p, _, _ := newTestPipeline(t, "text", nil)
	_, err := p.Ingest(ctx, Source{})
	assert.ErrorIs(t, err, ErrMissingPDFPath)

	empty, _, _ := newTestPipeline(t, "  \n ", nil)
	_, err = empty.Ingest(ctx, Source{Location: "blank.pdf"})
	assert.ErrorIs(t, err, ErrNoText)

	broken := errors.New("corrupt xref")
	bad, err := NewPipeline(&countingEmbedder{}, rag.NewMemoryStore(2), nil, WithExtractor(&fakeExtractor{err: broken}))
	require.NoError(t, err)
	_, err = bad.Ingest(ctx, Source{Location: "bad.pdf"})
	assert.ErrorIs(t, err, broken)

	quota := errors.New("quota")
	noEmbed, err := NewPipeline(&countingEmbedder{err: quota}, rag.NewMemoryStore(2), nil, WithExtractor(&fakeExtractor{text: "hi"}))
	require.NoError(t, err)
	_, err = noEmbed.Ingest(ctx, Source{Location: "a.pdf"})
	assert.ErrorIs(t, err, quota)

	wrongDim, err := NewPipeline(&countingEmbedder{}, rag.NewMemoryStore(3), nil, WithExtractor(&fakeExtractor{text: "hi"}))
	require.NoError(t, err)
	_, err = wrongDim.Ingest(ctx, Source{Location: "a.pdf"})
	assert.ErrorIs(t, err, rag.ErrDimensionMismatch)
}

func Test_Pipeline_RecordsLedgerAndPrunesStale(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ledger, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })

	vs := rag.NewMemoryStore(2)
	long, err := NewPipeline(&countingEmbedder{}, vs, &Config{ChunkSize: 10, ChunkOverlap: 0},
		WithExtractor(&fakeExtractor{text: strings.Repeat("abcdefghij", 6)}), WithLedger(ledger))
	require.NoError(t, err)
	_, err = long.Ingest(ctx, Source{Location: "v1.pdf", SourceID: "doc"})
	require.NoError(t, err)
	require.Equal(t, 6, vs.Len())

	short, err := NewPipeline(&countingEmbedder{}, vs, &Config{ChunkSize: 10, ChunkOverlap: 0},
		WithExtractor(&fakeExtractor{text: strings.Repeat("abcdefghij", 2)}), WithLedger(ledger))
	require.NoError(t, err)
	_, err = short.Ingest(ctx, Source{Location: "v2.pdf", SourceID: "doc"})
	require.NoError(t, err)
	assert.Equal(t, 2, vs.Len(), "chunks beyond the new length must be removed")

	doc, err := ledger.Get(ctx, "doc")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, 2, doc.Chunks)
	assert.Equal(t, "v2.pdf", doc.Source)
}

func Test_Pipeline_OnIngestedHook(t *testing.T) {
	t.Parallel()
	var got *Result
	p, _, _ := newTestPipeline(t, "hello there", nil, WithOnIngested(func(r *Result) { got = r }))

	_, err := p.Ingest(context.Background(), Source{Location: "h.pdf"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.Chunks)
}

func Test_ChunkID_Deterministic(t *testing.T) {
	t.Parallel()
	assert.Equal(t, ChunkID("doc", 0), ChunkID("doc", 0))
	assert.NotEqual(t, ChunkID("doc", 0), ChunkID("doc", 1))
	assert.NotEqual(t, ChunkID("doc", 0), ChunkID("other", 0))
}
