// Package ingestion implements the PDF ingestion pipeline:
// extract → chunk → embed → store. Each stage is a separate unit so it can be
// swapped or tested alone. The pipeline is invoked by the rag/ingest_pdf
// event function and by the `ragpdf ingest` CLI command.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/54b3r/ragpdf-go/internal/logging"
	"github.com/54b3r/ragpdf-go/internal/rag"
	"github.com/54b3r/ragpdf-go/internal/store"
)

var (
	// ErrMissingPDFPath is returned when a source has no location.
	ErrMissingPDFPath = errors.New("ingestion: pdf_path is required")
	// ErrNoText is returned when a PDF yields no chunkable text.
	ErrNoText = errors.New("ingestion: document contains no text")
)

// Payload keys written next to rag.PayloadText and rag.PayloadSource.
const (
	// PayloadChunkIndex holds a chunk's position within its document.
	PayloadChunkIndex = "chunk_index"
	// PayloadFileName holds the base name of the PDF, when it has one.
	PayloadFileName = "file_name"
)

// DefaultBatchSize is how many chunks are embedded per embedder call.
const DefaultBatchSize = 64

// Source describes a PDF to be ingested.
type Source struct {
	// Location is a filesystem path or an http(s) URL.
	Location string
	// SourceID tags every chunk. Defaults to Location.
	SourceID string
}

// Result summarises one ingest.
type Result struct {
	SourceID string
	Location string
	Chunks   int
	Pages    int
	SHA256   string
	Duration time.Duration
}

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the maximum number of runes per chunk. Defaults to 1000.
	ChunkSize int
	// ChunkOverlap is the number of runes shared by consecutive chunks.
	// Defaults to 200.
	ChunkOverlap int
	// BatchSize is how many chunks go to the embedder at once. Defaults to 64.
	BatchSize int
	// HTTPTimeout is the timeout for fetching remote PDFs. Defaults to 30s.
	HTTPTimeout time.Duration
	// UserAgent is the HTTP User-Agent header sent with fetch requests.
	UserAgent string
	// PDFRoot, when set, confines local pdf_path values to this directory.
	// Relative paths resolve against it. URLs are unaffected.
	PDFRoot string
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithLedger records every successful ingest in l.
func WithLedger(l store.Ledger) Option {
	return func(p *Pipeline) { p.ledger = l }
}

// WithExtractor replaces the default PDFExtractor.
func WithExtractor(e Extractor) Option {
	return func(p *Pipeline) { p.extractor = e }
}

// WithOnIngested registers a callback run after every successful ingest.
func WithOnIngested(fn func(*Result)) Option {
	return func(p *Pipeline) { p.onIngested = fn }
}

// Pipeline orchestrates extract → chunk → embed → store for one PDF at a time.
type Pipeline struct {
	extractor  Extractor
	chunker    *Chunker
	embedder   rag.Embedder
	store      rag.VectorStore
	ledger     store.Ledger
	batchSize  int
	onIngested func(*Result)
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder rag.Embedder, vs rag.VectorStore, cfg *Config, opts ...Option) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if vs == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	size, overlap := cfg.ChunkSize, cfg.ChunkOverlap
	if size <= 0 {
		size = DefaultChunkSize
		if overlap == 0 {
			overlap = DefaultChunkOverlap
		}
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	p := &Pipeline{
		extractor: NewPDFExtractor(cfg.HTTPTimeout, cfg.UserAgent, 0).RestrictTo(cfg.PDFRoot),
		chunker:   NewChunker(size, overlap),
		embedder:  embedder,
		store:     vs,
		batchSize: batch,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Ingest extracts, chunks, embeds, and stores one PDF. Chunks are upserted
// batch by batch; an error leaves earlier batches in place and is returned
// unretried.
func (p *Pipeline) Ingest(ctx context.Context, src Source) (*Result, error) {
	if src.Location == "" {
		return nil, ErrMissingPDFPath
	}
	if src.SourceID == "" {
		src.SourceID = src.Location
	}

	start := time.Now()
	info := DescribeSource(src.Location)
	log := logging.FromContext(ctx).With(
		slog.String("source_id", src.SourceID),
		slog.String("source_kind", info.Kind),
	)

	ext, err := p.extractor.Extract(ctx, src.Location)
	if err != nil {
		return nil, err
	}

	chunks := p.chunker.Split(ext.Text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoText, src.Location)
	}
	log.Info("ingestion: extracted", slog.Int("pages", ext.Pages), slog.Int("chunks", len(chunks)))

	for lo := 0; lo < len(chunks); lo += p.batchSize {
		hi := min(lo+p.batchSize, len(chunks))
		if err := p.storeBatch(ctx, src.SourceID, info.FileName, chunks[lo:hi], lo); err != nil {
			return nil, err
		}
		log.Debug("ingestion: batch stored", slog.Int("from", lo), slog.Int("to", hi))
	}

	if err := p.pruneStale(ctx, src.SourceID, len(chunks)); err != nil {
		return nil, err
	}

	res := &Result{
		SourceID: src.SourceID,
		Location: src.Location,
		Chunks:   len(chunks),
		Pages:    ext.Pages,
		SHA256:   ext.SHA256,
		Duration: time.Since(start),
	}

	if p.ledger != nil {
		doc := store.Document{
			Source:   src.Location,
			SourceID: src.SourceID,
			Chunks:   res.Chunks,
			SHA256:   res.SHA256,
		}
		if err := p.ledger.Record(ctx, doc); err != nil {
			return nil, fmt.Errorf("ingestion: ledger: %w", err)
		}
	}

	log.Info("ingestion: complete", slog.Int("chunks", res.Chunks), slog.Int64("duration_ms", res.Duration.Milliseconds()))
	if p.onIngested != nil {
		p.onIngested(res)
	}
	return res, nil
}

// storeBatch embeds one batch of chunks and upserts them. offset is the index
// of batch[0] within the whole document.
func (p *Pipeline) storeBatch(ctx context.Context, sourceID, fileName string, batch []string, offset int) error {
	vectors, err := p.embedder.Embed(ctx, batch)
	if err != nil {
		return fmt.Errorf("ingestion: embedding failed for %s: %w", sourceID, err)
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("ingestion: embedder returned %d vectors for %d chunks", len(vectors), len(batch))
	}

	ids := make([]string, len(batch))
	payloads := make([]rag.Payload, len(batch))
	for i, text := range batch {
		idx := offset + i
		ids[i] = ChunkID(sourceID, idx)
		payloads[i] = rag.Payload{
			rag.PayloadText:   text,
			rag.PayloadSource: sourceID,
			PayloadChunkIndex: idx,
		}
		if fileName != "" {
			payloads[i][PayloadFileName] = fileName
		}
	}

	if err := p.store.Upsert(ctx, ids, vectors, payloads); err != nil {
		return fmt.Errorf("ingestion: upsert failed for %s: %w", sourceID, err)
	}
	return nil
}

// pruneStale deletes chunks left over from a previous, longer version of the
// same source. It needs the ledger to know how many chunks there were.
func (p *Pipeline) pruneStale(ctx context.Context, sourceID string, n int) error {
	if p.ledger == nil {
		return nil
	}
	prev, err := p.ledger.Get(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("ingestion: ledger: %w", err)
	}
	if prev == nil || prev.Chunks <= n {
		return nil
	}

	stale := make([]string, 0, prev.Chunks-n)
	for i := n; i < prev.Chunks; i++ {
		stale = append(stale, ChunkID(sourceID, i))
	}
	if err := p.store.Delete(ctx, stale); err != nil {
		return fmt.Errorf("ingestion: delete stale chunks for %s: %w", sourceID, err)
	}
	logging.FromContext(ctx).Info("ingestion: removed stale chunks", slog.String("source_id", sourceID), slog.Int("count", len(stale)))
	return nil
}

// ChunkID returns the deterministic id of chunk index of sourceID.
func ChunkID(sourceID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(sourceID+":"+strconv.Itoa(index))).String()
}
