package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/redis/go-redis/v9"

	"github.com/54b3r/ragpdf-go/internal/dedup"
	"github.com/54b3r/ragpdf-go/internal/embedder"
	"github.com/54b3r/ragpdf-go/internal/ingestion"
	"github.com/54b3r/ragpdf-go/internal/provider"
	"github.com/54b3r/ragpdf-go/internal/rag"
	"github.com/54b3r/ragpdf-go/internal/server"
	"github.com/54b3r/ragpdf-go/internal/store"
	"github.com/54b3r/ragpdf-go/internal/tracing"
)

// Vector store backends selectable with VECTOR_STORE.
const (
	vectorStoreQdrant = "qdrant"
	vectorStoreMemory = "memory"
)

// ledgerDisabled is the RAGPDF_LEDGER_DB value that turns the ledger off.
const ledgerDisabled = "disabled"

// ragDeps is the embedder and vector store pair every data command needs.
type ragDeps struct {
	// embedder turns text into vectors.
	embedder rag.Embedder
	// settings are the resolved embedding settings.
	settings *embedder.Settings
	// store is the configured vector store.
	store rag.VectorStore
	// qdrant is set when store is Qdrant-backed, for readiness probes.
	qdrant *rag.QdrantStore
}

// Close releases the vector store.
func (d *ragDeps) Close() error {
	return d.store.Close()
}

// buildRAG constructs the embedder from EMBEDDING_* settings and the vector
// store from VECTOR_STORE / QDRANT_*. The collection is created with the
// embedder's dimensions if it does not exist yet.
func buildRAG(ctx context.Context, log *slog.Logger) (*ragDeps, error) {
	emb, settings, err := embedder.NewFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	log.Info("embedder initialised",
		slog.String("backend", settings.Backend),
		slog.String("model", settings.Model),
		slog.Int("dimensions", settings.Dimensions),
	)

	deps := &ragDeps{embedder: emb, settings: settings}
	collectionDim := settings.Dimensions

	switch kind := strings.ToLower(getEnvOrDefault("VECTOR_STORE", vectorStoreQdrant)); kind {
	case vectorStoreMemory:
		deps.store = rag.NewMemoryStore(settings.Dimensions)
		log.Warn("vector store: using in-memory store, data is lost on exit")
	case vectorStoreQdrant:
		timeout, err := getEnvDuration("QDRANT_TIMEOUT", rag.DefaultTimeout)
		if err != nil {
			return nil, err
		}
		qs, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
			URL:        getEnvOrDefault("QDRANT_URL", rag.DefaultQdrantURL),
			Collection: getEnvOrDefault("QDRANT_COLLECTION", rag.DefaultCollection),
			Dim:        settings.Dimensions,
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			Timeout:    timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
		}
		if size, err := qs.VectorSize(ctx); err != nil {
			log.Warn("vector store: could not read collection size", slog.Any("error", err))
		} else {
			collectionDim = size
		}
		deps.store, deps.qdrant = qs, qs
		log.Info("qdrant store ready",
			slog.String("collection", qs.Collection()),
			slog.Int("collection_dimensions", collectionDim),
		)
	default:
		return nil, fmt.Errorf("unknown VECTOR_STORE %q (want qdrant or memory)", kind)
	}

	embedder.Validate(log, settings, collectionDim)
	return deps, nil
}

// openLedger opens the SQLite ingestion ledger. RAGPDF_LEDGER_DB overrides
// the default path (~/.ragpdf/ledger.db); "disabled" turns it off. A ledger
// that fails to open is logged and skipped, never fatal.
func openLedger(log *slog.Logger) *store.SQLiteStore {
	dbPath := os.Getenv("RAGPDF_LEDGER_DB")
	if dbPath == ledgerDisabled {
		log.Info("ledger: disabled via RAGPDF_LEDGER_DB=disabled")
		return nil
	}
	if dbPath == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			log.Warn("ledger: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil
		}
		dbPath = p
	}
	ls, err := store.Open(dbPath)
	if err != nil {
		log.Warn("ledger: failed to open store, disabling", slog.Any("error", err))
		return nil
	}
	log.Info("ledger: store opened", slog.String("path", dbPath))
	return ls
}

// buildDeduper returns a Redis-backed dedup store when REDIS_URL is set and
// an in-memory one otherwise. The Redis client is returned for readiness
// probes and is nil for the in-memory store.
func buildDeduper(ctx context.Context, log *slog.Logger) (dedup.Store, *redis.Client, error) {
	ttl, err := getEnvDuration("DEDUP_TTL", dedup.DefaultTTL)
	if err != nil {
		return nil, nil, err
	}

	rawURL := os.Getenv("REDIS_URL")
	if rawURL == "" {
		ds, err := dedup.NewStore(dedup.StoreTypeMemory, dedup.WithTTL(ttl))
		if err != nil {
			return nil, nil, err
		}
		log.Info("dedup: using in-memory store", slog.Duration("ttl", ttl))
		return ds, nil, nil
	}

	client, err := dedup.NewRedisClient(ctx, rawURL)
	if err != nil {
		return nil, nil, err
	}
	ds, err := dedup.NewStore(dedup.StoreTypeRedis, dedup.WithRedisClient(client), dedup.WithTTL(ttl))
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	log.Info("dedup: using redis store", slog.Duration("ttl", ttl))
	return ds, client, nil
}

// buildChatModel returns the configured chat model, or nil when
// MODEL_PROVIDER is unset or "none". Queries then return contexts only.
func buildChatModel(ctx context.Context, log *slog.Logger) (model.BaseChatModel, error) {
	chat, cfg, err := provider.NewFromEnv(ctx)
	if errors.Is(err, provider.ErrNotConfigured) {
		log.Info("chat model: not configured, answers will be left empty")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	log.Info("chat model initialised",
		slog.String("provider", string(cfg.Backend)),
		slog.String("model", cfg.Model()),
	)
	return chat, nil
}

// setupTracing enables Langfuse tracing for chat model calls when its keys
// are set. The returned func flushes pending traces and is always non-nil.
func setupTracing(log *slog.Logger) func() {
	handler, flush, ok := tracing.Setup(server.DefaultAppID)
	if !ok {
		log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
		return func() {}
	}
	callbacks.AppendGlobalHandlers(handler)
	log.Info("langfuse tracing enabled")
	return flush
}

// pipelineConfigFromEnv reads chunking settings from the environment.
func pipelineConfigFromEnv() *ingestion.Config {
	return &ingestion.Config{
		ChunkSize:    getEnvInt("CHUNK_SIZE", ingestion.DefaultChunkSize),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", ingestion.DefaultChunkOverlap),
		PDFRoot:      os.Getenv("RAGPDF_PDF_ROOT"),
	}
}

// printJSON writes v to w as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not a valid integer.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvDuration parses the named environment variable as a duration.
// Unset yields fallback; an unparseable value is an error.
func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
