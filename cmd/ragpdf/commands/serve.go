package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/ragpdf-go/internal/events"
	"github.com/54b3r/ragpdf-go/internal/ingestion"
	"github.com/54b3r/ragpdf-go/internal/logging"
	"github.com/54b3r/ragpdf-go/internal/query"
	"github.com/54b3r/ragpdf-go/internal/rag"
	"github.com/54b3r/ragpdf-go/internal/server"
)

// NewServeCmd constructs the `ragpdf serve` command, which starts the HTTP
// event endpoint and registers the ingest and query functions.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ragpdf HTTP event server",
		Long: `Start the ragpdf HTTP server.

Events posted to POST /api/events are deduplicated by id and dispatched to
every function subscribed to the event name:

  rag/ingest_pdf     data: {"pdf_path": "...", "source_id": "..."}
  rag/query_pdf_ai   data: {"question": "...", "top_k": 5}

pdf_path may be an http(s) URL or a local path. Any local file the server
can read is accepted unless RAGPDF_PDF_ROOT names the directory PDFs must
live under; set it, and RAGPDF_API_KEY, before exposing the server beyond
localhost.

Examples:
  ragpdf serve
  ragpdf serve --port 9090
  VECTOR_STORE=memory EMBEDDING_PROVIDER=ollama ragpdf serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("vector_store", getEnvOrDefault("VECTOR_STORE", vectorStoreQdrant)))

			defer setupTracing(log)()

			deps, err := buildRAG(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() { _ = deps.Close() }()

			chatModel, err := buildChatModel(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			ds, redisClient, err := buildDeduper(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() { _ = ds.Close() }()

			metrics := server.NewMetrics(prometheus.DefaultRegisterer)
			srvCfg := &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				APIKey:  os.Getenv("RAGPDF_API_KEY"),
				Metrics: metrics,
			}

			pipelineOpts := []ingestion.Option{ingestion.WithOnIngested(metrics.ObserveIngest)}
			if ledger := openLedger(log); ledger != nil {
				defer func() { _ = ledger.Close() }()
				pipelineOpts = append(pipelineOpts, ingestion.WithLedger(ledger))
				srvCfg.Ledger = ledger
				srvCfg.Pingers = append(srvCfg.Pingers, server.PingerFunc("ledger", ledger.Path(), ledger.Ping))
			}
			if deps.qdrant != nil {
				srvCfg.Pingers = append(srvCfg.Pingers, server.NewQdrantPinger(deps.qdrant.Client(), deps.qdrant.Collection()))
			}
			if redisClient != nil {
				srvCfg.Pingers = append(srvCfg.Pingers, server.NewRedisPinger(redisClient))
			}

			pipeline, err := ingestion.NewPipeline(deps.embedder, deps.store, pipelineConfigFromEnv(), pipelineOpts...)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			retriever, err := rag.NewRetriever(deps.embedder, deps.store, rag.DefaultTopK)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			queryOpts := []query.Option{query.WithMaxContextTokens(getEnvInt("MODEL_MAX_CONTEXT_TOKENS", 0))}
			if chatModel != nil {
				queryOpts = append(queryOpts, query.WithChatModel(chatModel))
			}
			svc, err := query.NewService(retriever, queryOpts...)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			registry := events.NewRegistry(
				events.WithDeduper(ds),
				events.WithRunHook(metrics.ObserveRun),
			)
			for _, fn := range []events.Function{
				ingestion.NewIngestFunction(pipeline),
				query.NewQueryFunction(svc),
			} {
				if err := registry.Register(fn); err != nil {
					return fmt.Errorf("serve: %w", err)
				}
				log.Info("function registered", slog.String("id", fn.ID), slog.String("trigger", fn.Trigger))
			}

			srv, err := server.New(registry, srvCfg)
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
