package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragpdf-go/internal/ingestion"
	"github.com/54b3r/ragpdf-go/internal/logging"
)

// NewIngestCmd constructs the `ragpdf ingest` command, which runs the PDF
// ingestion pipeline once without going through the event server.
func NewIngestCmd() *cobra.Command {
	var pdfPath string
	var sourceID string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a PDF into the vector store",
		Long: `Extract text from a PDF, split it into overlapping chunks, embed them and
upsert them into the vector store.

Re-ingesting the same --source-id replaces its chunks in place; chunks left
over from a longer previous version are removed when the ledger knows about
them.

Relevant environment variables:
  VECTOR_STORE         qdrant (default) or memory
  QDRANT_URL           Qdrant endpoint (default: http://localhost:6333)
  QDRANT_COLLECTION    Collection name (default: docs)
  EMBEDDING_PROVIDER   openai, azure, ollama, gemini
  CHUNK_SIZE           Runes per chunk (default: 1000)
  CHUNK_OVERLAP        Runes shared by consecutive chunks (default: 200)

Examples:
  ragpdf ingest --pdf ./manual.pdf
  ragpdf ingest --pdf https://example.com/report.pdf --source-id report-2025`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			deps, err := buildRAG(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer func() { _ = deps.Close() }()

			var opts []ingestion.Option
			if ledger := openLedger(log); ledger != nil {
				defer func() { _ = ledger.Close() }()
				opts = append(opts, ingestion.WithLedger(ledger))
			}

			pipeline, err := ingestion.NewPipeline(deps.embedder, deps.store, pipelineConfigFromEnv(), opts...)
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			res, err := pipeline.Ingest(ctx, ingestion.Source{Location: pdfPath, SourceID: sourceID})
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			log.Info("ingestion complete",
				slog.String("source_id", res.SourceID),
				slog.Int("chunks", res.Chunks),
			)
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"ingested":    res.Chunks,
				"source_id":   res.SourceID,
				"pages":       res.Pages,
				"sha256":      res.SHA256,
				"duration_ms": res.Duration.Milliseconds(),
			})
		},
	}

	cmd.Flags().StringVar(&pdfPath, "pdf", "", "Path or http(s) URL of the PDF to ingest")
	cmd.Flags().StringVar(&sourceID, "source-id", "", "Source identifier stored with every chunk (default: the --pdf value)")
	_ = cmd.MarkFlagRequired("pdf")

	return cmd
}
