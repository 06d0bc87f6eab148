package commands

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragpdf-go/internal/ingestion"
	"github.com/54b3r/ragpdf-go/internal/logging"
)

// NewDeleteCmd constructs the `ragpdf delete` command, which removes points
// from the vector store by id or by source.
func NewDeleteCmd() *cobra.Command {
	var ids []string
	var sourceID string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete chunks from the vector store",
		Long: `Delete points by id, or every chunk of a source recorded in the ledger.

Unknown ids are ignored.

Examples:
  ragpdf delete --id 0b6f4c1e-3c52-5d7a-9f0e-6a1b2c3d4e5f --id 42
  ragpdf delete --source-id report-2025`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(ids) == 0 && sourceID == "" {
				return errors.New("delete: provide --id or --source-id")
			}

			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			if sourceID != "" {
				ledger := openLedger(log)
				if ledger == nil {
					return errors.New("delete: --source-id needs the ledger (RAGPDF_LEDGER_DB)")
				}
				defer func() { _ = ledger.Close() }()

				doc, err := ledger.Get(ctx, sourceID)
				if err != nil {
					return fmt.Errorf("delete: %w", err)
				}
				if doc == nil {
					return fmt.Errorf("delete: source %q is not in the ledger", sourceID)
				}
				for i := range doc.Chunks {
					ids = append(ids, ingestion.ChunkID(sourceID, i))
				}
			}

			deps, err := buildRAG(ctx, log)
			if err != nil {
				return fmt.Errorf("delete: %w", err)
			}
			defer func() { _ = deps.Close() }()

			if err := deps.store.Delete(ctx, ids); err != nil {
				return fmt.Errorf("delete: %w", err)
			}

			log.Info("points deleted", slog.Int("count", len(ids)))
			return printJSON(cmd.OutOrStdout(), map[string]any{"deleted": len(ids)})
		},
	}

	cmd.Flags().StringArrayVar(&ids, "id", nil, "Point id to delete (repeatable)")
	cmd.Flags().StringVar(&sourceID, "source-id", "", "Delete every chunk the ledger recorded for this source")

	return cmd
}
