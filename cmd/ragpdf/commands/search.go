package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragpdf-go/internal/logging"
	"github.com/54b3r/ragpdf-go/internal/rag"
)

// NewSearchCmd constructs the `ragpdf search` command, which embeds a query
// and prints the matching chunk texts and their sources.
func NewSearchCmd() *cobra.Command {
	var text string
	var topK int

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search the vector store for chunks similar to a query",
		Long: `Embed --query and print the top-k matching chunk texts, best first, with the
distinct sources they came from.

Examples:
  ragpdf search --query "what is the warranty period?"
  ragpdf search --query "cooling requirements" --top-k 10`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			deps, err := buildRAG(ctx, log)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer func() { _ = deps.Close() }()

			retriever, err := rag.NewRetriever(deps.embedder, deps.store, rag.DefaultTopK)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			res, err := retriever.Retrieve(ctx, text, topK)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVarP(&text, "query", "q", "", "Query text to search for")
	cmd.Flags().IntVarP(&topK, "top-k", "k", rag.DefaultTopK, "Maximum number of chunks to return")
	_ = cmd.MarkFlagRequired("query")

	return cmd
}
