package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragpdf-go/internal/logging"
	"github.com/54b3r/ragpdf-go/internal/query"
	"github.com/54b3r/ragpdf-go/internal/rag"
)

// NewAskCmd constructs the `ragpdf ask` command, which answers a question
// from the ingested PDFs using the configured chat model.
func NewAskCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question from the ingested PDFs",
		Long: `Retrieve the chunks most similar to the question and, when MODEL_PROVIDER
is set, ask the chat model to answer using only those chunks.

Without a chat model the answer is empty and only the contexts' sources are
printed.

Examples:
  ragpdf ask "what is the warranty period?"
  MODEL_PROVIDER=ollama ragpdf ask --top-k 8 "summarise section 4"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			defer setupTracing(log)()

			deps, err := buildRAG(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer func() { _ = deps.Close() }()

			chatModel, err := buildChatModel(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			retriever, err := rag.NewRetriever(deps.embedder, deps.store, rag.DefaultTopK)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			opts := []query.Option{query.WithMaxContextTokens(getEnvInt("MODEL_MAX_CONTEXT_TOKENS", 0))}
			if chatModel != nil {
				opts = append(opts, query.WithChatModel(chatModel))
			}
			svc, err := query.NewService(retriever, opts...)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			answer, err := svc.Ask(ctx, strings.Join(args, " "), topK)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), answer)
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", rag.DefaultTopK, "Number of chunks to retrieve as context")

	return cmd
}
