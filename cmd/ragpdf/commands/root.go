// Package commands defines all Cobra CLI commands for the ragpdf binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/ragpdf-go/internal/audit"
	"github.com/54b3r/ragpdf-go/internal/config"
	"github.com/54b3r/ragpdf-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// envFilePath holds the --env-file flag value.
var envFilePath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ragpdf",
		Short: "ragpdf: PDF ingestion and retrieval over a vector store",
		Long: `ragpdf extracts text from PDF documents, splits it into overlapping
chunks, embeds them and stores them in Qdrant (or an in-memory store) so they
can be searched by semantic similarity.

Work arrives as events ("rag/ingest_pdf", "rag/query_pdf_ai") posted to
'ragpdf serve', or directly through the ingest and search commands.

Settings come from the environment, a .env file and a YAML config file
(~/.ragpdf/config.yaml), in that order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// .env first so it outranks YAML; neither overrides the process env.
			envPath, err := config.LoadDotEnv(envFilePath, log)
			if err != nil {
				return err
			}
			cfgPath, err := config.Load(configPath, log)
			if err != nil {
				return err
			}

			// LOG_* may have just been set from a file.
			log = logging.New()
			audit.LogCommandStart(log, cmd.Name(), cfgPath, envPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.ragpdf/config.yaml)")
	root.PersistentFlags().StringVar(&envFilePath, "env-file", "", "Path to .env file (default: ./.env if present)")

	root.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewSearchCmd(),
		NewAskCmd(),
		NewDeleteCmd(),
		NewSendCmd(),
		NewVersionCmd(),
	)

	return root
}
