package cli

import (
	"context"
	"fmt"
	"os"

	"rag-chatbot/config"
	"rag-chatbot/internal/app"
	"rag-chatbot/pkg/logger"

	"github.com/spf13/cobra"
)

type appFactory func(ctx context.Context, cfg config.Config) (*app.App, error)

type runner struct {
	cfgFile string
	cfg     config.Config
	newApp  appFactory
}

// NewRootCommand builds the ragctl command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(app.New)
}

func newRootCommand(factory appFactory) *cobra.Command {
	r := &runner{newApp: factory}

	root := &cobra.Command{
		Use:   "ragctl",
		Short: "Administer the RAG chatbot knowledge base",
		Long: `ragctl loads documents into the vector store and queries it with the same
pipeline the HTTP service uses.

Example usage:
  ragctl ingest testdata/sample_documents.json   # Load the sample knowledge base
  ragctl ingest ./docs s3://bucket/handbook/     # Chunk and load text, markdown and PDF files
  ragctl ask "What is Milvus?"                   # Answer a question
  ragctl collection ensure                       # Create the collection if missing
  ragctl health                                  # Print the health report`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(r.cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			r.cfg = cfg
			// stdout carries command output
			logger.SetOutput(cmd.ErrOrStderr())
			logger.Configure(string(cfg.LogLevel))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&r.cfgFile, "config", "config.yaml", "config file")

	root.AddCommand(
		newIngestCommand(r),
		newAskCommand(r),
		newCollectionCommand(r),
		newHealthCommand(r),
	)
	return root
}

// withApp builds the application for one command and closes it afterwards.
func (r *runner) withApp(ctx context.Context, fn func(a *app.App) error) error {
	a, err := r.newApp(ctx, r.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error(err, "close failed")
		}
	}()
	return fn(a)
}

func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
