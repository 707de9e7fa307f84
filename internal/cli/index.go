package cli

import (
	"context"
	"os"
	"os/signal"

	"github.com/raphaelgruber/docrelay/internal/app"
	"github.com/spf13/cobra"
)

var indexRebuild bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build or load the documentation vector index",
	Long: `Load DOCS_GLOB files under DOCS_ROOT, split them into chunks, embed them
with the Ollama embedding model and store them in INDEX_DIR.

An existing index is reused unless --rebuild is given.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexRebuild, "rebuild", false, "discard the existing index and rebuild it")
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	p := newPrinter(os.Stderr)
	p.Status("→ opening index in %s", cfg.IndexDir)

	idx, err := app.OpenIndex(ctx, cfg, indexRebuild)
	if err != nil {
		return err
	}
	defer idx.Close()

	verb := "loaded"
	if idx.Info.Rebuilt {
		verb = "built"
	}
	p.Success("✓ %s %d chunks", verb, idx.Info.Chunks)
	if dim := idx.Embedder.Dimension(); dim > 0 {
		p.Hint("%s embeddings, %d dimensions", idx.Embedder.Model(), dim)
	}
	p.Hint("%s", idx.Info.Path)
	return nil
}
