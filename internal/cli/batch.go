package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/raphaelgruber/docrelay/internal/batch"
	"github.com/spf13/cobra"
)

var (
	batchDataFile  string
	batchStateFile string
	batchIndex     string
	batchPublish   bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Publish the next pending URL from a data file",
	Long: `Walk the pending URLs in the run state and invoke "docrelay publish" for
each until one succeeds. New URLs in the data file are appended to the
pending list; processed and failed URLs are recorded in the state file.

With --index only that pending item (1-based) runs, and its exit code
becomes the exit code of this command.

Examples:
  docrelay batch --data-file urls.json
  docrelay batch --index 2 --publish`,
	Args: cobra.NoArgs,
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringVar(&batchDataFile, "data-file", "", "JSON or YAML list of items (default DATA_FILE)")
	batchCmd.Flags().StringVar(&batchStateFile, "state-file", "", "run state path (default STATE_FILE)")
	batchCmd.Flags().StringVar(&batchIndex, "index", "", "run only this pending item, 1-based (default SHEET_ROW_INDEX)")
	batchCmd.Flags().BoolVar(&batchPublish, "publish", false, "pass --publish to each run (default RUN_PUBLISH)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := batch.Options{
		DataFile:  orDefault(batchDataFile, cfg.DataFile),
		StateFile: orDefault(batchStateFile, cfg.StateFile),
		RowIndex:  orDefault(batchIndex, cfg.SheetRowIndex),
		Publish:   batchPublish || cfg.RunPublish,
	}

	executor, err := batch.NewSubprocessExecutor()
	if err != nil {
		return err
	}

	p := newPrinter(os.Stderr)
	summary, err := batch.NewRunner(executor).Run(ctx, opts)
	if err != nil {
		return err
	}
	if summary.Succeeded != "" {
		p.Success("✓ processed %s", summary.Succeeded)
	} else {
		p.Hint("no item succeeded (%d attempted)", summary.Attempted)
	}
	p.Status("pending %d, processed %d, failed %d",
		len(summary.State.Pending), len(summary.State.Processed), len(summary.State.Error))
	return nil
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
