package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/raphaelgruber/docrelay/internal/models"
)

// Exit codes for index selection failures.
const (
	ExitInvalidIndex = 2
	ExitIndexRange   = 3
)

// IndexError reports an unusable SHEET_ROW_INDEX value.
type IndexError struct {
	Value string
	Code  int
}

func (e *IndexError) Error() string {
	if e.Code == ExitIndexRange {
		return fmt.Sprintf("row index %s is out of range", e.Value)
	}
	return fmt.Sprintf("invalid row index %q", e.Value)
}

// ExitCode implements the CLI exit-code contract.
func (e *IndexError) ExitCode() int { return e.Code }

// Options configure one batch run.
type Options struct {
	DataFile  string
	StateFile string
	Publish   bool
	// RowIndex selects a single pending item, 1-based. Empty means iterate.
	RowIndex string
}

// Summary describes what a run did.
type Summary struct {
	Attempted int
	Succeeded string // URL of the item that succeeded, if any
	State     *models.RunState
}

// Runner executes pending batch items until one succeeds.
type Runner struct {
	exec Executor
}

// NewRunner creates a runner backed by exec.
func NewRunner(exec Executor) *Runner {
	return &Runner{exec: exec}
}

// Run loads items and state, then executes pending items in order.
// With a row index only that item runs and its error, including an
// *ExitError carrying the child exit code, is returned to the caller.
func (r *Runner) Run(ctx context.Context, opts Options) (*Summary, error) {
	items, err := LoadItems(opts.DataFile)
	if err != nil {
		return nil, err
	}
	state, err := prepareState(opts.StateFile, items)
	if err != nil {
		return nil, err
	}

	byURL := make(map[string]models.BatchItem, len(items))
	for _, it := range items {
		if _, ok := byURL[it.URL]; !ok {
			byURL[it.URL] = it
		}
	}
	lookup := func(url string) models.BatchItem {
		if it, ok := byURL[url]; ok {
			return it
		}
		return models.BatchItem{URL: url}
	}

	summary := &Summary{State: state}

	if strings.TrimSpace(opts.RowIndex) != "" {
		url, err := selectPending(state, opts.RowIndex)
		if err != nil {
			return summary, err
		}
		summary.Attempted = 1
		runErr := r.attempt(ctx, state, lookup(url), opts)
		if saveErr := SaveState(opts.StateFile, state); saveErr != nil {
			return summary, saveErr
		}
		if runErr == nil {
			summary.Succeeded = url
		}
		return summary, runErr
	}

	queue := append([]string(nil), state.Pending...)
	slog.Info("→ starting batch", "pending", len(queue), "publish", opts.Publish)
	for _, url := range queue {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Attempted++
		runErr := r.attempt(ctx, state, lookup(url), opts)
		if err := SaveState(opts.StateFile, state); err != nil {
			return summary, err
		}
		if runErr == nil {
			summary.Succeeded = url
			break
		}
	}

	slog.Info("batch finished",
		"attempted", summary.Attempted,
		"processed", len(state.Processed),
		"pending", len(state.Pending),
		"errors", len(state.Error))
	return summary, nil
}

func prepareState(path string, items []models.BatchItem) (*models.RunState, error) {
	state, found, err := LoadState(path)
	if err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(items))
	for _, it := range items {
		urls = append(urls, it.URL)
	}

	if !found {
		if len(urls) == 0 {
			return nil, ErrNoItems
		}
		state = models.NewRunState(urls)
		slog.Info("initialized run state", "pending", len(state.Pending), "file", path)
		return state, SaveState(path, state)
	}

	if added := state.AddPending(urls...); added > 0 {
		slog.Info("added new items to run state", "count", added)
		if err := SaveState(path, state); err != nil {
			return nil, err
		}
	}
	return state, nil
}

func (r *Runner) attempt(ctx context.Context, state *models.RunState, item models.BatchItem, opts Options) error {
	slog.Info("→ processing", "url", item.URL)
	err := r.exec.Execute(ctx, item, opts.Publish)
	if err == nil {
		state.MarkProcessed(item.URL)
		slog.Info("✓ processed", "url", item.URL)
		return nil
	}

	state.MarkError(item.URL, err.Error())
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		slog.Error("✗ failed", "url", item.URL, "exit_code", exitErr.Code)
	} else {
		slog.Error("✗ failed", "url", item.URL, "error", err)
	}
	return err
}

func selectPending(state *models.RunState, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return "", &IndexError{Value: raw, Code: ExitInvalidIndex}
	}
	if n < 1 || n > len(state.Pending) {
		return "", &IndexError{Value: raw, Code: ExitIndexRange}
	}
	return state.Pending[n-1], nil
}
