package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/raphaelgruber/docrelay/internal/models"
)

// ExitError is a non-zero subprocess exit. Code is always positive; a child
// terminated by a signal reports 1 and carries the signal in Signal.
type ExitError struct {
	Code   int
	Signal string
}

func (e *ExitError) Error() string {
	if e.Signal != "" {
		return fmt.Sprintf("exit code %d (%s)", e.Code, e.Signal)
	}
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode implements the CLI exit-code contract.
func (e *ExitError) ExitCode() int { return e.Code }

// Executor runs one batch item to completion.
type Executor interface {
	Execute(ctx context.Context, item models.BatchItem, publish bool) error
}

// BuildArgs returns the publish command arguments for item.
func BuildArgs(item models.BatchItem, publish bool) []string {
	args := []string{"publish", "--url", item.URL}
	if len(item.Tags) > 0 {
		args = append(args, "--tags", strings.Join(item.Tags, ","))
	}
	if item.Title != "" {
		args = append(args, "--title", item.Title)
	}
	if item.Canonical != "" {
		args = append(args, "--canonical", item.Canonical)
	}
	if item.Banner != "" {
		args = append(args, "--banner", item.Banner)
	} else {
		args = append(args, "--auto-banner")
	}
	if publish {
		args = append(args, "--publish")
	}
	return args
}

// SubprocessExecutor runs each item as a child process of Binary.
type SubprocessExecutor struct {
	Binary string
	Stdout io.Writer
	Stderr io.Writer
}

// NewSubprocessExecutor runs items through the current executable.
func NewSubprocessExecutor() (*SubprocessExecutor, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}
	return &SubprocessExecutor{Binary: self, Stdout: os.Stdout, Stderr: os.Stderr}, nil
}

// Execute runs the publish command and maps a non-zero exit to *ExitError.
func (e *SubprocessExecutor) Execute(ctx context.Context, item models.BatchItem, publish bool) error {
	args := BuildArgs(item, publish)
	cmd := exec.CommandContext(ctx, e.Binary, args...)
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr

	slog.Debug("running batch item", "binary", e.Binary, "args", args)
	err := cmd.Run()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code > 0 {
			return &ExitError{Code: code}
		}
		// ExitCode is -1 when the child did not exit on its own.
		return &ExitError{Code: 1, Signal: exitErr.String()}
	}
	return fmt.Errorf("run %s: %w", e.Binary, err)
}
