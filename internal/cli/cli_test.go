package cli

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/raphaelgruber/docrelay/internal/batch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain error", errors.New("boom"), 1},
		{"child exit", &batch.ExitError{Code: 4}, 4},
		{"wrapped child exit", fmt.Errorf("run: %w", &batch.ExitError{Code: 7}), 7},
		{"invalid index", &batch.IndexError{Value: "abc", Code: batch.ExitInvalidIndex}, 2},
		{"index out of range", &batch.IndexError{Value: "9", Code: batch.ExitIndexRange}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestPrinterPlainOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf)
	require.False(t, p.styled)

	p.Success("✓ published %q", "Title")
	p.Hint("dry run")
	p.Plain("# Body")

	assert.Equal(t, "✓ published \"Title\"\ndry run\n# Body\n", buf.String())
}

func TestOrDefault(t *testing.T) {
	assert.Equal(t, "flag", orDefault("flag", "env"))
	assert.Equal(t, "env", orDefault("", "env"))
}

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"publish", "batch", "banner", "index", "ask"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestPublishFlags(t *testing.T) {
	for _, name := range []string{"url", "tags", "title", "lock-title", "banner", "canonical",
		"auto-banner", "banner-prompt", "banner-base-url", "publish"} {
		assert.NotNil(t, publishCmd.Flags().Lookup(name), name)
	}
	ann := publishCmd.Flags().Lookup("url").Annotations
	assert.Contains(t, ann, "cobra_annotation_bash_completion_one_required_flag")
}
