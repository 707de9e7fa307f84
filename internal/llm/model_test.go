package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/raphaelgruber/docrelay/internal/config"
	"github.com/raphaelgruber/docrelay/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// fakeLLM is a scripted llms.Model.
type fakeLLM struct {
	reply    string
	info     map[string]any
	err      error
	messages []llms.MessageContent
	opts     llms.CallOptions
}

func (f *fakeLLM) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, o := range options {
		o(&f.opts)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply, GenerationInfo: f.info}}}, nil
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil error", nil, KindGeneric},
		{"out of memory", errors.New("model requires more system memory (5.2 GiB) than is available"), KindOutOfMemory},
		{"memory wins over model", errors.New("model ran out of MEMORY"), KindOutOfMemory},
		{"not found", errors.New(`pull first: "llama3.2:1b" not found`), KindModelNotFound},
		{"model keyword", errors.New("invalid model name"), KindModelNotFound},
		{"connection refused", errors.New("dial tcp 127.0.0.1:11434: connect: connection refused"), KindGeneric},
		{"wrapped", fmt.Errorf("ask: %w", errors.New("404 Not Found")), KindModelNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("answer: %w", wrapError("generate", errors.New("out of memory")))
	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindOutOfMemory, kind)

	_, ok = KindOf(errors.New("sqlite: disk I/O error"))
	assert.False(t, ok, "non-model errors are not classified")

	assert.Nil(t, wrapError("generate", nil))
}

func TestNewModelRequiresCredentials(t *testing.T) {
	ctx := context.Background()

	_, err := NewModel(ctx, Options{Provider: config.ProviderOpenAI, Model: "gpt-4o-mini"})
	assert.ErrorIs(t, err, ErrMissingCredential)

	_, err = NewModel(ctx, Options{Provider: config.ProviderAnthropic, Model: "claude"})
	assert.ErrorIs(t, err, ErrMissingCredential)

	_, err = NewModel(ctx, Options{Provider: "mystery"})
	assert.ErrorContains(t, err, "unsupported LLM provider")
}

func TestModelGenerate(t *testing.T) {
	fake := &fakeLLM{reply: "Kubiya is a platform."}
	collector := metrics.NewCollector()
	m := NewModelFrom(fake, "llama3.2:1b", 0.7).WithMetrics(collector)

	out, err := m.Generate(context.Background(), "What is Kubiya?")
	require.NoError(t, err)
	assert.Equal(t, "Kubiya is a platform.", out)
	assert.Equal(t, 0.7, fake.opts.Temperature)
	assert.Equal(t, "llama3.2:1b", m.Model())

	snap := collector.Snapshot()
	require.NotNil(t, snap.LLMGenerate)
	assert.EqualValues(t, 1, snap.LLMGenerate.Count)
}

func TestModelGenerateWithSystem(t *testing.T) {
	fake := &fakeLLM{reply: "## Intro"}
	m := NewModelFrom(fake, "gpt-4o-mini", 0.3)

	out, err := m.GenerateWithSystem(context.Background(), "be terse", "summarize")
	require.NoError(t, err)
	assert.Equal(t, "## Intro", out)
	require.Len(t, fake.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, fake.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, fake.messages[1].Role)
}

func TestModelGenerateClassifiesErrors(t *testing.T) {
	m := NewModelFrom(&fakeLLM{err: errors.New(`model "llama3.2:1b" not found, try pulling it first`)}, "llama3.2:1b", 0.7)

	_, err := m.Generate(context.Background(), "hi")
	require.Error(t, err)

	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindModelNotFound, kind)
}

func TestModelRecordsTokenUsage(t *testing.T) {
	fake := &fakeLLM{reply: "ok", info: map[string]any{"PromptTokens": 120, "CompletionTokens": 30}}
	collector := metrics.NewCollector()
	m := NewModelFrom(fake, "llama3.2:1b", 0.7).WithMetrics(collector)

	_, err := m.Generate(context.Background(), "hi")
	require.NoError(t, err)

	snap := collector.Snapshot().LLMGenerate
	require.NotNil(t, snap)
	require.NotNil(t, snap.TotalInputTokens)
	assert.EqualValues(t, 120, *snap.TotalInputTokens)
	assert.EqualValues(t, 30, *snap.TotalOutputTokens)
}
