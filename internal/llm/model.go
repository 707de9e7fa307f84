// Package llm provides LLM and embedding services using langchaingo.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/raphaelgruber/docrelay/internal/config"
	"github.com/raphaelgruber/docrelay/internal/metrics"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrMissingCredential is returned when a hosted provider has no API key configured.
var ErrMissingCredential = errors.New("missing API credential")

// Options selects and tunes a model.
type Options struct {
	Provider        config.Provider
	Model           string
	Temperature     float64
	OllamaHost      string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	AWSRegion       string
}

// SummaryOptions returns the hosted model settings used by the summarizer.
func SummaryOptions(cfg config.Config) Options {
	return Options{
		Provider:        cfg.SummaryProvider,
		Model:           cfg.SummaryModel,
		Temperature:     0.3,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		AWSRegion:       cfg.AWSRegion,
	}
}

// LocalOptions returns the local Ollama model settings used by the docs QA backend.
func LocalOptions(cfg config.Config) Options {
	return Options{
		Provider:    config.ProviderOllama,
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		OllamaHost:  cfg.OllamaHost,
	}
}

// Model wraps langchaingo LLM for text generation.
type Model struct {
	llm         llms.Model
	modelName   string
	temperature float64
	metrics     *metrics.Collector
}

// NewModel creates an LLM model for the given options.
func NewModel(ctx context.Context, opts Options) (*Model, error) {
	var model llms.Model
	var err error

	switch opts.Provider {
	case config.ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(opts.Model),
			ollama.WithServerURL(opts.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY missing: %w", ErrMissingCredential)
		}
		model, err = openai.New(
			openai.WithToken(opts.OpenAIAPIKey),
			openai.WithModel(opts.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderAnthropic:
		if opts.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY missing: %w", ErrMissingCredential)
		}
		model, err = anthropic.New(
			anthropic.WithToken(opts.AnthropicAPIKey),
			anthropic.WithModel(opts.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	case config.ProviderBedrock:
		awsCfg, awsErr := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.AWSRegion))
		if awsErr != nil {
			return nil, fmt.Errorf("load aws config: %w", awsErr)
		}
		model, err = bedrock.New(
			bedrock.WithClient(bedrockruntime.NewFromConfig(awsCfg)),
			bedrock.WithModel(opts.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", opts.Provider)
	}

	return NewModelFrom(model, opts.Model, opts.Temperature), nil
}

// NewModelFrom wraps an existing langchaingo model.
func NewModelFrom(model llms.Model, name string, temperature float64) *Model {
	return &Model{
		llm:         model,
		modelName:   name,
		temperature: temperature,
	}
}

// WithMetrics records generation timings into c.
func (m *Model) WithMetrics(c *metrics.Collector) *Model {
	m.metrics = c
	return m
}

// Generate generates text based on a prompt.
func (m *Model) Generate(ctx context.Context, prompt string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	out, err := m.generate(ctx, messages)
	if err != nil {
		return "", wrapError("generate", err)
	}
	return out, nil
}

// GenerateWithSystem generates text with a system prompt.
func (m *Model) GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}
	out, err := m.generate(ctx, messages)
	if err != nil {
		return "", wrapError("generate with system", err)
	}
	return out, nil
}

func (m *Model) generate(ctx context.Context, messages []llms.MessageContent) (string, error) {
	start := time.Now()
	response, err := m.llm.GenerateContent(ctx, messages, llms.WithTemperature(m.temperature))
	duration := time.Since(start)
	if err != nil {
		m.record(duration, nil)
		return "", err
	}
	if len(response.Choices) == 0 {
		m.record(duration, nil)
		return "", errors.New("no response choices")
	}

	choice := response.Choices[0]
	m.record(duration, choice.GenerationInfo)
	return choice.Content, nil
}

// record stores timing plus token usage when the provider reports it.
// Ollama and OpenAI both use PromptTokens/CompletionTokens in GenerationInfo.
func (m *Model) record(d time.Duration, info map[string]any) {
	if m.metrics == nil {
		return
	}
	in, inOK := tokenCount(info, "PromptTokens")
	out, outOK := tokenCount(info, "CompletionTokens")
	if inOK || outOK {
		m.metrics.RecordLLMUsage(metrics.OpLLMGenerate, d, in, out)
		return
	}
	m.metrics.RecordTiming(metrics.OpLLMGenerate, d)
}

func tokenCount(info map[string]any, key string) (int64, bool) {
	switch v := info[key].(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	}
	return 0, false
}

// Model returns the LLM model name.
func (m *Model) Model() string {
	return m.modelName
}
