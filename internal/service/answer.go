package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/raphaelgruber/docrelay/internal/db"
	"github.com/raphaelgruber/docrelay/internal/metrics"
	"github.com/raphaelgruber/docrelay/internal/models"
	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langchaingo/schema"
)

const answerTemplate = `You are a helpful AI assistant for {{.product}} documentation.
Use the following documentation context to answer the question accurately and concisely.

Important guidelines:
- Only answer based on the provided documentation context
- If the answer is not in the context, say "I don't have information about that in the documentation"
- Be clear, helpful, and accurate
- Keep answers concise but complete

Documentation Context:
{{.context}}

Question: {{.question}}

Answer:`

// previewRunes is the number of chunk runes shown in a source preview.
const previewRunes = 150

// TextGenerator completes a single prompt. *llm.Model satisfies it.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Answer is a grounded response with its citations.
type Answer struct {
	Answer   string          `json:"answer"`
	Sources  []models.Source `json:"sources"`
	Question string          `json:"question"`
}

// Responder answers questions from retrieved documentation chunks.
type Responder struct {
	retriever schema.Retriever
	model     TextGenerator
	prompt    prompts.PromptTemplate
	docsRoot  string
	metrics   *metrics.Collector
}

// NewResponder creates a responder. Source paths are reported relative to docsRoot.
func NewResponder(retriever schema.Retriever, model TextGenerator, product, docsRoot string, m *metrics.Collector) *Responder {
	return &Responder{
		retriever: retriever,
		model:     model,
		prompt:    newPrompt(answerTemplate, []string{"context", "question"}, product),
		docsRoot:  docsRoot,
		metrics:   m,
	}
}

func newPrompt(template string, inputs []string, product string) prompts.PromptTemplate {
	return prompts.PromptTemplate{
		Template:         template,
		InputVariables:   inputs,
		TemplateFormat:   prompts.TemplateFormatGoTemplate,
		PartialVariables: map[string]any{"product": product},
	}
}

// Ask retrieves context for question and asks the model. Model failures are
// returned unclassified; callers use llm.Classify to pick a remediation.
func (r *Responder) Ask(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.New("question is required")
	}

	docs, err := r.retrieve(ctx, question)
	if err != nil {
		return nil, err
	}

	prompt, err := r.prompt.Format(map[string]any{
		"context":  joinContext(docs),
		"question": question,
	})
	if err != nil {
		return nil, fmt.Errorf("format prompt: %w", err)
	}

	answer, err := r.model.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	sources := make([]models.Source, 0, len(docs))
	for _, d := range docs {
		sources = append(sources, r.source(d))
	}
	slog.Info("answer generated", "sources", len(sources))

	return &Answer{Answer: strings.TrimSpace(answer), Sources: sources, Question: question}, nil
}

func (r *Responder) retrieve(ctx context.Context, query string) ([]schema.Document, error) {
	start := time.Now()
	docs, err := r.retriever.GetRelevantDocuments(ctx, query)
	if r.metrics != nil {
		r.metrics.RecordTiming(metrics.OpRetrieval, time.Since(start))
	}
	if db.IsEmpty(err) {
		return nil, fmt.Errorf("retrieve documents: %w (rebuild it with `docrelay index --rebuild`)", err)
	}
	if err != nil {
		return nil, fmt.Errorf("retrieve documents: %w", err)
	}
	return docs, nil
}

func (r *Responder) source(d schema.Document) models.Source {
	file, _ := d.Metadata["source"].(string)
	if file == "" {
		file = "Unknown"
	} else if rel, err := filepath.Rel(r.docsRoot, file); err == nil {
		file = rel
	} else {
		file = filepath.Base(file)
	}
	return models.Source{
		File:    filepath.ToSlash(file),
		Preview: preview(d.PageContent),
	}
}

// preview returns the first previewRunes runes followed by "...".
func preview(s string) string {
	r := []rune(s)
	if len(r) > previewRunes {
		r = r[:previewRunes]
	}
	return string(r) + "..."
}

func joinContext(docs []schema.Document) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		parts = append(parts, d.PageContent)
	}
	return strings.Join(parts, "\n\n")
}
