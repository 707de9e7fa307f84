package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/raphaelgruber/docrelay/internal/models"
	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langchaingo/schema"
)

// SuggestionCount is the fixed number of questions every generator returns.
const SuggestionCount = 3

// Question length bounds, in runes.
const (
	minQuestionRunes = 8
	maxQuestionRunes = 80
)

const followUpTemplate = `You help users explore the {{.product}} documentation.
Based on the documentation excerpts and the user's question below, suggest exactly 3 short follow-up questions the user might ask next.
Respond with only a JSON array of 3 strings and nothing else.

Documentation:
{{.context}}

User question: {{.question}}

JSON array:`

const sampleTemplate = `You help new users explore the {{.product}} documentation.
Based on the documentation excerpts below, write exactly 3 short questions a newcomer could ask to get started.
Respond with only a JSON array of 3 strings and nothing else.

Documentation:
{{.context}}

JSON array:`

var (
	jsonArrayRegex   = regexp.MustCompile(`\[[\s\S]*?\]`)
	codeSpanRegex    = regexp.MustCompile("`([^`\n]{2,40})`")
	capitalizedRegex = regexp.MustCompile(`\b[A-Z][A-Za-z0-9]+(?:\s+[A-Z][A-Za-z0-9]+)*\b`)
	listMarkerRegex  = regexp.MustCompile(`^(?:[-*•]+|\d+[.)])\s*`)
)

// commonWords are capitalized only because they start a sentence.
var commonWords = map[string]bool{
	"The": true, "This": true, "That": true, "These": true, "Those": true, "You": true,
	"Your": true, "When": true, "What": true, "Use": true, "Using": true, "For": true,
	"If": true, "In": true, "It": true, "To": true, "And": true, "Or": true, "Note": true,
	"With": true, "We": true, "Our": true, "An": true, "On": true, "Of": true, "Each": true,
}

// Suggester produces follow-up and starter questions grounded in the docs.
type Suggester struct {
	retriever schema.Retriever
	model     TextGenerator
	product   string
	followUp  prompts.PromptTemplate
	sample    prompts.PromptTemplate
}

// NewSuggester creates a suggester for product's documentation.
func NewSuggester(retriever schema.Retriever, model TextGenerator, product string) *Suggester {
	return &Suggester{
		retriever: retriever,
		model:     model,
		product:   product,
		followUp:  newPrompt(followUpTemplate, []string{"context", "question"}, product),
		sample:    newPrompt(sampleTemplate, []string{"context"}, product),
	}
}

// FollowUps suggests questions to ask after question. It always returns
// exactly SuggestionCount questions, falling back to heuristics and fillers.
func (s *Suggester) FollowUps(ctx context.Context, question string) []string {
	return s.generate(ctx, question, s.followUp, map[string]any{"question": question})
}

// SampleQuestions suggests starter questions for the docs.
func (s *Suggester) SampleQuestions(ctx context.Context) []string {
	seed := fmt.Sprintf("What is %s and how do I get started?", s.product)
	return s.generate(ctx, seed, s.sample, map[string]any{})
}

func (s *Suggester) generate(ctx context.Context, query string, tmpl prompts.PromptTemplate, values map[string]any) []string {
	docs, err := s.retriever.GetRelevantDocuments(ctx, query)
	if err != nil {
		slog.Warn("suggestion retrieval failed, using fillers", "error", err)
		return s.finalize(nil)
	}
	excerpts := joinContext(docs)

	values["context"] = excerpts
	var candidates []string
	prompt, err := tmpl.Format(values)
	if err != nil {
		slog.Warn("format suggestion prompt", "error", err)
	} else if out, err := s.model.Generate(ctx, prompt); err != nil {
		slog.Warn("suggestion generation failed, using heuristics", "error", err)
	} else {
		candidates = ParseQuestions(out)
	}

	if len(normalizeAll(candidates)) < SuggestionCount {
		slog.Debug("model output unusable, extracting terms", "parsed", len(candidates))
		candidates = append(candidates, HeuristicQuestions(excerpts)...)
	}
	return s.finalize(candidates)
}

// finalize normalizes candidates and pads with fillers to exactly SuggestionCount.
func (s *Suggester) finalize(candidates []string) []string {
	out := normalizeAll(append(candidates, s.fillers()...))
	return out[:SuggestionCount]
}

func (s *Suggester) fillers() []string {
	return []string{
		fmt.Sprintf("What is %s?", s.product),
		"How do I get started?",
		"What are the main features?",
		"Where can I find examples?",
	}
}

// ParseQuestions reads the first JSON array in model output. Non-string
// entries are skipped. Unparseable output yields nil.
func ParseQuestions(output string) []string {
	match := jsonArrayRegex.FindString(output)
	if match == "" {
		return nil
	}
	var raw []any
	if err := json.Unmarshal([]byte(match), &raw); err != nil {
		return nil
	}
	var out []string
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// HeuristicQuestions builds templated questions from code spans, then
// capitalized phrases, found in text.
func HeuristicQuestions(text string) []string {
	var out []string
	for _, m := range codeSpanRegex.FindAllStringSubmatch(text, -1) {
		if term := strings.TrimSpace(m[1]); term != "" {
			out = append(out, fmt.Sprintf("How do I use %s?", term))
		}
	}
	for _, m := range capitalizedRegex.FindAllString(text, -1) {
		words := strings.Fields(m)
		for len(words) > 0 && commonWords[words[0]] {
			words = words[1:]
		}
		term := strings.Join(words, " ")
		if len(term) < 4 {
			continue
		}
		out = append(out, fmt.Sprintf("What is %s?", term))
	}
	return out
}

// normalizeAll normalizes and dedupes candidates, dropping unusable ones.
func normalizeAll(candidates []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		q, ok := NormalizeQuestion(c)
		if !ok {
			continue
		}
		key := strings.ToLower(q)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
	}
	return out
}

// NormalizeQuestion collapses whitespace, strips list markers and quotes, and
// ensures a single trailing "?". Results shorter than 8 runes are rejected;
// longer than 80 are cut to fit.
func NormalizeQuestion(s string) (string, bool) {
	q := models.CollapseSpace(s)
	q = listMarkerRegex.ReplaceAllString(q, "")
	q = strings.Trim(q, "\"'` ")
	q = strings.TrimRight(q, "?.!,;: ")
	if q == "" {
		return "", false
	}

	r := []rune(q)
	if len(r) > maxQuestionRunes-1 {
		q = strings.TrimRight(string(r[:maxQuestionRunes-1]), " ,;:")
	}
	q += "?"
	if len([]rune(q)) < minQuestionRunes {
		return "", false
	}
	return q, true
}
