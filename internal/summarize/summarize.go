// Package summarize turns an extracted article into a structured markdown post
// using a hosted language model.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/docrelay/internal/llm"
	"github.com/raphaelgruber/docrelay/internal/models"
)

// ErrMissingCredential is returned when the selected provider has no API key.
var ErrMissingCredential = errors.New("summarizer credential missing")

const (
	maxContentRunes = 15000
	maxPoints       = 8
	maxLinks        = 20
	minWords        = 800
	maxWords        = 1000
)

// Generator is the subset of llm.Model the summarizer needs.
type Generator interface {
	GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Input is everything the summarizer knows about the source article.
type Input struct {
	Title      string
	URL        string
	Content    string
	MainPoints []string
	Links      []models.Link
	BannerURL  string
	LockTitle  bool
}

// Summarizer produces the cross-post markdown.
type Summarizer struct {
	gen            Generator
	primaryKeyword string
}

// New creates a Summarizer. primaryKeyword falls back to the article title when empty.
func New(gen Generator, primaryKeyword string) *Summarizer {
	return &Summarizer{gen: gen, primaryKeyword: strings.TrimSpace(primaryKeyword)}
}

// NewFromModel builds the hosted model for opts and wraps it. A missing key
// is reported as ErrMissingCredential.
func NewFromModel(ctx context.Context, opts llm.Options, primaryKeyword string) (*Summarizer, error) {
	model, err := llm.NewModel(ctx, opts)
	if err != nil {
		if errors.Is(err, llm.ErrMissingCredential) {
			return nil, fmt.Errorf("%w: %w", ErrMissingCredential, err)
		}
		return nil, fmt.Errorf("create summary model: %w", err)
	}
	return New(model, primaryKeyword), nil
}

// Summarize calls the model once and returns trimmed markdown.
func (s *Summarizer) Summarize(ctx context.Context, in Input) (string, error) {
	keyword := s.primaryKeyword
	if keyword == "" {
		keyword = strings.TrimSpace(in.Title)
	}

	start := time.Now()
	out, err := s.gen.GenerateWithSystem(ctx, SystemPrompt(minWords, maxWords, keyword), Payload(in))
	if err != nil {
		return "", fmt.Errorf("summarize %s: %w", in.URL, err)
	}

	summary := strings.TrimSpace(out)
	slog.Info("summarized article", "url", in.URL, "words", len(strings.Fields(summary)), "duration_ms", time.Since(start).Milliseconds())
	return summary, nil
}

// SystemPrompt returns the fixed article structure and grounding instructions.
func SystemPrompt(lower, upper int, keyword string) string {
	structure := "Output must be markdown in this exact order:\n" +
		"1) Subtitle / Intro Hook (40-60 words): what they'll learn + who it's for\n" +
		"2) Introduction (100-130 words): define the topic plainly; include one explicit definition sentence; why it matters\n" +
		"3) Concept Explanation (H2, 150-200 words): stepwise explanation; short paragraphs; define jargon\n" +
		"4) How It Works / Process Breakdown (H2, 200-250 words): numbered steps for input -> processing -> output -> limitations\n" +
		"5) Practical Example / Use Case (H2, 150-200 words): real-world scenario; minimal code optional + explanation\n" +
		"6) Key Takeaways (H2, 3-5 bullets, 80-100 words total): each bullet is a complete sentence\n" +
		"7) Conclusion (H2, 60-80 words): recap value; no new ideas; neutral forward-looking close\n" +
		fmt.Sprintf("Rules: stay between %d-%d words total; use H2 headings; one idea per paragraph; avoid walls of text; ", lower, upper) +
		"neutral professional tone; active voice; no emojis; avoid fluff; do NOT include an H1 title.\n" +
		"Grounding rules (mandatory):\n" +
		"- Use ONLY the provided extracted content and provided links. Do not add tools/facts not present in the source.\n" +
		"- If a detail is missing from the source, keep it general and explicitly avoid specifics.\n" +
		"- Preserve important source links: include 2-6 of them where relevant (intro/process/example), without dumping an unrelated link list.\n" +
		"- Preserve and explicitly cover the provided main points from the source. Ensure each main point appears either in the body or the Key Takeaways; if a main point cannot be verified from the provided content, state that explicitly.\n" +
		fmt.Sprintf("SEO/LLM: Primary keyword is '%s'. Use it naturally in the Introduction and in at least one H2 heading. Avoid keyword stuffing.", keyword)

	return "You are a careful technical writer. Summarize the supplied article into markdown " +
		fmt.Sprintf("at %d-%d words. Use crisp, scannable wording. Never add fictional tools or facts. ", lower, upper) +
		structure
}

// Payload renders the user message sent with the system prompt.
func Payload(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Source title: %s\n", in.Title)
	fmt.Fprintf(&b, "Source URL: %s\n", in.URL)
	if in.BannerURL != "" {
		fmt.Fprintf(&b, "Banner URL (for cover image only, do not embed as first line): %s\n", in.BannerURL)
	} else {
		b.WriteString("Banner URL: (none)\n")
	}
	if in.LockTitle {
		b.WriteString("Title is locked; do not invent a new one.\n")
	}

	points := in.MainPoints
	if len(points) > maxPoints {
		points = points[:maxPoints]
	}
	if len(points) > 0 {
		b.WriteString("Main points (extracted from source):\n")
		for _, p := range points {
			fmt.Fprintf(&b, "- %s\n", p)
		}
		b.WriteString("\n")
	}

	if links := payloadLinks(in.Links, in.URL); len(links) > 0 {
		b.WriteString("Links (from source):\n")
		for _, l := range links {
			fmt.Fprintf(&b, "- [%s](%s)\n", l.Text, l.URL)
		}
		b.WriteString("\n")
	}

	b.WriteString("Content (may be truncated):\n")
	b.WriteString(models.Truncate(in.Content, maxContentRunes, maxContentRunes, ""))
	return b.String()
}

// payloadLinks dedupes links by URL, drops the source page itself and caps the list.
func payloadLinks(links []models.Link, source string) []models.Link {
	seen := map[string]bool{strings.TrimRight(source, "/"): true}
	out := make([]models.Link, 0, min(len(links), maxLinks))
	for _, l := range links {
		key := strings.TrimRight(strings.TrimSpace(l.URL), "/")
		if key == "" || seen[key] || strings.HasPrefix(key, "#") {
			continue
		}
		seen[key] = true
		text := models.CollapseSpace(l.Text)
		if text == "" {
			text = l.URL
		}
		out = append(out, models.Link{Text: text, URL: l.URL})
		if len(out) == maxLinks {
			break
		}
	}
	return out
}
