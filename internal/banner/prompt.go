package banner

import (
	"strings"

	"github.com/raphaelgruber/docrelay/internal/models"
)

// DefaultPromptStyle is used when BANNER_PROMPT_STYLE is unset.
const DefaultPromptStyle = "Minimal, modern blog banner; 1000x420 layout; no people/creatures; no fantasy; " +
	"abstract geometric accents only; soft gradients; high contrast; generous whitespace; " +
	"clear focal area for title; flat illustration; professional tech aesthetic."

const (
	contextWords  = 24
	maxCaptionLen = 200
)

// BuildPrompt creates an image-generation prompt for an article banner.
// The generated prompt asks for the exact title text and, when caption is
// non-empty, a bottom-left caption.
func BuildPrompt(title, text string, tags []string, caption, style string) string {
	words := strings.Fields(text)
	if len(words) > contextWords {
		words = words[:contextWords]
	}
	snippet := strings.Join(words, " ")

	tagLine := ""
	if len(tags) > 0 {
		tagLine = " Tags: " + strings.Join(tags, ", ") + "."
	}
	if strings.TrimSpace(style) == "" {
		style = DefaultPromptStyle
	}

	textInstructions := "IMPORTANT: Render the main title text EXACTLY as: '" + models.CollapseSpace(title) + "'. " +
		"Use a large, bold, legible sans-serif font (like Arial or Helvetica) centered prominently. " +
		"Ensure perfect spelling, high contrast, and zero OCR artifacts. " +
		"Text must be crystal clear and readable even at small sizes."

	captionInstructions := ""
	if caption != "" {
		short := models.Truncate(models.CollapseSpace(caption), maxCaptionLen, maxCaptionLen-3, "…")
		captionInstructions = " At bottom-left, render this caption EXACTLY (plain sans-serif, correctly spelled): '" + short + "'. " +
			"Caption must be high-contrast and fully legible with no decorative fonts."
	}

	prompt := "Wide 1024x576 blog banner for '" + title + "'. " +
		"Context: " + snippet + "." + tagLine + " " + style + " " + textInstructions + captionInstructions
	return strings.TrimSpace(prompt)
}

// titleFromPrompt recovers a banner title from a free-form prompt. It looks for
// "titled '…'" and then "for '…'", falling back to the whole prompt.
func titleFromPrompt(prompt string) string {
	for _, marker := range []string{"titled '", "for '"} {
		_, rest, ok := strings.Cut(prompt, marker)
		if !ok {
			continue
		}
		if title, _, ok := strings.Cut(rest, "'"); ok && strings.TrimSpace(title) != "" {
			return title
		}
	}
	return prompt
}
