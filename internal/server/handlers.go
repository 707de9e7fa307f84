package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/raphaelgruber/docrelay/internal/llm"
	"github.com/raphaelgruber/docrelay/internal/models"
)

type questionRequest struct {
	Question string `json:"question"`
}

type handlers struct {
	app    *App
	logger *slog.Logger
}

func (h *handlers) health(c *gin.Context) {
	info := h.app.Health
	resp := gin.H{
		"status":  "ok",
		"message": fmt.Sprintf("%s AI backend is running!", info.Product),
		"models": gin.H{
			"llm":        info.LLMModel,
			"embeddings": info.EmbedModel,
		},
		"file_type": info.FileType,
		"database":  info.Database,
	}
	if h.app.Metrics != nil {
		resp["stats"] = h.app.Metrics.Snapshot()
	}
	c.JSON(http.StatusOK, resp)
}

// bindQuestion decodes the body and writes the 400 response itself on failure.
func (h *handlers) bindQuestion(c *gin.Context) (string, bool) {
	var req questionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return "", false
	}
	q := strings.TrimSpace(req.Question)
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No question provided"})
		return "", false
	}
	return q, true
}

func (h *handlers) ask(c *gin.Context) {
	question, ok := h.bindQuestion(c)
	if !ok {
		return
	}
	h.logger.Info("question received", "question", truncate(question, maxArgLogLen))

	answer, err := h.app.Answerer.Ask(c.Request.Context(), question)
	if err != nil {
		_ = c.Error(err)
		label, text := Remediation(err, h.app.Health.LLMModel)
		c.JSON(http.StatusOK, gin.H{
			"error":   label,
			"answer":  text,
			"sources": []models.Source{},
		})
		return
	}
	c.JSON(http.StatusOK, answer)
}

func (h *handlers) suggestions(c *gin.Context) {
	question, ok := h.bindQuestion(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": h.app.Suggester.FollowUps(c.Request.Context(), question)})
}

func (h *handlers) sampleQuestions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"questions": h.app.Suggester.SampleQuestions(c.Request.Context())})
}

// Remediation returns the error label and user-facing advice for a failed
// answer. Typed model errors are trusted before falling back to the message.
func Remediation(err error, model string) (string, string) {
	kind, typed := llm.KindOf(err)
	if !typed {
		kind = llm.Classify(err)
	}
	switch kind {
	case llm.KindOutOfMemory:
		return "Model out of memory", "⚠️ **Memory Issue**\n\nThe AI model needs more RAM. Try:\n\n" +
			"1. Close other applications\n2. Restart Ollama: stop it, then run `ollama serve`\n" +
			"3. If problem persists, the model may be too large for your system\n\n" +
			"Please try your question again in a moment."
	case llm.KindModelNotFound:
		return "Model not found", fmt.Sprintf("⚠️ **Model Not Loaded**\n\nPlease run: `ollama pull %s`\n\nThen restart the backend.", model)
	default:
		return "AI service error", fmt.Sprintf("⚠️ **AI Service Error**\n\nThe AI encountered an issue: %s\n\nPlease try again or check the backend logs.", err)
	}
}
