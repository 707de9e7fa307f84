package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/raphaelgruber/docrelay/internal/metrics"
	"github.com/raphaelgruber/docrelay/internal/models"
	"github.com/raphaelgruber/docrelay/internal/server"
	"github.com/raphaelgruber/docrelay/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubAnswerer struct {
	answer *service.Answer
	err    error
	panic  bool
}

func (a *stubAnswerer) Ask(_ context.Context, q string) (*service.Answer, error) {
	if a.panic {
		panic("vector store exploded")
	}
	if a.err != nil {
		return nil, a.err
	}
	ans := *a.answer
	ans.Question = q
	return &ans, nil
}

type stubSuggester struct{ lastQuestion string }

func (s *stubSuggester) FollowUps(_ context.Context, q string) []string {
	s.lastQuestion = q
	return []string{"One question?", "Two question?", "Three question?"}
}

func (s *stubSuggester) SampleQuestions(context.Context) []string {
	return []string{"What is Kubiya?", "How do I get started?", "Where can I find examples?"}
}

func testApp(a *stubAnswerer) (*server.App, *stubSuggester) {
	sug := &stubSuggester{}
	return &server.App{
		Answerer:  a,
		Suggester: sug,
		Metrics:   metrics.NewCollector(),
		Health: server.HealthInfo{
			Product:    "Kubiya",
			LLMModel:   "llama3.2:1b",
			EmbedModel: "all-minilm",
			FileType:   "mdx",
			Database:   "index_db/index.db",
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, sug
}

func do(t *testing.T, h http.Handler, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func TestHealth(t *testing.T) {
	app, _ := testApp(&stubAnswerer{})
	code, body := do(t, server.NewRouter(app), http.MethodGet, "/api/health", "")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "Kubiya AI backend is running!", body["message"])
	assert.Equal(t, map[string]any{"llm": "llama3.2:1b", "embeddings": "all-minilm"}, body["models"])
	assert.Equal(t, "mdx", body["file_type"])
	assert.Contains(t, body, "stats")
}

func TestAskSuccess(t *testing.T) {
	app, _ := testApp(&stubAnswerer{answer: &service.Answer{
		Answer:  "Agents run workflows.",
		Sources: []models.Source{{File: "guides/agents.mdx", Preview: "Agents..."}},
	}})
	code, body := do(t, server.NewRouter(app), http.MethodPost, "/api/ask", `{"question":"  What are agents? "}`)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Agents run workflows.", body["answer"])
	assert.Equal(t, "What are agents?", body["question"])
	sources := body["sources"].([]any)
	require.Len(t, sources, 1)
	assert.Equal(t, "guides/agents.mdx", sources[0].(map[string]any)["file"])
}

func TestAskBadRequests(t *testing.T) {
	app, _ := testApp(&stubAnswerer{})
	router := server.NewRouter(app)

	code, body := do(t, router, http.MethodPost, "/api/ask", `{"question":"   "}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "No question provided", body["error"])

	code, body = do(t, router, http.MethodPost, "/api/ask", `{not json`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid request body", body["error"])

	code, _ = do(t, router, http.MethodPost, "/api/suggestions", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAskClassifiedFailuresReturn200(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		label string
		hint  string
	}{
		{"out of memory", errors.New("model requires more system memory (8 GiB)"), "Model out of memory", "Memory Issue"},
		{"model not found", errors.New(`model "llama3.2:1b" not found, try pulling it first`), "Model not found", "ollama pull llama3.2:1b"},
		{"generic", errors.New("connection refused"), "AI service error", "connection refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, _ := testApp(&stubAnswerer{err: tt.err})
			code, body := do(t, server.NewRouter(app), http.MethodPost, "/api/ask", `{"question":"hello there"}`)

			assert.Equal(t, http.StatusOK, code)
			assert.Equal(t, tt.label, body["error"])
			assert.Contains(t, body["answer"], tt.hint)
			assert.Equal(t, []any{}, body["sources"])
		})
	}
}

func TestAskPanicReturns500(t *testing.T) {
	app, _ := testApp(&stubAnswerer{panic: true})
	code, body := do(t, server.NewRouter(app), http.MethodPost, "/api/ask", `{"question":"boom?"}`)

	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Failed to process request", body["error"])
	assert.Equal(t, "vector store exploded", body["details"])
}

func TestSuggestionEndpoints(t *testing.T) {
	app, sug := testApp(&stubAnswerer{})
	router := server.NewRouter(app)

	code, body := do(t, router, http.MethodPost, "/api/suggestions", `{"question":"What is RBAC?"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, body["suggestions"], 3)
	assert.Equal(t, "What is RBAC?", sug.lastQuestion)

	code, body = do(t, router, http.MethodPost, "/api/sample-questions", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, body["questions"], 3)
}

func TestCORSPreflight(t *testing.T) {
	app, _ := testApp(&stubAnswerer{})
	req := httptest.NewRequest(http.MethodOptions, "/api/ask", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	server.NewRouter(app).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestsAreCounted(t *testing.T) {
	app, _ := testApp(&stubAnswerer{})
	router := server.NewRouter(app)
	do(t, router, http.MethodGet, "/api/health", "")
	do(t, router, http.MethodGet, "/api/health", "")

	snap := app.Metrics.Snapshot()
	require.NotNil(t, snap.Requests)
	assert.Equal(t, int64(2), snap.Requests.Count)
}

func TestFailedAnswersAreCountedAsFailures(t *testing.T) {
	app, _ := testApp(&stubAnswerer{err: errors.New("model crashed")})
	router := server.NewRouter(app)
	code, _ := do(t, router, http.MethodPost, "/api/ask", `{"question":"Why?"}`)
	require.Equal(t, http.StatusOK, code)

	snap := app.Metrics.Snapshot()
	require.NotNil(t, snap.Requests)
	assert.EqualValues(t, 1, snap.Requests.Failures)
}

func TestRemediation(t *testing.T) {
	label, text := server.Remediation(errors.New("model \"x\" not found"), "llama3.2:1b")
	assert.Equal(t, "Model not found", label)
	assert.Contains(t, text, "ollama pull llama3.2:1b")

	label, _ = server.Remediation(errors.New("insufficient memory"), "m")
	assert.Equal(t, "Model out of memory", label)

	label, text = server.Remediation(errors.New("connection refused"), "m")
	assert.Equal(t, "AI service error", label)
	assert.Contains(t, text, "connection refused")
}
