//go:build integration

package llm_test

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"testing"
	"time"

	"github.com/raphaelgruber/docrelay/internal/config"
	"github.com/raphaelgruber/docrelay/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const testEmbedModel = "all-minilm"

var ollamaHost string

// TestMain starts an Ollama container and pulls the embedding model once.
func TestMain(m *testing.M) {
	// Ryuk breaks in some CI sandboxes
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "ollama/ollama:latest",
			ExposedPorts: []string{"11434/tcp"},
			WaitingFor:   wait.ForListeningPort("11434/tcp").WithStartupTimeout(120 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start Ollama container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	if host == "" || host == "null" {
		host = "localhost"
	}
	port, err := container.MappedPort(ctx, "11434")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}
	ollamaHost = fmt.Sprintf("http://%s:%s", host, port.Port())

	code, _, err := container.Exec(ctx, []string{"ollama", "pull", testEmbedModel})
	if err != nil || code != 0 {
		log.Fatalf("Failed to pull %s (exit %d): %v", testEmbedModel, code, err)
	}

	exit := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(exit)
}

func newTestEmbedder(t *testing.T) *llm.Embedder {
	t.Helper()
	emb, err := llm.NewEmbedder(config.ProviderOllama, config.Config{
		OllamaHost: ollamaHost,
		EmbedModel: testEmbedModel,
	})
	require.NoError(t, err)
	return emb
}

func TestOllamaEmbedQuery(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	emb := newTestEmbedder(t)
	vec, err := emb.EmbedQuery(ctx, "How do I create an agent?")
	require.NoError(t, err)
	assert.Len(t, vec, emb.Dimension())
	assert.Equal(t, 384, emb.Dimension())
}

func TestOllamaEmbedDocumentsSimilarity(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	emb := newTestEmbedder(t)
	vecs, err := emb.EmbedDocuments(ctx, []string{
		"The cat sat on the mat.",
		"A cat was sitting on a mat.",
		"Database query optimization techniques.",
	})
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	sim := func(a, b []float32) float64 {
		var dot, na, nb float64
		for i := range a {
			dot += float64(a[i]) * float64(b[i])
			na += float64(a[i]) * float64(a[i])
			nb += float64(b[i]) * float64(b[i])
		}
		return dot / (math.Sqrt(na) * math.Sqrt(nb))
	}
	assert.Greater(t, sim(vecs[0], vecs[1]), sim(vecs[0], vecs[2]))
}
