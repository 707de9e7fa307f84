// Package config loads docrelay settings from the environment.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Provider names an LLM or embedding backend.
type Provider string

// Supported providers.
const (
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderBedrock   Provider = "bedrock"
)

// DefaultCompanyBlurb is appended as the About section when DEVTO_COMPANY_BLURB is unset.
const DefaultCompanyBlurb = "Infrasity helps early-stage B2B SaaS and DevTools startups with developer marketing through hands-on technical content. " +
	"We work on technical blogs, product documentation, and use-case driven guides built from real product workflows. " +
	"The focus is on reducing evaluation and onboarding friction for engineers. Everything we create is grounded in how developers actually discover and assess tools."

// Config holds all configuration values.
type Config struct {
	// Summarizer (hosted LLM)
	SummaryProvider Provider
	SummaryModel    string
	SummaryInput    string // "text" or "markdown"
	PrimaryKeyword  string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	AWSRegion       string

	// Banner
	BannerProvider       string // local, openai, auto
	BannerDir            string
	BannerBaseURL        string
	BannerPromptStyle    string
	BannerCaption        string
	BannerUploadProvider string
	BannerOutputSize     string
	BannerDumpJSON       string
	OpenAIImageModel     string
	OpenAIImageSize      string

	// GitHub upload target
	GitHubToken      string
	GitHubRepo       string
	GitHubBranch     string
	GitHubPathPrefix string

	// Dev.to
	DevtoAPIKey  string
	DevtoBaseURL string
	CompanyName  string
	CompanyBlurb string
	CanonicalURL string
	InlineBanner bool

	// Batch runner
	DataFile      string
	StateFile     string
	RunPublish    bool
	SheetRowIndex string

	// Docs QA
	DocsRoot       string
	DocsGlob       string
	IndexDir       string
	ProductName    string
	OllamaHost     string
	LLMModel       string
	LLMTemperature float64
	EmbedModel     string
	ChunkSize      int
	ChunkOverlap   int
	RetrievalK     int
	Port           string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from a .env file (if present) and environment variables.
func Load() Config {
	// Missing .env is fine; real env vars always win.
	_ = godotenv.Load()

	return Config{
		SummaryProvider: Provider(strings.ToLower(getEnv("SUMMARY_PROVIDER", string(ProviderOpenAI)))),
		SummaryModel:    getEnv("SUMMARY_MODEL", "gpt-4o-mini"),
		SummaryInput:    strings.ToLower(getEnv("SUMMARY_INPUT", "text")),
		PrimaryKeyword:  strings.TrimSpace(os.Getenv("PRIMARY_KEYWORD")),
		OpenAIAPIKey:    strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		AnthropicAPIKey: strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")),
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),

		BannerProvider:       strings.ToLower(getEnv("BANNER_PROVIDER", "auto")),
		BannerDir:            getEnv("BANNER_DIR", "static/banners"),
		BannerBaseURL:        strings.TrimSpace(os.Getenv("BANNER_BASE_URL")),
		BannerPromptStyle:    os.Getenv("BANNER_PROMPT_STYLE"),
		BannerCaption:        firstNonEmpty(os.Getenv("BANNER_CAPTION"), os.Getenv("DEVTO_COMPANY_BLURB"), DefaultCompanyBlurb),
		BannerUploadProvider: strings.ToLower(getEnv("BANNER_UPLOAD_PROVIDER", "github")),
		BannerOutputSize:     strings.TrimSpace(os.Getenv("BANNER_OUTPUT_SIZE")),
		BannerDumpJSON:       strings.TrimSpace(os.Getenv("BANNER_DUMP_JSON")),
		OpenAIImageModel:     getEnv("OPENAI_IMAGE_MODEL", "dall-e-3"),
		OpenAIImageSize:      getEnv("OPENAI_IMAGE_SIZE", "1024x1024"),

		GitHubToken:      strings.TrimSpace(os.Getenv("GITHUB_TOKEN")),
		GitHubRepo:       strings.TrimSpace(os.Getenv("GITHUB_REPO")),
		GitHubBranch:     getEnv("GITHUB_BRANCH", "main"),
		GitHubPathPrefix: getEnv("GITHUB_PATH_PREFIX", "banners"),

		DevtoAPIKey:  strings.TrimSpace(os.Getenv("DEVTO_API_KEY")),
		DevtoBaseURL: getEnv("DEVTO_BASE_URL", "https://dev.to"),
		CompanyName:  getEnv("COMPANY_NAME", "Infrasity"),
		CompanyBlurb: firstNonEmpty(os.Getenv("DEVTO_COMPANY_BLURB"), DefaultCompanyBlurb),
		CanonicalURL: strings.TrimSpace(os.Getenv("CANONICAL_URL")),
		InlineBanner: isTruthy(os.Getenv("INLINE_BANNER")),

		DataFile:      getEnv("DATA_FILE", "urls.json"),
		StateFile:     getEnv("STATE_FILE", "state/run_state.json"),
		RunPublish:    isTruthy(os.Getenv("RUN_PUBLISH")),
		SheetRowIndex: strings.TrimSpace(os.Getenv("SHEET_ROW_INDEX")),

		DocsRoot:       getEnv("DOCS_ROOT", ".."),
		DocsGlob:       getEnv("DOCS_GLOB", "**/*.mdx"),
		IndexDir:       getEnv("INDEX_DIR", "./index_db"),
		ProductName:    getEnv("PRODUCT_NAME", "Kubiya"),
		OllamaHost:     getEnv("OLLAMA_HOST", "http://localhost:11434"),
		LLMModel:       getEnv("LLM_MODEL", "llama3.2:1b"),
		LLMTemperature: getEnvFloat("LLM_TEMPERATURE", 0.7),
		EmbedModel:     getEnv("EMBED_MODEL", "all-minilm"),
		ChunkSize:      getEnvInt("CHUNK_SIZE", 500),
		ChunkOverlap:   getEnvInt("CHUNK_OVERLAP", 50),
		RetrievalK:     getEnvInt("RETRIEVAL_K", 2),
		Port:           getEnv("PORT", "5000"),

		LogFile:  getEnv("LOG_FILE", "/tmp/docrelay.log"),
		LogLevel: parseLogLevel(getEnv("LOG_LEVEL", "INFO")),
	}
}

func getEnv(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}

func getEnvFloat(key string, defaultVal float64) float64 {
	f, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultVal
	}
	return f
}

// isTruthy accepts 1/true/yes/on in any case.
func isTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
