package embedder

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/54b3r/ragpdf-go/internal/rag"
)

// Backend names accepted by EMBEDDING_PROVIDER.
const (
	BackendOpenAI = "openai"
	BackendAzure  = "azure"
	BackendOllama = "ollama"
	BackendGemini = "gemini"
)

// Default embedding models per backend.
const (
	defaultOpenAIModel = "text-embedding-3-large"
	defaultOllamaModel = "nomic-embed-text"
	defaultGeminiModel = "gemini-embedding-001"

	defaultOllamaHost       = "http://localhost:11434"
	defaultOpenAIBaseURL    = "https://api.openai.com/v1"
	defaultAzureAPIVersion  = "2025-04-01-preview"
	defaultOllamaDimensions = 768
)

// DefaultDimensions returns the embedding vector size the given backend
// produces by default. EMBEDDING_DIMENSIONS always takes precedence when set.
// The vector store collection must be created with this size.
func DefaultDimensions(backend string) int {
	if v := getEnvInt("EMBEDDING_DIMENSIONS", 0); v > 0 {
		return v
	}
	if backend == BackendOllama {
		// nomic-embed-text is fixed at 768 and Ollama cannot truncate.
		return defaultOllamaDimensions
	}
	return rag.DefaultDimensions
}

// Settings is the resolved embedding configuration.
type Settings struct {
	Backend    string
	Model      string
	APIKey     string
	Endpoint   string
	APIVersion string
	Dimensions int
}

// ResolveBackend returns the effective embedding backend: EMBEDDING_PROVIDER,
// then MODEL_PROVIDER, then openai.
func ResolveBackend() string {
	if b := getEnv("EMBEDDING_PROVIDER"); b != "" {
		return b
	}
	return getEnvOrDefault("MODEL_PROVIDER", BackendOpenAI)
}

// SettingsFromEnv resolves Settings using cascading defaults that inherit
// from the chat provider configuration when embedding-specific overrides are
// not set.
//
// Resolution order:
//
//  1. EMBEDDING_PROVIDER, else MODEL_PROVIDER, else openai
//  2. Per-backend credentials are inherited from the chat provider's env vars
//  3. EMBEDDING_MODEL overrides the default model for the resolved backend
//  4. EMBEDDING_API_KEY overrides the inherited API key
//  5. EMBEDDING_ENDPOINT overrides the inherited endpoint
//  6. EMBEDDING_DIMENSIONS overrides the default dimensions
func SettingsFromEnv() (*Settings, error) {
	backend := ResolveBackend()
	s := &Settings{
		Backend:    backend,
		Dimensions: DefaultDimensions(backend),
	}

	switch backend {
	case BackendOllama:
		s.Endpoint = firstNonEmpty(getEnv("EMBEDDING_ENDPOINT"), getEnv("OLLAMA_HOST"), defaultOllamaHost)
		s.Model = getEnvOrDefault("EMBEDDING_MODEL", defaultOllamaModel)

	case BackendOpenAI:
		s.APIKey = firstNonEmpty(getEnv("EMBEDDING_API_KEY"), getEnv("OPENAI_API_KEY"))
		if s.APIKey == "" {
			return nil, fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		s.Endpoint = firstNonEmpty(getEnv("EMBEDDING_ENDPOINT"), getEnv("OPENAI_BASE_URL"), defaultOpenAIBaseURL)
		s.Model = getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel)

	case BackendAzure:
		s.APIKey = firstNonEmpty(getEnv("EMBEDDING_API_KEY"), getEnv("AZURE_OPENAI_API_KEY"))
		if s.APIKey == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		s.Endpoint = firstNonEmpty(getEnv("EMBEDDING_ENDPOINT"), getEnv("AZURE_OPENAI_ENDPOINT"))
		if s.Endpoint == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
		s.APIVersion = getEnvOrDefault("AZURE_OPENAI_API_VERSION", defaultAzureAPIVersion)
		s.Model = getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel)

	case BackendGemini:
		s.APIKey = firstNonEmpty(getEnv("EMBEDDING_API_KEY"), getEnv("GOOGLE_API_KEY"))
		if s.APIKey == "" {
			return nil, fmt.Errorf("embedder: gemini requires GOOGLE_API_KEY or EMBEDDING_API_KEY")
		}
		s.Model = getEnvOrDefault("EMBEDDING_MODEL", defaultGeminiModel)

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q (valid: openai, azure, ollama, gemini)", backend)
	}

	return s, nil
}

// New constructs a rag.Embedder from resolved settings.
func New(ctx context.Context, s *Settings) (rag.Embedder, error) {
	switch s.Backend {
	case BackendOllama:
		return NewOllamaEmbedder(&OllamaConfig{
			Host:  s.Endpoint,
			Model: s.Model,
		}), nil
	case BackendOpenAI:
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    s.Endpoint,
			APIKey:     s.APIKey,
			Model:      s.Model,
			Dimensions: s.Dimensions,
		}), nil
	case BackendAzure:
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    s.Endpoint + "/openai",
			APIKey:     s.APIKey,
			Model:      s.Model,
			Dimensions: s.Dimensions,
			Azure:      true,
			APIVersion: s.APIVersion,
		}), nil
	case BackendGemini:
		return NewGeminiEmbedder(ctx, &GeminiConfig{
			APIKey:     s.APIKey,
			Model:      s.Model,
			Dimensions: s.Dimensions,
		})
	default:
		return nil, fmt.Errorf("embedder: unknown backend %q", s.Backend)
	}
}

// NewFromEnv resolves settings from the environment and constructs the
// matching embedder.
func NewFromEnv(ctx context.Context) (rag.Embedder, *Settings, error) {
	s, err := SettingsFromEnv()
	if err != nil {
		return nil, nil, err
	}
	emb, err := New(ctx, s)
	if err != nil {
		return nil, nil, err
	}
	return emb, s, nil
}

// getEnv returns the value of the named environment variable, or empty string.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
