package embedder

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// ProviderAuto picks a provider from the API keys present in the environment
const ProviderAuto = "auto"

// Config holds embedder configuration
type Config struct {
	Provider  string // jina, openai, ollama, local or auto
	APIKey    string
	Model     string
	BaseURL   string
	Dimension int
	Timeout   time.Duration
	CacheSize int
}

// New creates the configured provider. An empty or "auto" provider is
// resolved with DetectProvider; an empty API key falls back to the
// provider's environment variable.
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" || provider == ProviderAuto {
		provider = DetectProvider()
	}

	opts := HTTPOptions{
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		BaseURL:   cfg.BaseURL,
		Dimension: cfg.Dimension,
		Timeout:   cfg.Timeout,
	}

	switch provider {
	case ProviderJina:
		if opts.APIKey == "" {
			opts.APIKey = os.Getenv(EnvJinaAPIKey)
		}
		return NewJinaProvider(opts, cache)
	case ProviderOpenAI:
		if opts.APIKey == "" {
			opts.APIKey = os.Getenv(EnvOpenAIAPIKey)
		}
		return NewOpenAIProvider(opts, cache)
	case ProviderOllama:
		return NewOllamaProvider(opts, cache)
	case ProviderLocal:
		return NewLocalProvider(cfg.Dimension, cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider returns the provider auto-selection would use:
// Jina when JINA_API_KEY is set, then OpenAI, else the local provider.
func DetectProvider() string {
	if os.Getenv(EnvJinaAPIKey) != "" {
		return ProviderJina
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}
	return ProviderLocal
}
