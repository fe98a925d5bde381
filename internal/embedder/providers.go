package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// Provider configuration
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderLocal  = "local"

	// Environment variables holding API keys
	EnvJinaAPIKey   = "JINA_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"

	// Default models
	DefaultJinaModel   = "jina-embeddings-v2-base-code"
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultOllamaModel = "nomic-embed-text"
	DefaultLocalModel  = "local-hashed-tokens"

	// Default endpoints
	DefaultJinaURL   = "https://api.jina.ai/v1/embeddings"
	DefaultOpenAIURL = "https://api.openai.com/v1/embeddings"
	DefaultOllamaURL = "http://localhost:11434"

	// Dimensions
	JinaDimension   = 768
	OpenAIDimension = 1536
	OllamaDimension = 768
	LocalDimension  = 384

	// Batch limits
	DefaultBatchSize = 32
	MaxBatchSize     = 100

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0

	defaultHTTPTimeout   = 30 * time.Second
	defaultOllamaTimeout = 120 * time.Second
)

// wireFormat selects the request and response shape of an HTTP provider
type wireFormat int

const (
	// POST {model, input} -> {data: [{embedding, index}], model}
	wireOpenAI wireFormat = iota
	// POST /api/embed {model, input} -> {embeddings: [[...]]}
	wireOllama
)

// HTTPOptions configures a remote provider. Zero fields take the provider's defaults.
type HTTPOptions struct {
	APIKey    string
	Model     string
	BaseURL   string
	Dimension int
	Timeout   time.Duration
	Retry     *RetryConfig
}

// HTTPProvider implements Embedder over an HTTP embedding API. Jina and
// OpenAI share the OpenAI request shape; Ollama uses its own.
type HTTPProvider struct {
	name       string
	format     wireFormat
	endpoint   string
	apiKey     string
	model      string
	dimension  int
	httpClient *http.Client
	cache      *Cache
	retry      RetryConfig
}

// NewJinaProvider creates a Jina AI embedder
func NewJinaProvider(opts HTTPOptions, cache *Cache) (*HTTPProvider, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvJinaAPIKey)
	}
	return newHTTPProvider(ProviderJina, wireOpenAI, opts, DefaultJinaURL, DefaultJinaModel, JinaDimension, defaultHTTPTimeout, cache), nil
}

// NewOpenAIProvider creates an OpenAI embedder
func NewOpenAIProvider(opts HTTPOptions, cache *Cache) (*HTTPProvider, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvOpenAIAPIKey)
	}
	return newHTTPProvider(ProviderOpenAI, wireOpenAI, opts, DefaultOpenAIURL, DefaultOpenAIModel, OpenAIDimension, defaultHTTPTimeout, cache), nil
}

// NewOllamaProvider creates an embedder targeting an Ollama instance. BaseURL
// is the server root; the /api/embed path is appended.
func NewOllamaProvider(opts HTTPOptions, cache *Cache) (*HTTPProvider, error) {
	base := opts.BaseURL
	if base == "" {
		base = DefaultOllamaURL
	}
	opts.BaseURL = strings.TrimRight(base, "/") + "/api/embed"
	return newHTTPProvider(ProviderOllama, wireOllama, opts, "", DefaultOllamaModel, OllamaDimension, defaultOllamaTimeout, cache), nil
}

func newHTTPProvider(name string, format wireFormat, opts HTTPOptions, endpoint, model string, dim int, timeout time.Duration, cache *Cache) *HTTPProvider {
	if opts.BaseURL != "" {
		endpoint = opts.BaseURL
	}
	if opts.Model != "" {
		model = opts.Model
	}
	if opts.Dimension > 0 {
		dim = opts.Dimension
	}
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	retry := DefaultRetryConfig()
	if opts.Retry != nil {
		retry = *opts.Retry
	}
	return &HTTPProvider{
		name:       name,
		format:     format,
		endpoint:   endpoint,
		apiKey:     opts.APIKey,
		model:      model,
		dimension:  dim,
		httpClient: &http.Client{Timeout: timeout},
		cache:      cache,
		retry:      retry,
	}
}

func (p *HTTPProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{
		Texts: []string{req.Text},
		Model: req.Model,
	})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings[0], nil
}

// GenerateBatch embeds the texts not already cached in one API call
func (p *HTTPProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	embeddings := make([]*Embedding, len(req.Texts))
	hashes := make([]string, len(req.Texts))
	var missing []int
	for i, text := range req.Texts {
		hashes[i] = ComputeHash(text)
		if emb, ok := p.cache.Get(model, hashes[i]); ok {
			embeddings[i] = emb
			continue
		}
		missing = append(missing, i)
	}

	if len(missing) > 0 {
		texts := make([]string, len(missing))
		for j, i := range missing {
			texts[j] = req.Texts[i]
		}

		vectors, err := retryWithBackoff(ctx, p.retry, func() ([][]float32, error) {
			return p.callAPI(ctx, texts, model)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrProviderFailed, p.name, err)
		}

		for j, i := range missing {
			emb := &Embedding{
				Vector:    vectors[j],
				Dimension: len(vectors[j]),
				Provider:  p.name,
				Model:     model,
				Hash:      hashes[i],
			}
			p.cache.Set(model, hashes[i], emb)
			embeddings[i] = emb
		}
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   p.name,
		Model:      model,
	}, nil
}

func (p *HTTPProvider) callAPI(ctx context.Context, texts []string, model string) ([][]float32, error) {
	body, err := json.Marshal(map[string]interface{}{
		"input": texts,
		"model": model,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(bodyBytes))}
	}

	var vectors [][]float32
	switch p.format {
	case wireOllama:
		var apiResp struct {
			Embeddings [][]float32 `json:"embeddings"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		vectors = apiResp.Embeddings
	default:
		var apiResp struct {
			Data []struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			} `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		vectors = make([][]float32, len(apiResp.Data))
		for i, d := range apiResp.Data {
			idx := d.Index
			if idx < 0 || idx >= len(vectors) || vectors[idx] != nil {
				idx = i
			}
			vectors[idx] = d.Embedding
		}
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vectors))
	}
	for i, v := range vectors {
		if len(v) != p.dimension {
			return nil, fmt.Errorf("%w: embedding %d has %d values, want %d", ErrDimensionMismatch, i, len(v), p.dimension)
		}
	}
	return vectors, nil
}

func (p *HTTPProvider) Dimension() int {
	return p.dimension
}

func (p *HTTPProvider) Provider() string {
	return p.name
}

func (p *HTTPProvider) Model() string {
	return p.model
}

func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// LocalProvider embeds text offline by hashing identifier tokens into a
// fixed number of buckets. Texts sharing identifiers land near each other,
// which is enough for tests and air-gapped installs.
type LocalProvider struct {
	model     string
	dimension int
	cache     *Cache
}

// NewLocalProvider creates a local embedder. A non-positive dimension uses LocalDimension.
func NewLocalProvider(dimension int, cache *Cache) (*LocalProvider, error) {
	if dimension <= 0 {
		dimension = LocalDimension
	}
	return &LocalProvider{
		model:     DefaultLocalModel,
		dimension: dimension,
		cache:     cache,
	}, nil
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hash := ComputeHash(req.Text)
	if emb, ok := l.cache.Get(l.model, hash); ok {
		return emb, nil
	}

	emb := &Embedding{
		Vector:    NormalizeVector(l.hashTokens(req.Text)),
		Dimension: l.dimension,
		Provider:  ProviderLocal,
		Model:     l.model,
		Hash:      hash,
	}
	l.cache.Set(l.model, hash, emb)
	return emb, nil
}

// hashTokens adds one signed count per token and per lowercased token part
func (l *LocalProvider) hashTokens(text string) []float32 {
	vector := make([]float32, l.dimension)
	add := func(token string) {
		h := xxhash.Sum64String(token)
		sign := float32(1)
		if h&(1<<63) != 0 {
			sign = -1
		}
		vector[h%uint64(l.dimension)] += sign
	}

	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	for _, f := range fields {
		add(f)
		parts := splitIdentifier(f)
		if len(parts) > 1 {
			for _, part := range parts {
				add(strings.ToLower(part))
			}
		}
	}
	return vector
}

// splitIdentifier splits CamelCase and snake_case identifiers into words
func splitIdentifier(s string) []string {
	var parts []string
	var cur []rune
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case r == '_':
			if len(cur) > 0 {
				parts = append(parts, string(cur))
			}
			cur = cur[:0]
			continue
		case unicode.IsUpper(r) && len(cur) > 0:
			prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || (nextLower && unicode.IsUpper(runes[i-1])) {
				parts = append(parts, string(cur))
				cur = cur[:0]
			}
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		parts = append(parts, string(cur))
	}
	return parts
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := l.GenerateEmbedding(ctx, EmbeddingRequest{Text: text})
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		embeddings[i] = emb
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderLocal,
		Model:      l.model,
	}, nil
}

func (l *LocalProvider) Dimension() int {
	return l.dimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	return nil
}
