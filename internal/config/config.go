// Package config loads cppcontext settings from a YAML file, a .env file and
// CPPCONTEXT_* environment variables, in increasing order of precedence.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dshills/cppcontext-mcp/internal/chunker"
	"github.com/dshills/cppcontext-mcp/internal/embedder"
	"github.com/dshills/cppcontext-mcp/internal/indexer"
	"github.com/dshills/cppcontext-mcp/internal/searcher"
	"github.com/dshills/cppcontext-mcp/pkg/types"
)

// DefaultFile is read when no path is given and it exists in the working directory
const DefaultFile = "cppcontext.yaml"

// Environment overrides
const (
	EnvIndexDir          = "CPPCONTEXT_INDEX_DIR"
	EnvRoots             = "CPPCONTEXT_ROOTS" // comma separated, each [origin=]path
	EnvChunkSize         = "CPPCONTEXT_CHUNK_SIZE"
	EnvChunkOverlap      = "CPPCONTEXT_CHUNK_OVERLAP"
	EnvWorkers           = "CPPCONTEXT_WORKERS"
	EnvEmbedderProvider  = "CPPCONTEXT_EMBEDDER_PROVIDER"
	EnvEmbedderModel     = "CPPCONTEXT_EMBEDDER_MODEL"
	EnvEmbedderAPIKey    = "CPPCONTEXT_EMBEDDER_API_KEY"
	EnvEmbedderBaseURL   = "CPPCONTEXT_EMBEDDER_BASE_URL"
	EnvEmbedderDimension = "CPPCONTEXT_EMBEDDER_DIMENSION"
	EnvCacheBackend      = "CPPCONTEXT_CACHE_BACKEND"
	EnvRedisURL          = "CPPCONTEXT_REDIS_URL"
	EnvLogLevel          = "CPPCONTEXT_LOG_LEVEL"
)

// Cache backends
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config is the complete runtime configuration
type Config struct {
	Index     IndexConfig     `yaml:"index"`
	Roots     []indexer.Root  `yaml:"roots"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Search    SearchConfig    `yaml:"search"`
	Watch     WatchConfig     `yaml:"watch"`
	Log       LogConfig       `yaml:"log"`
}

type IndexConfig struct {
	Dir     string `yaml:"dir"`
	Workers int    `yaml:"workers"`
}

type DiscoveryConfig struct {
	ExcludeDirs []string `yaml:"exclude_dirs"`
	Include     []string `yaml:"include"`
	Exclude     []string `yaml:"exclude"`
	Extensions  []string `yaml:"extensions"`
}

type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

type EmbedderConfig struct {
	Provider  string        `yaml:"provider"` // jina, openai, ollama, local or auto
	Model     string        `yaml:"model"`
	APIKey    string        `yaml:"api_key"`
	BaseURL   string        `yaml:"base_url"`
	Dimension int           `yaml:"dimension"`
	Timeout   time.Duration `yaml:"timeout"`
	CacheSize int           `yaml:"cache_size"`
	BatchSize int           `yaml:"batch_size"`
	MaxChars  int           `yaml:"max_chars"`
}

type SearchConfig struct {
	TopK  int         `yaml:"top_k"`
	Cache CacheConfig `yaml:"cache"`
}

type CacheConfig struct {
	Backend  string        `yaml:"backend"` // none, memory or redis
	Size     int           `yaml:"size"`
	TTL      time.Duration `yaml:"ttl"`
	RedisURL string        `yaml:"redis_url"`
}

type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns a configuration indexing the working directory as a
// project root with the local embedder.
func Default() *Config {
	return &Config{
		Index: IndexConfig{Dir: ".cppcontext"},
		Roots: []indexer.Root{{Path: ".", Origin: types.OriginProject}},
		Chunking: ChunkingConfig{
			Size:    chunker.DefaultChunkSize,
			Overlap: chunker.DefaultOverlap,
		},
		Embedder: EmbedderConfig{
			Provider:  embedder.ProviderAuto,
			CacheSize: embedder.DefaultCacheSize,
			BatchSize: embedder.DefaultBatchSize,
		},
		Search: SearchConfig{
			TopK: searcher.DefaultTopK,
			Cache: CacheConfig{
				Backend: CacheMemory,
				Size:    searcher.DefaultCacheSize,
				TTL:     searcher.DefaultCacheTTL,
			},
		},
		Watch: WatchConfig{Debounce: indexer.DefaultDebounce},
		Log:   LogConfig{Level: "info"},
	}
}

// Load builds the configuration. An empty path reads DefaultFile when
// present; a named file must exist. A .env file in the working directory is
// loaded first and never overrides variables already set.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		cfg.resolveRelative(filepath.Dir(path))
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveRelative anchors relative paths from a config file at its directory
func (c *Config) resolveRelative(base string) {
	if c.Index.Dir != "" && !filepath.IsAbs(c.Index.Dir) {
		c.Index.Dir = filepath.Join(base, c.Index.Dir)
	}
	for i, r := range c.Roots {
		if r.Path != "" && !filepath.IsAbs(r.Path) {
			c.Roots[i].Path = filepath.Join(base, r.Path)
		}
	}
}

// ApplyEnv overrides fields from CPPCONTEXT_* variables
func (c *Config) ApplyEnv() error {
	setString(&c.Index.Dir, EnvIndexDir)
	setString(&c.Embedder.Provider, EnvEmbedderProvider)
	setString(&c.Embedder.Model, EnvEmbedderModel)
	setString(&c.Embedder.APIKey, EnvEmbedderAPIKey)
	setString(&c.Embedder.BaseURL, EnvEmbedderBaseURL)
	setString(&c.Search.Cache.Backend, EnvCacheBackend)
	setString(&c.Search.Cache.RedisURL, EnvRedisURL)
	setString(&c.Log.Level, EnvLogLevel)

	for env, dst := range map[string]*int{
		EnvChunkSize:         &c.Chunking.Size,
		EnvChunkOverlap:      &c.Chunking.Overlap,
		EnvWorkers:           &c.Index.Workers,
		EnvEmbedderDimension: &c.Embedder.Dimension,
	} {
		if err := setInt(dst, env); err != nil {
			return err
		}
	}

	if v := os.Getenv(EnvRoots); v != "" {
		roots, err := ParseRoots(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRoots, err)
		}
		c.Roots = roots
	}
	return nil
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setInt(dst *int, env string) error {
	v := os.Getenv(env)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %q is not an integer", env, v)
	}
	*dst = n
	return nil
}

// ParseRoots parses a comma separated list of [origin=]path entries.
// Entries without an origin are project roots.
func ParseRoots(s string) ([]indexer.Root, error) {
	roots := make([]indexer.Root, 0)
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		root := indexer.Root{Path: entry, Origin: types.OriginProject}
		if origin, path, ok := strings.Cut(entry, "="); ok {
			root.Origin = types.Origin(strings.ToLower(strings.TrimSpace(origin)))
			root.Path = strings.TrimSpace(path)
		}
		if err := validateRoot(root); err != nil {
			return nil, err
		}
		roots = append(roots, root)
	}
	if len(roots) == 0 {
		return nil, errors.New("no roots given")
	}
	return roots, nil
}

func validateRoot(r indexer.Root) error {
	if r.Path == "" {
		return errors.New("root path cannot be empty")
	}
	switch r.Origin {
	case types.OriginEngine, types.OriginProject:
		return nil
	default:
		return fmt.Errorf("root %s: origin must be engine or project, got %q", r.Path, r.Origin)
	}
}

// Validate checks the configuration for inconsistent values
func (c *Config) Validate() error {
	if c.Index.Dir == "" {
		return errors.New("index.dir cannot be empty")
	}
	if c.Index.Workers < 0 {
		return errors.New("index.workers cannot be negative")
	}
	if len(c.Roots) == 0 {
		return errors.New("at least one root is required")
	}
	for _, r := range c.Roots {
		if err := validateRoot(r); err != nil {
			return err
		}
	}
	if err := c.DiscoveryOptions().Validate(); err != nil {
		return fmt.Errorf("discovery: %w", err)
	}

	if c.Chunking.Size <= 0 {
		return errors.New("chunking.size must be positive")
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be in [0, %d), got %d", c.Chunking.Size, c.Chunking.Overlap)
	}

	switch strings.ToLower(c.Embedder.Provider) {
	case "", embedder.ProviderAuto, embedder.ProviderJina, embedder.ProviderOpenAI, embedder.ProviderOllama, embedder.ProviderLocal:
	default:
		return fmt.Errorf("embedder.provider: unknown provider %q", c.Embedder.Provider)
	}
	if c.Embedder.Dimension < 0 {
		return errors.New("embedder.dimension cannot be negative")
	}
	if c.Embedder.BatchSize < 0 || c.Embedder.BatchSize > embedder.MaxBatchSize {
		return fmt.Errorf("embedder.batch_size must be at most %d", embedder.MaxBatchSize)
	}

	if c.Search.TopK <= 0 || c.Search.TopK > searcher.MaxTopK {
		return fmt.Errorf("search.top_k must be in [1, %d]", searcher.MaxTopK)
	}
	switch c.Search.Cache.Backend {
	case CacheNone, CacheMemory:
	case CacheRedis:
		if c.Search.Cache.RedisURL == "" {
			return errors.New("search.cache.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("search.cache.backend: unknown backend %q", c.Search.Cache.Backend)
	}

	if c.Watch.Debounce < 0 {
		return errors.New("watch.debounce cannot be negative")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses Log.Level
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// DiscoveryOptions converts the discovery section
func (c *Config) DiscoveryOptions() indexer.DiscoveryOptions {
	return indexer.DiscoveryOptions{
		ExcludeDirs: c.Discovery.ExcludeDirs,
		Include:     c.Discovery.Include,
		Exclude:     c.Discovery.Exclude,
		Extensions:  c.Discovery.Extensions,
	}
}

// IndexerConfig returns the build configuration for one run
func (c *Config) IndexerConfig(incremental, force bool) indexer.Config {
	return indexer.Config{
		Roots:       append([]indexer.Root(nil), c.Roots...),
		Discovery:   c.DiscoveryOptions(),
		ChunkSize:   c.Chunking.Size,
		Overlap:     c.Chunking.Overlap,
		Workers:     c.Index.Workers,
		Incremental: incremental,
		Force:       force,
	}
}

// EmbedderConfig returns the provider configuration
func (c *Config) EmbedderConfig() embedder.Config {
	return embedder.Config{
		Provider:  c.Embedder.Provider,
		APIKey:    c.Embedder.APIKey,
		Model:     c.Embedder.Model,
		BaseURL:   c.Embedder.BaseURL,
		Dimension: c.Embedder.Dimension,
		Timeout:   c.Embedder.Timeout,
		CacheSize: c.Embedder.CacheSize,
	}
}

// HandleOptions returns the batching options for the provider handle
func (c *Config) HandleOptions(logger *slog.Logger) embedder.HandleOptions {
	return embedder.HandleOptions{
		BatchSize: c.Embedder.BatchSize,
		MaxChars:  c.Embedder.MaxChars,
		Logger:    logger,
	}
}

// ResultCache opens the configured query cache. The none backend yields nil.
func (c *Config) ResultCache(ctx context.Context) (searcher.ResultCache, error) {
	switch c.Search.Cache.Backend {
	case CacheMemory:
		return searcher.NewMemoryCache(c.Search.Cache.Size, c.Search.Cache.TTL)
	case CacheRedis:
		return searcher.NewRedisCache(ctx, searcher.RedisOptions{
			URL: c.Search.Cache.RedisURL,
			TTL: c.Search.Cache.TTL,
		})
	default:
		return nil, nil
	}
}
