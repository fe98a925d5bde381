package searcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"

	"github.com/dshills/cppcontext-mcp/pkg/types"
)

// Cache defaults
const (
	DefaultCacheSize = 1000
	DefaultCacheTTL  = 10 * time.Minute
	redisKeyPrefix   = "cppcontext:query:"
)

// ResultCache stores query responses keyed by CacheKey
type ResultCache interface {
	Get(ctx context.Context, key string) (*types.QueryResponse, bool)
	Set(ctx context.Context, key string, resp *types.QueryResponse) error
	Purge(ctx context.Context) error
	Close() error
}

// CacheKey hashes everything that affects a response. The build id makes
// entries from older builds unreachable.
func CacheKey(buildID string, req QueryRequest) string {
	h := xxhash.New()
	write := func(parts ...string) {
		for _, p := range parts {
			_, _ = h.WriteString(p)
			_, _ = h.Write([]byte{0})
		}
	}
	write(buildID, strings.TrimSpace(req.Question), strconv.Itoa(req.TopK))
	write(req.Scope.PathContains)
	write(req.Scope.Extensions...)
	if req.Filters != nil {
		write(string(req.Filters.EntityType), req.Filters.HasMacro, string(req.Filters.Origin),
			string(req.Filters.FileKind), strconv.FormatBool(req.Filters.BoostMacros))
		write(req.Filters.BoostEntities...)
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

// cacheEntry represents a cached response with expiration time
type cacheEntry struct {
	response  *types.QueryResponse
	expiresAt time.Time
}

// MemoryCache is an in-process LRU with per-entry expiry
type MemoryCache struct {
	cache *lru.Cache[string, *cacheEntry]
	ttl   time.Duration
	mu    sync.Mutex
	now   func() time.Time
}

// NewMemoryCache creates an LRU cache holding up to size responses for ttl
func NewMemoryCache(size int, ttl time.Duration) (*MemoryCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	cache, err := lru.New[string, *cacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	return &MemoryCache{cache: cache, ttl: ttl, now: time.Now}, nil
}

func (c *MemoryCache) Get(_ context.Context, key string) (*types.QueryResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.cache.Remove(key)
		return nil, false
	}
	return copyResponse(entry.response), true
}

func (c *MemoryCache) Set(_ context.Context, key string, resp *types.QueryResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(key, &cacheEntry{response: copyResponse(resp), expiresAt: c.now().Add(c.ttl)})
	return nil
}

func (c *MemoryCache) Purge(context.Context) error {
	c.mu.Lock()
	c.cache.Purge()
	c.mu.Unlock()
	return nil
}

// Len returns the number of cached entries, including expired ones not yet evicted
func (c *MemoryCache) Len() int {
	return c.cache.Len()
}

func (c *MemoryCache) Close() error { return nil }

// copyResponse deep-copies the slices a caller could mutate
func copyResponse(src *types.QueryResponse) *types.QueryResponse {
	if src == nil {
		return nil
	}
	dst := *src
	if src.DefinitionResults != nil {
		dst.DefinitionResults = make([]types.DefinitionResult, len(src.DefinitionResults))
		for i, d := range src.DefinitionResults {
			dst.DefinitionResults[i] = d
			if d.Entity != nil {
				dst.DefinitionResults[i].Entity = d.Entity.Clone()
			}
		}
	}
	if src.SemanticResults != nil {
		dst.SemanticResults = append([]types.SemanticResult(nil), src.SemanticResults...)
	}
	return &dst
}

// RedisOptions configures the shared cache
type RedisOptions struct {
	URL    string // redis://[:password@]host:port/db
	TTL    time.Duration
	Prefix string
}

// RedisCache shares responses between server processes
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(ctx context.Context, opts RedisOptions) (*RedisCache, error) {
	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	redisOpts.MaxRetries = 3
	redisOpts.DialTimeout = 2 * time.Second
	redisOpts.ReadTimeout = 2 * time.Second
	redisOpts.WriteTimeout = 2 * time.Second

	client := redis.NewClient(redisOpts)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisCache(client, opts), nil
}

func newRedisCache(client *redis.Client, opts RedisOptions) *RedisCache {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = redisKeyPrefix
	}
	return &RedisCache{client: client, ttl: ttl, prefix: prefix}
}

func (r *RedisCache) Get(ctx context.Context, key string) (*types.QueryResponse, bool) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	var resp types.QueryResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, false
	}
	return &resp, true
}

func (r *RedisCache) Set(ctx context.Context, key string, resp *types.QueryResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}
	return r.client.Set(ctx, r.prefix+key, data, r.ttl).Err()
}

// Purge deletes every key under the prefix
func (r *RedisCache) Purge(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
	}
	return iter.Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

var (
	_ ResultCache = (*MemoryCache)(nil)
	_ ResultCache = (*RedisCache)(nil)
)
