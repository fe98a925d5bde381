package embedder

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of embeddings kept when no size is given
const DefaultCacheSize = 10000

// Cache provides in-memory LRU caching of embeddings. Entries are keyed by
// model and content hash so switching models never serves stale vectors.
type Cache struct {
	cache *lru.Cache[string, *Embedding]
}

// NewCache creates a new embedding cache with LRU eviction
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = DefaultCacheSize
	}
	cache, err := lru.New[string, *Embedding](maxLen)
	if err != nil {
		cache, _ = lru.New[string, *Embedding](DefaultCacheSize)
	}
	return &Cache{cache: cache}
}

func cacheKey(model, hash string) string {
	return model + "\x00" + hash
}

// Get returns a copy of the cached embedding for model and hash
func (c *Cache) Get(model, hash string) (*Embedding, bool) {
	if c == nil {
		return nil, false
	}
	emb, ok := c.cache.Get(cacheKey(model, hash))
	if !ok {
		return nil, false
	}
	return copyEmbedding(emb), true
}

// Set stores a copy of emb
func (c *Cache) Set(model, hash string, emb *Embedding) {
	if c == nil || emb == nil {
		return
	}
	c.cache.Add(cacheKey(model, hash), copyEmbedding(emb))
}

// Size returns the current cache size
func (c *Cache) Size() int {
	if c == nil {
		return 0
	}
	return c.cache.Len()
}

// Clear empties the cache
func (c *Cache) Clear() {
	if c != nil {
		c.cache.Purge()
	}
}

func copyEmbedding(emb *Embedding) *Embedding {
	out := *emb
	out.Vector = append([]float32(nil), emb.Vector...)
	return &out
}
