// Package embedder turns chunk text and questions into vectors.
//
// Providers implement the Embedder interface: Jina and OpenAI over their
// HTTP embedding APIs, Ollama over /api/embed, and an offline local
// provider that hashes identifier tokens.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{Provider: "auto", CacheSize: 10000})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	h := embedder.NewHandle(emb, embedder.HandleOptions{BatchSize: 32})
//	defer h.Close()
//
//	vectors, stats, err := h.EmbedAll(ctx, texts)
//	// len(vectors) == len(texts), always
//
// # The Handle
//
// Providers are treated as heavy resources that may not tolerate concurrent
// calls. A Handle owns one provider and serializes every call through it.
// Index builds and query serving share the same Handle.
//
// EmbedAll never drops a text. A failed batch is retried one text at a
// time with the text truncated to MaxChars, and a text that still fails is
// given an all-zero vector of the provider's dimension. Returned vectors are
// L2-normalized so stores can score with a plain dot product.
//
// # Provider Selection
//
// With Provider "auto" (or empty):
//
//  1. JINA_API_KEY set → Jina
//  2. OPENAI_API_KEY set → OpenAI
//  3. otherwise → local
//
// Ollama is never auto-selected; set Provider to "ollama" and optionally
// BaseURL (default http://localhost:11434).
//
// # Retries
//
// HTTP providers retry transient failures with exponential backoff
// (DefaultRetryConfig). Client errors other than 408 and 429, and
// responses with the wrong dimension, are not retried.
//
// # Caching
//
// A Cache keyed by model and SHA-256 of the text avoids re-embedding
// identical chunks within a process. Cached vectors are copied on the way
// in and out.
package embedder
