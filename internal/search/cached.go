package search

import (
	"context"
	"sync"
	"time"

	"github.com/meetsense/platform/internal/dedup"
)

// VectorSearcher is the slice of the client the cache needs.
type VectorSearcher interface {
	SearchByVector(ctx context.Context, vector []float32, limit int) ([]Passage, error)
}

// Cached rate-limits historical enrichment to one real search per interval.
// Within the interval a query that is close enough to the last one reuses the
// cached results; anything else gets nothing rather than another call.
type Cached struct {
	inner VectorSearcher
	embed Embedder

	interval   time.Duration
	reuseScore float64

	mu           sync.Mutex
	lastAt       time.Time
	lastQueryEmb []float32
	lastResults  []Passage
}

// NewCached wraps a searcher with the rate-limit/reuse policy.
func NewCached(inner VectorSearcher, embed Embedder, interval time.Duration, reuseScore float64) *Cached {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if reuseScore <= 0 {
		reuseScore = 0.9
	}
	return &Cached{inner: inner, embed: embed, interval: interval, reuseScore: reuseScore}
}

// Search returns related passages for the query, honoring the rate limit.
// A nil result with nil error means enrichment was skipped this round.
func (c *Cached) Search(ctx context.Context, query string, limit int) ([]Passage, error) {
	embs, err := c.embed.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	queryEmb := embs[0]

	c.mu.Lock()
	withinInterval := time.Since(c.lastAt) < c.interval
	if withinInterval {
		if dedup.Cosine(queryEmb, c.lastQueryEmb) >= c.reuseScore {
			results := c.lastResults
			c.mu.Unlock()
			return results, nil
		}
		c.mu.Unlock()
		return nil, nil
	}
	c.mu.Unlock()

	results, err := c.inner.SearchByVector(ctx, queryEmb, limit)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.lastAt = time.Now()
	c.lastQueryEmb = queryEmb
	c.lastResults = results
	c.mu.Unlock()
	return results, nil
}
