// Package dedup prevents near-duplicate insight emission within a session.
package dedup

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Default thresholds and bounds
const (
	DefaultCapacity           = 200
	DefaultDuplicateThreshold = 0.85
	DefaultUpdateThreshold    = 0.75
)

// Verdict is the outcome of a similarity check.
type Verdict int

const (
	Unique Verdict = iota
	PossibleUpdate
	Duplicate
)

func (v Verdict) String() string {
	return [...]string{"unique", "possible_update", "duplicate"}[v]
}

// Match carries the verdict and the closest cached insight.
type Match struct {
	Verdict    Verdict
	InsightID  uuid.UUID
	Similarity float64
}

type entry struct {
	embedding []float32
	id        uuid.UUID
	at        time.Time
}

// Cache holds a bounded rolling set of (embedding, insight id) pairs for one
// session. Linear cosine scan; fine at this scale.
type Cache struct {
	mu        sync.Mutex
	entries   []entry
	capacity  int
	dupThresh float64
	updThresh float64
}

// Config holds cache thresholds.
type Config struct {
	Capacity           int
	DuplicateThreshold float64
	UpdateThreshold    float64
}

// New creates a dedup cache.
func New(cfg Config) *Cache {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.DuplicateThreshold <= 0 {
		cfg.DuplicateThreshold = DefaultDuplicateThreshold
	}
	if cfg.UpdateThreshold <= 0 {
		cfg.UpdateThreshold = DefaultUpdateThreshold
	}
	return &Cache{
		capacity:  cfg.Capacity,
		dupThresh: cfg.DuplicateThreshold,
		updThresh: cfg.UpdateThreshold,
	}
}

// Check scans the cache for the closest match to the candidate embedding.
// Above the duplicate threshold the caller must suppress; in the update band
// the caller decides whether to merge.
func (c *Cache) Check(embedding []float32) Match {
	c.mu.Lock()
	defer c.mu.Unlock()

	best := Match{Verdict: Unique}
	for _, e := range c.entries {
		sim := Cosine(embedding, e.embedding)
		if sim > best.Similarity {
			best.Similarity = sim
			best.InsightID = e.id
		}
	}

	switch {
	case best.Similarity >= c.dupThresh:
		best.Verdict = Duplicate
	case best.Similarity >= c.updThresh:
		best.Verdict = PossibleUpdate
	default:
		best.Verdict = Unique
		best.InsightID = uuid.Nil
	}
	return best
}

// Add inserts an accepted insight's embedding, evicting the oldest entry
// when over capacity. Call only after the insight is accepted for emission.
func (c *Cache) Add(embedding []float32, id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = append(c.entries, entry{embedding: embedding, id: id, at: time.Now()})
	if len(c.entries) > c.capacity {
		c.entries = c.entries[len(c.entries)-c.capacity:]
	}
}

// Len returns the number of cached embeddings.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Cosine computes cosine similarity between two vectors. Zero for mismatched
// or zero-length vectors.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
