// Package extraction turns a scheduler trigger into accepted meeting insights:
// context assembly, model extraction, confidence filtering, and routing
// through the deduplication cache.
package extraction

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meetsense/platform/internal/dedup"
	apperrors "github.com/meetsense/platform/internal/errors"
	"github.com/meetsense/platform/internal/insight"
	"github.com/meetsense/platform/internal/llm"
	"github.com/meetsense/platform/internal/resilience"
	"github.com/meetsense/platform/internal/scheduler"
	"github.com/meetsense/platform/internal/search"
	"github.com/meetsense/platform/internal/trace"
)

// Extractor is the slice of the language-model collaborator the pipeline uses.
type Extractor interface {
	ExtractInsights(ctx context.Context, contextText string) ([]llm.Candidate, error)
}

// Embedder produces embeddings for dedup checks.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// RelatedSearcher supplies historical passages for context enrichment.
// A nil result means enrichment was skipped this round.
type RelatedSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]search.Passage, error)
}

// Config holds pipeline thresholds.
type Config struct {
	MinConfidence float64
	MaxRelated    int
}

// Merge asks the caller to fold new detail into an existing insight instead
// of emitting a near-duplicate.
type Merge struct {
	ExistingID uuid.UUID
	Detail     string
	Confidence float64
}

// Result is one processing round's outcome.
type Result struct {
	Insights []insight.Insight
	Merges   []Merge
	Related  []search.Passage
	Priority scheduler.Priority
	Density  float64
	Degraded bool
	Elapsed  time.Duration
}

// Pipeline runs extraction rounds for one session.
type Pipeline struct {
	extractor Extractor
	embedder  Embedder
	related   RelatedSearcher
	cache     *dedup.Cache
	cfg       Config
}

// New creates a pipeline. related may be nil to disable enrichment.
func New(extractor Extractor, embedder Embedder, related RelatedSearcher, cache *dedup.Cache, cfg Config) *Pipeline {
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 0.6
	}
	if cfg.MaxRelated <= 0 {
		cfg.MaxRelated = 5
	}
	return &Pipeline{extractor: extractor, embedder: embedder, related: related, cache: cache, cfg: cfg}
}

// Run executes one round for the given trigger. Collaborator failures
// degrade the round to whatever succeeded; only context cancellation aborts.
func (p *Pipeline) Run(ctx context.Context, d scheduler.Decision, window []scheduler.Chunk) (Result, error) {
	ctx, span := trace.StartSpan(ctx, "extraction_round")
	defer span.End()
	span.SetAttr("priority", d.Priority.String())
	span.SetAttr("window", len(window))

	log := trace.Logger(ctx)
	start := time.Now()
	res := Result{Priority: d.Priority, Density: d.Signals.Density}

	if p.extractor == nil || len(window) == 0 {
		res.Elapsed = time.Since(start)
		return res, nil
	}
	trigger := window[len(window)-1]

	related, err := p.enrich(ctx, trigger.Text)
	if err != nil {
		log.Warn("historical enrichment failed", "error", err)
		res.Degraded = true
	}
	res.Related = related

	contextText := assembleContext(window, related)

	var candidates []llm.Candidate
	err = resilience.Retry(ctx, resilience.ExtractionRetryConfig(), func() error {
		var callErr error
		candidates, callErr = p.extractor.ExtractInsights(ctx, contextText)
		return callErr
	})
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		// Malformed output and exhausted retries both degrade to zero items;
		// nothing is ever fabricated to fill the gap.
		log.Warn("extraction failed", "error", err, "code", apperrors.CodeOf(err))
		res.Degraded = true
		res.Elapsed = time.Since(start)
		return res, nil
	}

	accepted := candidates[:0]
	for _, cand := range candidates {
		if cand.Confidence >= p.cfg.MinConfidence {
			accepted = append(accepted, cand)
		}
	}
	span.SetAttr("candidates", len(candidates))
	span.SetAttr("accepted", len(accepted))

	if len(accepted) == 0 {
		res.Elapsed = time.Since(start)
		return res, nil
	}

	embeddings, err := p.embedAll(ctx, accepted)
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		log.Warn("candidate embedding failed, accepting without dedup", "error", err)
		res.Degraded = true
	}

	for i, cand := range accepted {
		var emb []float32
		if embeddings != nil {
			emb = embeddings[i]
		}

		if emb != nil {
			match := p.cache.Check(emb)
			switch match.Verdict {
			case dedup.Duplicate:
				log.Debug("duplicate insight suppressed", "similarity", match.Similarity)
				continue
			case dedup.PossibleUpdate:
				res.Merges = append(res.Merges, Merge{
					ExistingID: match.InsightID,
					Detail:     cand.Content,
					Confidence: cand.Confidence,
				})
				continue
			}
		}

		ins := toInsight(cand, trigger.Seq)
		if emb != nil {
			p.cache.Add(emb, ins.ID)
		}
		res.Insights = append(res.Insights, ins)
	}

	res.Elapsed = time.Since(start)
	return res, nil
}

func (p *Pipeline) enrich(ctx context.Context, query string) ([]search.Passage, error) {
	if p.related == nil {
		return nil, nil
	}
	return p.related.Search(ctx, query, p.cfg.MaxRelated)
}

func (p *Pipeline) embedAll(ctx context.Context, cands []llm.Candidate) ([][]float32, error) {
	if p.embedder == nil {
		return nil, nil
	}
	texts := make([]string, len(cands))
	for i, c := range cands {
		texts[i] = c.Content
	}
	return p.embedder.Embed(ctx, texts)
}

func toInsight(cand llm.Candidate, sourceSeq int) insight.Insight {
	id := uuid.New()
	return insight.Insight{
		ID:         id,
		Canonical:  id,
		Kind:       insight.Kind(cand.Kind),
		Priority:   cand.Priority,
		Content:    cand.Content,
		Context:    cand.Context,
		Confidence: cand.Confidence,
		SourceSeq:  sourceSeq,
		Assignee:   cand.Assignee,
		DueDate:    cand.DueDate,
		CreatedAt:  time.Now(),
	}
}

// assembleContext renders the window plus any related history for the model.
func assembleContext(window []scheduler.Chunk, related []search.Passage) string {
	var b strings.Builder

	if len(related) > 0 {
		b.WriteString("Related discussion from past meetings:\n")
		for _, p := range related {
			b.WriteString("- ")
			if p.Title != "" {
				b.WriteString("[" + p.Title + "] ")
			}
			b.WriteString(p.Content)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("Current transcript:\n")
	for _, ch := range window {
		if ch.Speaker != "" {
			b.WriteString(strings.ToUpper(ch.Speaker) + ": ")
		}
		b.WriteString(ch.Text)
		b.WriteString("\n")
	}
	return b.String()
}
