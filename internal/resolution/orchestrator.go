// Package resolution answers open questions through a cascade of concurrent,
// time-boxed tiers: a joined fast pair (knowledge base + in-session
// transcript), a detached background watcher over live chunks, and a
// conditional generated fallback. All tiers synchronize on a single
// compare-and-set-by-priority answer slot, never a lock over the question.
package resolution

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meetsense/platform/internal/insight"
	"github.com/meetsense/platform/internal/scheduler"
	"github.com/meetsense/platform/internal/search"
)

// KnowledgeSearcher is the knowledge-base tier's collaborator.
type KnowledgeSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]search.Passage, error)
}

// Generator is the fallback tier's collaborator.
type Generator interface {
	GenerateAnswer(ctx context.Context, question, contextText string) (string, float64, error)
}

// Update reports a question transition to the session owner.
type Update struct {
	QuestionID uuid.UUID
	State      insight.QuestionState
	Tier       insight.Tier
	TierStatus insight.TierStatus
	Answer     *insight.Answer
}

// Config holds tier timeouts and acceptance thresholds.
type Config struct {
	KnowledgeTimeout     time.Duration
	TranscriptTimeout    time.Duration
	BackgroundWindow     time.Duration
	KnowledgeRelevance   float64
	TranscriptOverlap    float64
	FallbackConfidence   float64
	BackgroundConfidence float64
}

func (c Config) withDefaults() Config {
	if c.KnowledgeTimeout <= 0 {
		c.KnowledgeTimeout = 2 * time.Second
	}
	if c.TranscriptTimeout <= 0 {
		c.TranscriptTimeout = 1500 * time.Millisecond
	}
	if c.BackgroundWindow <= 0 {
		c.BackgroundWindow = 60 * time.Second
	}
	if c.KnowledgeRelevance <= 0 {
		c.KnowledgeRelevance = 0.5
	}
	if c.TranscriptOverlap <= 0 {
		c.TranscriptOverlap = 0.5
	}
	if c.FallbackConfidence <= 0 {
		c.FallbackConfidence = 0.7
	}
	if c.BackgroundConfidence <= 0 {
		c.BackgroundConfidence = 0.65
	}
	return c
}

// Orchestrator runs tier cascades for one session's questions.
type Orchestrator struct {
	kb     KnowledgeSearcher
	gen    Generator
	cfg    Config
	notify func(Update)
	wg     sync.WaitGroup
}

// New creates an orchestrator. kb and gen may be nil; the corresponding tiers
// are then skipped. notify is called from cascade goroutines and must be safe
// to call concurrently.
func New(kb KnowledgeSearcher, gen Generator, cfg Config, notify func(Update)) *Orchestrator {
	if notify == nil {
		notify = func(Update) {}
	}
	return &Orchestrator{kb: kb, gen: gen, cfg: cfg.withDefaults(), notify: notify}
}

// Wait blocks until every cascade started by Resolve has finished.
func (o *Orchestrator) Wait() { o.wg.Wait() }

// Resolve starts the tier cascade for a question. history is a snapshot of
// the transcript so far; later chunks reach the background tier via Feed.
// The returned Pending is owned by the caller, which must eventually call
// Cancel or Finalize.
func (o *Orchestrator) Resolve(parent context.Context, id uuid.UUID, text string, history []scheduler.Chunk) *Pending {
	ctx, cancel := context.WithCancel(parent)
	p := &Pending{
		ID:     id,
		Text:   text,
		o:      o,
		ctx:    ctx,
		cancel: cancel,
		state:  insight.StateOpen,
		tiers: map[insight.Tier]insight.TierStatus{
			insight.TierKnowledgeBase: insight.TierNotStarted,
			insight.TierTranscript:    insight.TierNotStarted,
			insight.TierBackground:    insight.TierNotStarted,
			insight.TierFallback:      insight.TierNotStarted,
		},
		feed: make(chan scheduler.Chunk, backgroundFeedBuffer),
	}

	o.wg.Add(2)
	go func() {
		defer o.wg.Done()
		p.runCascade(history)
	}()
	go func() {
		defer o.wg.Done()
		p.runBackground()
	}()
	return p
}

const backgroundFeedBuffer = 64

// Pending is one question's in-flight resolution.
type Pending struct {
	ID   uuid.UUID
	Text string

	o      *Orchestrator
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	state insight.QuestionState
	tiers map[insight.Tier]insight.TierStatus
	slot  *insight.Answer

	feed chan scheduler.Chunk
}

// Feed offers a live chunk to the background tier. Non-blocking; drops when
// the watcher is behind.
func (p *Pending) Feed(ch scheduler.Chunk) {
	select {
	case p.feed <- ch:
	default:
	}
}

// Cancel stops all tiers without a state transition (session teardown).
func (p *Pending) Cancel() { p.cancel() }

// Finalize marks a still-unanswered question unresolved and stops all tiers.
// Terminal and idempotent.
func (p *Pending) Finalize() insight.QuestionRecord {
	var wasOpen bool
	p.mu.Lock()
	switch p.state {
	case insight.StateOpen, insight.StateFallbackRunning, insight.StateAwaitingBackground:
		p.state = insight.StateUnresolved
		wasOpen = true
	case insight.StateResolvedFast, insight.StateResolvedFallback, insight.StateResolvedBackground:
		p.state = insight.StateFinalized
	}
	rec := p.recordLocked()
	p.mu.Unlock()

	p.cancel()
	if wasOpen {
		p.o.notify(Update{QuestionID: p.ID, State: insight.StateUnresolved})
	}
	return rec
}

// Record returns a snapshot of the question's resolution state.
func (p *Pending) Record() insight.QuestionRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recordLocked()
}

func (p *Pending) recordLocked() insight.QuestionRecord {
	tiers := make(map[insight.Tier]insight.TierStatus, len(p.tiers))
	for k, v := range p.tiers {
		tiers[k] = v
	}
	var ans *insight.Answer
	if p.slot != nil {
		a := *p.slot
		ans = &a
	}
	return insight.QuestionRecord{ID: p.ID, Text: p.Text, State: p.state, Tiers: tiers, Answer: ans}
}

// State returns the current lifecycle state.
func (p *Pending) State() insight.QuestionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Answer returns the current best answer, if any.
func (p *Pending) Answer() *insight.Answer {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.slot == nil {
		return nil
	}
	a := *p.slot
	return &a
}

// tierRank orders answers: knowledge base > transcript > background-live >
// generated fallback. Rank ordering alone gives the background tier its
// override of fallback answers.
func tierRank(t insight.Tier) int {
	switch t {
	case insight.TierKnowledgeBase:
		return 4
	case insight.TierTranscript:
		return 3
	case insight.TierBackground:
		return 2
	case insight.TierFallback:
		return 1
	}
	return 0
}

// offer is the compare-and-set-by-priority rule for the answer slot. A new
// answer wins on higher tier rank, or on higher confidence at equal rank.
func (p *Pending) offer(a insight.Answer) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == insight.StateFinalized || p.state == insight.StateUnresolved {
		return false
	}
	if p.slot != nil {
		curRank := tierRank(p.slot.Source)
		newRank := tierRank(a.Source)
		if newRank < curRank || (newRank == curRank && a.Confidence <= p.slot.Confidence) {
			return false
		}
	}
	p.slot = &a
	return true
}

func (p *Pending) setTier(t insight.Tier, s insight.TierStatus) {
	p.mu.Lock()
	p.tiers[t] = s
	p.mu.Unlock()
}

// transitionFrom moves state to `to` only if the current state is one of
// `from`; returns whether the transition happened.
func (p *Pending) transitionFrom(to insight.QuestionState, from ...insight.QuestionState) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, f := range from {
		if p.state == f {
			p.state = to
			return true
		}
	}
	return false
}
