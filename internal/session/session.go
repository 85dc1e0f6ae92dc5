// Package session ties the engine together: each live meeting is one Session
// whose loop owns all mutable state. Chunks, control operations, and results
// posted back by worker goroutines all pass through a single request channel,
// so the scheduler, arena, and metrics never need a lock.
package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/meetsense/platform/internal/assist"
	"github.com/meetsense/platform/internal/config"
	"github.com/meetsense/platform/internal/dedup"
	apperrors "github.com/meetsense/platform/internal/errors"
	"github.com/meetsense/platform/internal/extraction"
	"github.com/meetsense/platform/internal/insight"
	"github.com/meetsense/platform/internal/resolution"
	"github.com/meetsense/platform/internal/scheduler"
	"github.com/meetsense/platform/internal/search"
	"github.com/meetsense/platform/internal/trace"
)

// Phase is the session lifecycle state.
type Phase string

const (
	PhaseActive     Phase = "active"
	PhasePaused     Phase = "paused"
	PhaseFinalizing Phase = "finalizing"
	PhaseCompleted  Phase = "completed"
)

// Channel bounds
const (
	requestBuffer = 256
	eventBuffer   = 256
)

// Collaborators bundles the external services a session depends on. Any field
// may be nil; the features it backs are then skipped.
type Collaborators struct {
	Extractor extraction.Extractor
	Embedder  extraction.Embedder
	Vector    search.VectorSearcher
	Knowledge resolution.KnowledgeSearcher
	Generator resolution.Generator
}

type reqKind int

const (
	reqChunk reqKind = iota
	reqPause
	reqResume
	reqEnd
	postRound
	postAssist
	postUpdate
)

type request struct {
	kind  reqKind
	chunk scheduler.Chunk

	round  *roundResult
	items  *assistResult
	update *resolution.Update

	resp chan error
}

type roundResult struct {
	dec     scheduler.Decision
	window  []scheduler.Chunk
	history []scheduler.Chunk
	res     extraction.Result
	err     error
}

type assistResult struct {
	items    []assist.Item
	degraded bool
}

type queuedRound struct {
	dec    scheduler.Decision
	window []scheduler.Chunk
}

// Session is one live meeting's processing engine instance.
type Session struct {
	ID        uuid.UUID
	ProjectID string
	StartedAt time.Time

	cfg      *config.Config
	sched    *scheduler.Scheduler
	pipeline *extraction.Pipeline
	analyzer *assist.Analyzer
	resolver *resolution.Orchestrator

	ctx    context.Context
	cancel context.CancelFunc

	requests chan request
	out      chan Event
	done     chan struct{}

	lastActive atomic.Int64 // unix nanos, read by the manager sweep

	// Loop-owned state below; touched only by run().
	phase   Phase
	lastSeq int
	arena   *insight.Arena
	history []scheduler.Chunk
	pending map[uuid.UUID]*resolution.Pending
	metrics Metrics

	inflight bool
	queued   *queuedRound
}

// newSession wires a session's per-meeting components and starts its loop.
func newSession(parent context.Context, projectID string, cfg *config.Config, collab Collaborators) *Session {
	ctx, cancel := context.WithCancel(parent)
	ctx = trace.WithContext(ctx, trace.New())

	s := &Session{
		ID:        uuid.New(),
		ProjectID: projectID,
		StartedAt: time.Now(),
		cfg:       cfg,
		sched:     scheduler.New(scheduler.DefaultMaxBuffer),
		ctx:       ctx,
		cancel:    cancel,
		requests:  make(chan request, requestBuffer),
		out:       make(chan Event, eventBuffer),
		done:      make(chan struct{}),
		phase:     PhaseActive,
		arena:     insight.NewArena(),
		pending:   make(map[uuid.UUID]*resolution.Pending),
		metrics:   newMetrics(),
	}
	s.touch()

	cache := dedup.New(dedup.Config{
		Capacity:           cfg.DedupCapacity,
		DuplicateThreshold: cfg.DuplicateThreshold,
		UpdateThreshold:    cfg.UpdateThreshold,
	})
	var related extraction.RelatedSearcher
	if collab.Vector != nil && collab.Embedder != nil {
		related = search.NewCached(collab.Vector, collab.Embedder, cfg.EnrichInterval, cfg.QueryReuseSimilarity)
	}
	s.pipeline = extraction.New(collab.Extractor, collab.Embedder, related, cache, extraction.Config{
		MinConfidence: cfg.MinInsightConfidence,
		MaxRelated:    cfg.MaxRelatedPassages,
	})
	s.analyzer = assist.NewAnalyzer(collab.Knowledge)
	s.resolver = resolution.New(collab.Knowledge, collab.Generator, resolution.Config{
		KnowledgeTimeout:     cfg.KnowledgeTimeout,
		TranscriptTimeout:    cfg.TranscriptTimeout,
		BackgroundWindow:     cfg.BackgroundWindow,
		KnowledgeRelevance:   cfg.KnowledgeRelevance,
		FallbackConfidence:   cfg.FallbackConfidence,
		BackgroundConfidence: cfg.BackgroundConfidence,
	}, s.postUpdate)

	go s.run()
	return s
}

// Events returns the outbound event stream. Closed when the session loop
// exits; nothing is ever emitted after session_finalized.
func (s *Session) Events() <-chan Event { return s.out }

// Done is closed when the session loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// IdleFor reports how long since the session last saw an external operation.
func (s *Session) IdleFor() time.Duration {
	return time.Since(time.Unix(0, s.lastActive.Load()))
}

// Ingest submits one transcript chunk. Out-of-order or duplicate sequence
// numbers are rejected with CodeOutOfOrder; chunks after End with
// CodeSessionState.
func (s *Session) Ingest(ch scheduler.Chunk) error {
	return s.request(request{kind: reqChunk, chunk: ch})
}

// Pause suspends chunk processing. Idempotent.
func (s *Session) Pause() error { return s.request(request{kind: reqPause}) }

// Resume lifts a pause. Idempotent.
func (s *Session) Resume() error { return s.request(request{kind: reqResume}) }

// End finalizes the session: open questions are marked unresolved, the final
// record is emitted exactly once, and the loop shuts down. Idempotent.
func (s *Session) End() error {
	err := s.request(request{kind: reqEnd})
	if apperrors.IsCode(err, apperrors.CodeSessionState) {
		return nil // already ended
	}
	return err
}

func (s *Session) request(req request) error {
	s.touch()
	req.resp = make(chan error, 1)
	select {
	case s.requests <- req:
	case <-s.done:
		return apperrors.New(apperrors.CodeSessionState, "session ended")
	case <-s.ctx.Done():
		return apperrors.New(apperrors.CodeSessionState, "session ended")
	}
	select {
	case err := <-req.resp:
		return err
	case <-s.done:
		return apperrors.New(apperrors.CodeSessionState, "session ended")
	}
}

// post delivers a worker goroutine's result to the loop. Never blocks past
// session teardown.
func (s *Session) post(req request) {
	select {
	case s.requests <- req:
	case <-s.ctx.Done():
	}
}

// postUpdate is the resolution orchestrator's notify callback.
func (s *Session) postUpdate(u resolution.Update) {
	s.post(request{kind: postUpdate, update: &u})
}

func (s *Session) touch() { s.lastActive.Store(time.Now().UnixNano()) }

func (s *Session) run() {
	defer close(s.done)
	defer close(s.out)

	s.emit(Event{Type: EventSessionStarted})

	for {
		select {
		case <-s.ctx.Done():
			return
		case req := <-s.requests:
			s.handle(req)
			if s.phase == PhaseCompleted {
				return
			}
		}
	}
}

func (s *Session) handle(req request) {
	switch req.kind {
	case reqChunk:
		req.resp <- s.ingest(req.chunk)
	case reqPause:
		req.resp <- s.setPhase(PhasePaused, PhaseActive, PhasePaused)
	case reqResume:
		req.resp <- s.setPhase(PhaseActive, PhaseActive, PhasePaused)
	case reqEnd:
		req.resp <- s.finalize()
	case postRound:
		s.completeRound(req.round)
	case postAssist:
		s.completeAssist(req.items)
	case postUpdate:
		s.applyUpdate(*req.update)
	}
}

func (s *Session) setPhase(to Phase, from ...Phase) error {
	for _, f := range from {
		if s.phase == f {
			s.phase = to
			return nil
		}
	}
	return apperrors.Newf(apperrors.CodeSessionState, "cannot transition from %s", s.phase)
}

func (s *Session) ingest(ch scheduler.Chunk) error {
	switch s.phase {
	case PhasePaused:
		s.metrics.ChunksRejected++
		return apperrors.New(apperrors.CodeSessionState, "session paused")
	case PhaseFinalizing, PhaseCompleted:
		s.metrics.ChunksRejected++
		return apperrors.New(apperrors.CodeSessionState, "session ended")
	}

	if ch.Seq <= s.lastSeq {
		s.metrics.ChunksRejected++
		return apperrors.Newf(apperrors.CodeOutOfOrder, "chunk seq %d not after %d", ch.Seq, s.lastSeq)
	}
	s.lastSeq = ch.Seq
	if ch.Timestamp.IsZero() {
		ch.Timestamp = time.Now()
	}
	s.metrics.ChunksReceived++

	dec := s.sched.Observe(ch)
	if dec.Discarded {
		s.metrics.ChunksDiscarded++
		return nil
	}

	s.history = append(s.history, ch)
	if limit := s.cfg.HistoryLimit; limit > 0 && len(s.history) > limit {
		s.history = s.history[len(s.history)-limit:]
	}

	for _, p := range s.pending {
		p.Feed(ch)
	}

	if dec.Trigger {
		s.startRound(dec, s.sched.Window(dec.Priority))
	}
	return nil
}

// startRound launches one extraction round off the loop. At most one round is
// in flight per session; a trigger arriving mid-round is coalesced and run
// when the current round completes.
func (s *Session) startRound(dec scheduler.Decision, window []scheduler.Chunk) {
	if s.inflight {
		if s.queued == nil || dec.Priority >= s.queued.dec.Priority {
			s.queued = &queuedRound{dec: dec, window: window}
		}
		return
	}
	s.inflight = true
	s.metrics.Triggers[dec.Reason]++

	history := make([]scheduler.Chunk, len(s.history))
	copy(history, s.history)

	go func() {
		res, err := s.pipeline.Run(s.ctx, dec, window)
		s.post(request{kind: postRound, round: &roundResult{
			dec: dec, window: window, history: history, res: res, err: err,
		}})
	}()
}

func (s *Session) completeRound(rr *roundResult) {
	s.inflight = false
	defer s.drainQueued()

	if rr.err != nil {
		return // cancelled mid-round
	}
	res := rr.res

	s.metrics.Rounds++
	s.metrics.ProcessingTime += res.Elapsed
	if res.Degraded {
		s.metrics.DegradedRounds++
	}

	round := make([]insight.Insight, 0, len(res.Insights)+len(res.Merges))
	for _, ins := range res.Insights {
		appended := s.arena.Append(ins)
		s.metrics.InsightsByKind[string(appended.Kind)]++
		round = append(round, appended)
	}
	for _, m := range res.Merges {
		if merged, ok := s.arena.Merge(m.ExistingID, m.Detail, m.Confidence); ok {
			s.metrics.InsightsMerged++
			round = append(round, merged)
		}
	}

	if len(round) > 0 || res.Degraded {
		s.emit(Event{Type: EventInsights, Extracted: &ExtractedPayload{
			Insights:        round,
			TriggerPriority: rr.dec.Priority.String(),
			SemanticScore:   res.Density,
			ProcessingTime:  res.Elapsed,
			Degraded:        res.Degraded,
		}})
	}

	hasQuestion := false
	for _, ins := range round {
		if ins.Kind == insight.KindQuestion && ins.Supersedes == nil {
			hasQuestion = true
			s.resolveQuestion(ins.Canonical, ins.Content, rr.history)
		}
	}

	if len(rr.window) == 0 {
		s.emitMetrics()
		return
	}
	trigger := rr.window[len(rr.window)-1]

	act := assist.Plan(rr.dec.Signals, round)
	// A spoken question the model did not surface as an insight still gets
	// the resolution cascade, keyed off the raw chunk text.
	if act.AutoAnswer && !hasQuestion && rr.dec.Signals.HasQuestion {
		s.resolveQuestion(uuid.New(), trigger.Text, rr.history)
	}

	go func() {
		items, degraded := s.analyzer.Run(s.ctx, act, trigger, round)
		if len(items) == 0 && !degraded {
			return
		}
		s.post(request{kind: postAssist, items: &assistResult{items: items, degraded: degraded}})
	}()

	s.emitMetrics()
}

func (s *Session) drainQueued() {
	if s.queued == nil || s.inflight || s.phase != PhaseActive {
		return
	}
	q := s.queued
	s.queued = nil
	s.startRound(q.dec, q.window)
}

func (s *Session) completeAssist(ar *assistResult) {
	s.metrics.AssistItems += len(ar.items)
	s.emit(Event{Type: EventAssistance, Assistance: &AssistancePayload{
		Items:    ar.items,
		Degraded: ar.degraded,
	}})
}

func (s *Session) resolveQuestion(id uuid.UUID, text string, history []scheduler.Chunk) {
	if _, dup := s.pending[id]; dup {
		return
	}
	s.pending[id] = s.resolver.Resolve(s.ctx, id, text, history)
	s.metrics.QuestionsAsked++
}

func (s *Session) applyUpdate(u resolution.Update) {
	switch u.State {
	case insight.StateResolvedFast, insight.StateResolvedFallback, insight.StateResolvedBackground:
		if u.Answer != nil {
			s.metrics.QuestionsResolved[string(u.Answer.Source)]++
		}
	case insight.StateUnresolved:
		s.metrics.QuestionsUnresolved++
	}
	s.emit(Event{Type: EventQuestionUpdate, Question: &QuestionPayload{
		QuestionID: u.QuestionID,
		Status:     u.State,
		Answer:     u.Answer,
		SourceTier: u.Tier,
	}})
}

// finalize runs the one-shot session close: every pending question is settled
// or marked unresolved, queued resolution updates are flushed, and the final
// record goes out as the last event.
func (s *Session) finalize() error {
	if s.phase == PhaseCompleted || s.phase == PhaseFinalizing {
		return apperrors.New(apperrors.CodeSessionState, "session ended")
	}
	s.phase = PhaseFinalizing
	s.queued = nil

	records := make([]insight.QuestionRecord, 0, len(s.pending))
	for _, p := range s.pending {
		records = append(records, p.Finalize())
	}

	// Finalize posted unresolved transitions back to our own queue; surface
	// them before the final record so ordering holds for clients.
	for {
		select {
		case req := <-s.requests:
			if req.kind == postUpdate {
				s.applyUpdate(*req.update)
				continue
			}
			if req.resp != nil {
				req.resp <- apperrors.New(apperrors.CodeSessionState, "session ended")
			}
			continue
		default:
		}
		break
	}

	s.emit(Event{Type: EventSessionFinalized, Final: &FinalPayload{
		Insights:  s.arena.Active(),
		Questions: records,
		Metrics:   s.metrics.clone(),
	}})

	s.phase = PhaseCompleted
	s.cancel()
	return nil
}

func (s *Session) emitMetrics() {
	m := s.metrics.clone()
	s.emit(Event{Type: EventMetricsUpdate, Metrics: &m})
}

// emit never blocks the loop; a slow consumer loses events rather than
// stalling processing.
func (s *Session) emit(ev Event) {
	ev.SessionID = s.ID
	select {
	case s.out <- ev:
	default:
		trace.Logger(s.ctx).Warn("event dropped, slow consumer",
			"session_id", s.ID, "type", ev.Type)
	}
}
