package resolution

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/meetsense/platform/internal/insight"
	"github.com/meetsense/platform/internal/scheduler"
	"github.com/meetsense/platform/internal/signal"
	"github.com/meetsense/platform/internal/trace"
)

// runCascade executes the joined fast-tier pair and, if both miss, the
// conditional fallback tier.
func (p *Pending) runCascade(history []scheduler.Chunk) {
	ctx, span := trace.StartSpan(p.ctx, "question_cascade")
	defer span.End()
	span.SetAttr("question_id", p.ID.String())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.runKnowledgeTier(ctx)
	}()
	go func() {
		defer wg.Done()
		p.runTranscriptTier(ctx, history)
	}()
	wg.Wait()

	if ctx.Err() != nil {
		return
	}

	if ans := p.Answer(); ans != nil {
		if p.transitionFrom(insight.StateResolvedFast, insight.StateOpen) {
			p.o.notify(Update{QuestionID: p.ID, State: insight.StateResolvedFast, Tier: ans.Source, TierStatus: insight.TierSucceeded, Answer: ans})
		}
		return
	}

	p.runFallbackTier(ctx, history)
}

// runKnowledgeTier queries the knowledge base, accepting results above the
// relevance threshold.
func (p *Pending) runKnowledgeTier(ctx context.Context) {
	if p.o.kb == nil {
		return
	}
	p.setTier(insight.TierKnowledgeBase, insight.TierRunning)

	tctx, cancel := context.WithTimeout(ctx, p.o.cfg.KnowledgeTimeout)
	defer cancel()

	passages, err := p.o.kb.Search(tctx, p.Text, 3)
	if err != nil {
		p.setTier(insight.TierKnowledgeBase, tierFailure(tctx))
		return
	}

	for _, pass := range passages {
		if pass.Score < p.o.cfg.KnowledgeRelevance {
			continue
		}
		p.setTier(insight.TierKnowledgeBase, insight.TierSucceeded)
		p.offer(insight.Answer{
			Text:       pass.Content,
			Confidence: pass.Score,
			Source:     insight.TierKnowledgeBase,
			SourceDoc:  sourceLabel(pass.Title, pass.DocumentID),
		})
		return
	}
	p.setTier(insight.TierKnowledgeBase, insight.TierFailed)
}

// runTranscriptTier looks for an earlier passage in the same meeting that
// already answers the question. Pure lexical overlap; no collaborator.
func (p *Pending) runTranscriptTier(ctx context.Context, history []scheduler.Chunk) {
	p.setTier(insight.TierTranscript, insight.TierRunning)

	tctx, cancel := context.WithTimeout(ctx, p.o.cfg.TranscriptTimeout)
	defer cancel()

	var best *scheduler.Chunk
	var bestScore float64
	for i := range history {
		if tctx.Err() != nil {
			p.setTier(insight.TierTranscript, insight.TierTimedOut)
			return
		}
		ch := history[i]
		if strings.Contains(ch.Text, "?") {
			continue // a question is not an answer
		}
		if score := overlap(p.Text, ch.Text); score > bestScore {
			bestScore = score
			best = &history[i]
		}
	}

	if best == nil || bestScore < p.o.cfg.TranscriptOverlap {
		p.setTier(insight.TierTranscript, insight.TierFailed)
		return
	}

	p.setTier(insight.TierTranscript, insight.TierSucceeded)
	p.offer(insight.Answer{
		Text:       best.Text,
		Confidence: bestScore,
		Source:     insight.TierTranscript,
	})
}

// runFallbackTier asks the model for a generated answer. Only runs after
// both fast tiers miss; the answer is always marked generated.
func (p *Pending) runFallbackTier(ctx context.Context, history []scheduler.Chunk) {
	if p.o.gen == nil {
		p.transitionFrom(insight.StateAwaitingBackground, insight.StateOpen)
		return
	}
	if !p.transitionFrom(insight.StateFallbackRunning, insight.StateOpen) {
		return // background already resolved it
	}
	p.setTier(insight.TierFallback, insight.TierRunning)
	p.o.notify(Update{QuestionID: p.ID, State: insight.StateFallbackRunning, Tier: insight.TierFallback, TierStatus: insight.TierRunning})

	text, conf, err := p.o.gen.GenerateAnswer(ctx, p.Text, renderHistory(history))
	if err != nil {
		trace.Logger(ctx).Warn("fallback generation failed", "question_id", p.ID, "error", err)
		p.setTier(insight.TierFallback, tierFailure(ctx))
		p.awaitBackground()
		return
	}
	if conf < p.o.cfg.FallbackConfidence || strings.TrimSpace(text) == "" {
		p.setTier(insight.TierFallback, insight.TierFailed)
		p.awaitBackground()
		return
	}

	p.setTier(insight.TierFallback, insight.TierSucceeded)
	ans := insight.Answer{Text: text, Confidence: conf, Source: insight.TierFallback, Generated: true}
	if p.offer(ans) && p.transitionFrom(insight.StateResolvedFallback, insight.StateFallbackRunning) {
		p.o.notify(Update{QuestionID: p.ID, State: insight.StateResolvedFallback, Tier: insight.TierFallback, TierStatus: insight.TierSucceeded, Answer: &ans})
	}
}

func (p *Pending) awaitBackground() {
	if p.transitionFrom(insight.StateAwaitingBackground, insight.StateFallbackRunning, insight.StateOpen) {
		p.o.notify(Update{QuestionID: p.ID, State: insight.StateAwaitingBackground})
	}
}

// runBackground watches live chunks for a semantically matching answer for
// the configured window. It may supersede a fallback answer, but never a
// fast-tier one.
func (p *Pending) runBackground() {
	p.setTier(insight.TierBackground, insight.TierRunning)

	window := time.NewTimer(p.o.cfg.BackgroundWindow)
	defer window.Stop()

	for {
		select {
		case <-p.ctx.Done():
			p.setTier(insight.TierBackground, insight.TierFailed)
			return
		case <-window.C:
			p.setTier(insight.TierBackground, insight.TierTimedOut)
			p.expireBackground()
			return
		case ch := <-p.feed:
			if strings.Contains(ch.Text, "?") {
				continue
			}
			score := overlap(p.Text, ch.Text)
			if score < p.o.cfg.BackgroundConfidence {
				continue
			}

			ans := insight.Answer{Text: ch.Text, Confidence: score, Source: insight.TierBackground}
			if !p.offer(ans) {
				continue // outranked by a fast-tier answer
			}
			p.setTier(insight.TierBackground, insight.TierSucceeded)
			p.transitionFrom(insight.StateResolvedBackground,
				insight.StateOpen, insight.StateFallbackRunning,
				insight.StateAwaitingBackground, insight.StateResolvedFallback)
			p.o.notify(Update{QuestionID: p.ID, State: insight.StateResolvedBackground, Tier: insight.TierBackground, TierStatus: insight.TierSucceeded, Answer: &ans})
			return
		}
	}
}

// expireBackground closes out a question whose background window lapsed with
// no live answer and no other accepted tier.
func (p *Pending) expireBackground() {
	if p.transitionFrom(insight.StateUnresolved, insight.StateAwaitingBackground) {
		p.o.notify(Update{QuestionID: p.ID, State: insight.StateUnresolved})
	}
}

func tierFailure(ctx context.Context) insight.TierStatus {
	if ctx.Err() == context.DeadlineExceeded {
		return insight.TierTimedOut
	}
	return insight.TierFailed
}

func sourceLabel(title, docID string) string {
	if title != "" {
		return title
	}
	return docID
}

// overlap scores how much of the question's substance a candidate answer
// covers.
func overlap(question, candidate string) float64 {
	qTokens := signal.SubstantiveTokens(question)
	if len(qTokens) == 0 {
		return 0
	}
	cSet := make(map[string]struct{})
	for _, tok := range signal.SubstantiveTokens(candidate) {
		cSet[tok] = struct{}{}
	}
	hits := 0
	for _, tok := range qTokens {
		if _, ok := cSet[tok]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(qTokens))
}

func renderHistory(history []scheduler.Chunk) string {
	var b strings.Builder
	for _, ch := range history {
		if ch.Speaker != "" {
			b.WriteString(strings.ToUpper(ch.Speaker) + ": ")
		}
		b.WriteString(ch.Text)
		b.WriteString("\n")
	}
	return b.String()
}
