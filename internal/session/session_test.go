package session

import (
	"context"
	"testing"
	"time"

	"github.com/meetsense/platform/internal/config"
	apperrors "github.com/meetsense/platform/internal/errors"
	"github.com/meetsense/platform/internal/insight"
	"github.com/meetsense/platform/internal/llm"
	"github.com/meetsense/platform/internal/scheduler"
)

type fakeModel struct {
	candidates []llm.Candidate
}

func (f *fakeModel) ExtractInsights(_ context.Context, _ string) ([]llm.Candidate, error) {
	return f.candidates, nil
}

func (f *fakeModel) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 1, 0}
	}
	return out, nil
}

func testCfg() *config.Config {
	return &config.Config{
		HistoryLimit:       100,
		DedupCapacity:      50,
		SessionIdleTimeout: time.Hour,
	}
}

func startSession(t *testing.T, model *fakeModel) *Session {
	t.Helper()
	s := newSession(context.Background(), "proj-1", testCfg(), Collaborators{
		Extractor: model,
		Embedder:  model,
	})
	t.Cleanup(func() { _ = s.End() })
	return s
}

func waitEvent(t *testing.T, s *Session, typ EventType) Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				t.Fatalf("event channel closed before %s", typ)
			}
			if ev.Type == typ {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s event", typ)
		}
	}
}

func TestIngestRejectsOutOfOrder(t *testing.T) {
	s := startSession(t, &fakeModel{})

	if err := s.Ingest(scheduler.Chunk{Text: "The onboarding flow needs another look", Seq: 5}); err != nil {
		t.Fatalf("first chunk: %v", err)
	}
	err := s.Ingest(scheduler.Chunk{Text: "Stale text arriving late again here", Seq: 5})
	if !apperrors.IsCode(err, apperrors.CodeOutOfOrder) {
		t.Errorf("duplicate seq: err = %v, want CodeOutOfOrder", err)
	}
	err = s.Ingest(scheduler.Chunk{Text: "Even older text showing up now", Seq: 3})
	if !apperrors.IsCode(err, apperrors.CodeOutOfOrder) {
		t.Errorf("stale seq: err = %v, want CodeOutOfOrder", err)
	}
	// Order resumes past the high-water mark.
	if err := s.Ingest(scheduler.Chunk{Text: "Fresh discussion continues from here", Seq: 6}); err != nil {
		t.Errorf("next chunk: %v", err)
	}
}

func TestPauseRejectsChunks(t *testing.T) {
	s := startSession(t, &fakeModel{})

	if err := s.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	err := s.Ingest(scheduler.Chunk{Text: "Talk during the paused stretch", Seq: 1})
	if !apperrors.IsCode(err, apperrors.CodeSessionState) {
		t.Errorf("paused ingest: err = %v, want CodeSessionState", err)
	}

	if err := s.Resume(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if err := s.Ingest(scheduler.Chunk{Text: "Conversation picks back up afterwards", Seq: 2}); err != nil {
		t.Errorf("ingest after resume: %v", err)
	}
}

func TestExtractionRoundEmitsInsights(t *testing.T) {
	model := &fakeModel{candidates: []llm.Candidate{
		{Kind: "action_item", Content: "complete the migration", Confidence: 0.9, Assignee: "dana"},
	}}
	s := startSession(t, model)

	if err := s.Ingest(scheduler.Chunk{Text: "Complete the migration by Friday", Seq: 1}); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	ev := waitEvent(t, s, EventInsights)
	if len(ev.Extracted.Insights) != 1 {
		t.Fatalf("insights = %d, want 1", len(ev.Extracted.Insights))
	}
	got := ev.Extracted.Insights[0]
	if got.Kind != insight.KindActionItem || got.Assignee != "dana" {
		t.Errorf("insight = %+v", got)
	}
	if ev.Extracted.TriggerPriority != "immediate" {
		t.Errorf("trigger priority = %q, want immediate", ev.Extracted.TriggerPriority)
	}
}

func TestFinalRecordAndNoEventsAfter(t *testing.T) {
	model := &fakeModel{candidates: []llm.Candidate{
		{Kind: "decision", Content: "ship on friday", Confidence: 0.8},
	}}
	s := startSession(t, model)

	if err := s.Ingest(scheduler.Chunk{Text: "We agreed Dana will handle the release", Seq: 1}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	waitEvent(t, s, EventInsights)

	if err := s.End(); err != nil {
		t.Fatalf("end: %v", err)
	}

	var final *FinalPayload
	sawAfterFinal := false
	for ev := range s.Events() {
		if final != nil {
			sawAfterFinal = true
		}
		if ev.Type == EventSessionFinalized {
			final = ev.Final
		}
	}
	if final == nil {
		t.Fatal("no session_finalized event")
	}
	if sawAfterFinal {
		t.Error("events emitted after session_finalized")
	}
	if len(final.Insights) != 1 {
		t.Errorf("final insights = %d, want 1", len(final.Insights))
	}
	if final.Metrics.ChunksReceived != 1 {
		t.Errorf("metrics chunks = %d, want 1", final.Metrics.ChunksReceived)
	}
}

func TestEndIsIdempotent(t *testing.T) {
	s := startSession(t, &fakeModel{})

	if err := s.End(); err != nil {
		t.Fatalf("first end: %v", err)
	}
	if err := s.End(); err != nil {
		t.Errorf("second end: %v, want nil", err)
	}

	err := s.Ingest(scheduler.Chunk{Text: "Late arrival after the meeting closed", Seq: 1})
	if !apperrors.IsCode(err, apperrors.CodeSessionState) {
		t.Errorf("ingest after end: err = %v, want CodeSessionState", err)
	}
}

func TestUnvoicedQuestionGetsResolutionRecord(t *testing.T) {
	// Extractor returns nothing, so the spoken question is picked up from the
	// chunk signals alone.
	s := startSession(t, &fakeModel{})

	chunks := []string{
		"We walked through the rollout checklist together",
		"Most of the verification steps looked fine",
		"What is the deployment deadline?",
	}
	for i, text := range chunks {
		if err := s.Ingest(scheduler.Chunk{Text: text, Seq: i + 1}); err != nil {
			t.Fatalf("ingest %d: %v", i, err)
		}
	}
	waitEvent(t, s, EventMetricsUpdate)

	if err := s.End(); err != nil {
		t.Fatalf("end: %v", err)
	}

	final := waitEvent(t, s, EventSessionFinalized).Final
	if len(final.Questions) != 1 {
		t.Fatalf("questions = %d, want 1", len(final.Questions))
	}
	q := final.Questions[0]
	if q.Text != "What is the deployment deadline?" {
		t.Errorf("question text = %q", q.Text)
	}
	if q.State != insight.StateUnresolved {
		t.Errorf("question state = %s, want unresolved with no collaborators", q.State)
	}
	if final.Metrics.QuestionsAsked != 1 {
		t.Errorf("questions asked = %d, want 1", final.Metrics.QuestionsAsked)
	}
}

func TestDiscardedChunksCounted(t *testing.T) {
	s := startSession(t, &fakeModel{})

	if err := s.Ingest(scheduler.Chunk{Text: "um uh like okay", Seq: 1}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := s.End(); err != nil {
		t.Fatalf("end: %v", err)
	}

	final := waitEvent(t, s, EventSessionFinalized).Final
	if final.Metrics.ChunksDiscarded != 1 {
		t.Errorf("discarded = %d, want 1", final.Metrics.ChunksDiscarded)
	}
	if final.Metrics.Rounds != 0 {
		t.Errorf("rounds = %d, want 0", final.Metrics.Rounds)
	}
}

func TestManagerLifecycle(t *testing.T) {
	m := NewManager(testCfg(), Collaborators{Extractor: &fakeModel{}, Embedder: &fakeModel{}})
	defer m.Close()

	s, err := m.Create("proj-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.Count() != 1 {
		t.Errorf("count = %d, want 1", m.Count())
	}

	got, err := m.Get(s.ID)
	if err != nil || got != s {
		t.Errorf("Get = (%v, %v)", got, err)
	}

	if err := m.End(s.ID); err != nil {
		t.Errorf("end: %v", err)
	}
	if m.Count() != 0 {
		t.Errorf("count after end = %d, want 0", m.Count())
	}

	if _, err := m.Get(s.ID); !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Errorf("Get after end: err = %v, want CodeNotFound", err)
	}
}
