// Package insight defines the typed records the engine extracts from a meeting.
package insight

import (
	"time"

	"github.com/google/uuid"
)

// Kind is the closed set of insight categories.
type Kind string

const (
	KindActionItem    Kind = "action_item"
	KindDecision      Kind = "decision"
	KindQuestion      Kind = "question"
	KindRisk          Kind = "risk"
	KindKeyPoint      Kind = "key_point"
	KindContradiction Kind = "contradiction"
	KindMissingInfo   Kind = "missing_info"
	KindReference     Kind = "reference"
)

// ValidKind reports whether k is one of the eight categories.
func ValidKind(k Kind) bool {
	switch k {
	case KindActionItem, KindDecision, KindQuestion, KindRisk,
		KindKeyPoint, KindContradiction, KindMissingInfo, KindReference:
		return true
	}
	return false
}

// Insight is one immutable extracted record. An updated insight is never
// edited in place: a new record supersedes it, keeping the canonical id
// stable for clients.
type Insight struct {
	ID         uuid.UUID   `json:"record_id"`
	Canonical  uuid.UUID   `json:"id"`
	Kind       Kind        `json:"kind"`
	Priority   string      `json:"priority"`
	Content    string      `json:"content"`
	Context    string      `json:"context,omitempty"`
	Confidence float64     `json:"confidence"`
	SourceSeq  int         `json:"source_chunk"`
	Assignee   string      `json:"assignee,omitempty"`
	DueDate    string      `json:"due_date,omitempty"`
	Related    []uuid.UUID `json:"related,omitempty"`
	Supersedes *uuid.UUID  `json:"supersedes,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Tier identifies one question-resolution strategy.
type Tier string

const (
	TierKnowledgeBase Tier = "knowledge_base"
	TierTranscript    Tier = "transcript"
	TierBackground    Tier = "background_live"
	TierFallback      Tier = "generated_fallback"
)

// TierStatus tracks one tier's progress for a question.
type TierStatus string

const (
	TierNotStarted TierStatus = "not-started"
	TierRunning    TierStatus = "running"
	TierSucceeded  TierStatus = "succeeded"
	TierTimedOut   TierStatus = "timed-out"
	TierFailed     TierStatus = "failed"
)

// QuestionState is the question's overall lifecycle state.
type QuestionState string

const (
	StateOpen               QuestionState = "open"
	StateResolvedFast       QuestionState = "resolved-fast"
	StateFallbackRunning    QuestionState = "fallback-running"
	StateAwaitingBackground QuestionState = "awaiting-background"
	StateResolvedFallback   QuestionState = "resolved-fallback"
	StateResolvedBackground QuestionState = "resolved-background"
	StateUnresolved         QuestionState = "unresolved"
	StateFinalized          QuestionState = "finalized"
)

// Answer is a tier's accepted answer payload.
type Answer struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Source     Tier    `json:"source"`
	SourceDoc  string  `json:"source_doc,omitempty"`
	Generated  bool    `json:"generated"` // true only for the fallback tier
}

// QuestionRecord is the final, immutable shape of a question at session end.
type QuestionRecord struct {
	ID     uuid.UUID           `json:"id"`
	Text   string              `json:"text"`
	State  QuestionState       `json:"state"`
	Tiers  map[Tier]TierStatus `json:"tiers"`
	Answer *Answer             `json:"answer,omitempty"`
}
