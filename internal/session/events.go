package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/meetsense/platform/internal/assist"
	"github.com/meetsense/platform/internal/insight"
)

// EventType discriminates the outbound event union.
type EventType string

const (
	EventSessionStarted   EventType = "session_started"
	EventInsights         EventType = "insights_extracted"
	EventAssistance       EventType = "proactive_assistance"
	EventQuestionUpdate   EventType = "question_update"
	EventMetricsUpdate    EventType = "metrics_update"
	EventSessionFinalized EventType = "session_finalized"
)

// Event is one self-contained outbound message. Exactly one payload field is
// set, selected by Type.
type Event struct {
	Type      EventType `json:"type"`
	SessionID uuid.UUID `json:"session_id"`

	Extracted  *ExtractedPayload  `json:"extracted,omitempty"`
	Assistance *AssistancePayload `json:"assistance,omitempty"`
	Question   *QuestionPayload   `json:"question,omitempty"`
	Metrics    *Metrics           `json:"metrics,omitempty"`
	Final      *FinalPayload      `json:"final,omitempty"`
}

// ExtractedPayload reports one processing round's accepted insights.
type ExtractedPayload struct {
	Insights        []insight.Insight `json:"insights"`
	TriggerPriority string            `json:"trigger_priority"`
	SemanticScore   float64           `json:"semantic_score"`
	ProcessingTime  time.Duration     `json:"processing_time"`
	Degraded        bool              `json:"degraded,omitempty"`
}

// AssistancePayload carries proactive assistance items for one round.
type AssistancePayload struct {
	Items    []assist.Item `json:"items"`
	Degraded bool          `json:"degraded,omitempty"`
}

// QuestionPayload reports a question resolution transition.
type QuestionPayload struct {
	QuestionID uuid.UUID             `json:"question_id"`
	Status     insight.QuestionState `json:"status"`
	Answer     *insight.Answer       `json:"answer,omitempty"`
	SourceTier insight.Tier          `json:"source_tier,omitempty"`
}

// FinalPayload is the one-shot finalize record for a session.
type FinalPayload struct {
	Insights  []insight.Insight        `json:"all_insights"`
	Questions []insight.QuestionRecord `json:"all_questions"`
	Metrics   Metrics                  `json:"metrics"`
}
