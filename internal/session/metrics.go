package session

import "time"

// Metrics accumulates per-session counters. Owned by the session loop;
// snapshots are copied before they leave it.
type Metrics struct {
	ChunksReceived  int `json:"chunks_received"`
	ChunksDiscarded int `json:"chunks_discarded"`
	ChunksRejected  int `json:"chunks_rejected"`

	Rounds         int            `json:"rounds"`
	DegradedRounds int            `json:"degraded_rounds"`
	Triggers       map[string]int `json:"triggers_by_reason"`

	InsightsByKind map[string]int `json:"insights_by_kind"`
	InsightsMerged int            `json:"insights_merged"`
	AssistItems    int            `json:"assist_items"`

	QuestionsAsked      int            `json:"questions_asked"`
	QuestionsResolved   map[string]int `json:"questions_resolved_by_tier"`
	QuestionsUnresolved int            `json:"questions_unresolved"`

	ProcessingTime time.Duration `json:"processing_time"`
}

func newMetrics() Metrics {
	return Metrics{
		Triggers:          make(map[string]int),
		InsightsByKind:    make(map[string]int),
		QuestionsResolved: make(map[string]int),
	}
}

// clone returns a deep copy safe to hand outside the loop.
func (m Metrics) clone() Metrics {
	out := m
	out.Triggers = make(map[string]int, len(m.Triggers))
	for k, v := range m.Triggers {
		out.Triggers[k] = v
	}
	out.InsightsByKind = make(map[string]int, len(m.InsightsByKind))
	for k, v := range m.InsightsByKind {
		out.InsightsByKind[k] = v
	}
	out.QuestionsResolved = make(map[string]int, len(m.QuestionsResolved))
	for k, v := range m.QuestionsResolved {
		out.QuestionsResolved[k] = v
	}
	return out
}
