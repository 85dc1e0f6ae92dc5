// Package assist runs the secondary analyses that proactively help meeting
// participants. Activation is selective and every analysis fails open: a
// timeout or error omits its items from the round, nothing more.
package assist

import (
	"time"

	"github.com/google/uuid"
)

// ItemType discriminates the assistance union.
type ItemType string

const (
	ItemClarification ItemType = "clarification"
	ItemConflict      ItemType = "conflict"
	ItemActionQuality ItemType = "action_quality"
	ItemFollowUp      ItemType = "follow_up"
	ItemTimeUsage     ItemType = "time_usage"
	ItemRepetition    ItemType = "repetition"
)

// Item is one assistance payload. Exactly one case field is set, selected by
// Type; decoded via the discriminant, never as an open map.
type Item struct {
	Type          ItemType       `json:"type"`
	Clarification *Clarification `json:"clarification,omitempty"`
	Conflict      *Conflict      `json:"conflict,omitempty"`
	ActionQuality *ActionQuality `json:"action_quality,omitempty"`
	FollowUp      *FollowUp      `json:"follow_up,omitempty"`
	TimeUsage     *TimeUsage     `json:"time_usage,omitempty"`
	Repetition    *Repetition    `json:"repetition,omitempty"`
}

// Clarification flags vague wording in an action item or decision.
type Clarification struct {
	InsightID uuid.UUID `json:"insight_id"`
	Term      string    `json:"term"`
	Prompt    string    `json:"prompt"`
}

// Conflict flags a new decision that collides with a past one.
type Conflict struct {
	InsightID  uuid.UUID `json:"insight_id"`
	PassageID  string    `json:"passage_id"`
	Title      string    `json:"title,omitempty"`
	Excerpt    string    `json:"excerpt"`
	Similarity float64   `json:"similarity"`
}

// ActionQuality flags an action item missing an assignee or a due date.
type ActionQuality struct {
	InsightID       uuid.UUID `json:"insight_id"`
	MissingAssignee bool      `json:"missing_assignee"`
	MissingDueDate  bool      `json:"missing_due_date"`
	Prompt          string    `json:"prompt"`
}

// FollowUp suggests related past discussion worth revisiting.
type FollowUp struct {
	InsightID uuid.UUID `json:"insight_id"`
	PassageID string    `json:"passage_id"`
	Title     string    `json:"title,omitempty"`
	Excerpt   string    `json:"excerpt"`
	Score     float64   `json:"score"`
}

// TimeUsage reports one speaker's share of talk time so far.
type TimeUsage struct {
	Speaker string        `json:"speaker"`
	Total   time.Duration `json:"total"`
	Share   float64       `json:"share"`
}

// Repetition reports a phrase the meeting keeps circling back to.
type Repetition struct {
	Phrase string `json:"phrase"`
	Count  int    `json:"count"`
}
