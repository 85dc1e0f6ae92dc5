package assist

import (
	"github.com/meetsense/platform/internal/insight"
	"github.com/meetsense/platform/internal/signal"
)

// Activation lists which analyses are worth running for one round.
type Activation struct {
	Clarification bool
	Conflict      bool
	ActionQuality bool
	FollowUp      bool
	AutoAnswer    bool
	TimeTracking  bool
}

// Plan decides activation from the chunk's signals and the insights just
// extracted. Simple membership tests; nothing here pays for a collaborator.
func Plan(sig signal.Signals, extracted []insight.Insight) Activation {
	var hasAction, hasDecision, hasQuestion, hasKeyPoint bool
	for _, ins := range extracted {
		switch ins.Kind {
		case insight.KindActionItem:
			hasAction = true
		case insight.KindDecision:
			hasDecision = true
		case insight.KindQuestion:
			hasQuestion = true
		case insight.KindKeyPoint:
			hasKeyPoint = true
		}
	}

	return Activation{
		Clarification: hasAction || hasDecision,
		Conflict:      hasDecision || sig.HasDecision,
		ActionQuality: hasAction,
		FollowUp:      hasDecision || hasKeyPoint,
		AutoAnswer:    hasQuestion || sig.HasQuestion,
		TimeTracking:  true, // pure local, always worth it
	}
}

// Any reports whether any collaborator-backed analysis is active.
func (a Activation) Any() bool {
	return a.Clarification || a.Conflict || a.ActionQuality || a.FollowUp
}
