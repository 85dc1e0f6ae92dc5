// Package scheduler decides when accumulated transcript text is worth a
// processing round. It is the engine's backpressure valve: accumulation is
// bounded by chunk count and word count, so worst-case trigger latency stays
// fixed no matter how fast chunks arrive.
package scheduler

import (
	"time"

	"github.com/meetsense/platform/internal/signal"
)

// Chunk is one arriving unit of transcribed speech. Immutable once created.
type Chunk struct {
	Text      string
	Seq       int
	Speaker   string
	Timestamp time.Time
	Duration  time.Duration
}

// Priority classifies how urgently a chunk needs processing.
type Priority int

const (
	Skip Priority = iota
	Low
	Medium
	High
	Immediate
)

func (p Priority) String() string {
	return [...]string{"skip", "low", "medium", "high", "immediate"}[p]
}

// requiredContext maps a priority to the chunk count that must accumulate
// before it justifies a trigger on its own.
var requiredContext = map[Priority]int{
	Immediate: 0,
	High:      2,
	Medium:    3,
	Low:       4,
}

// RequiredContext returns the accumulation requirement for a priority.
func RequiredContext(p Priority) int {
	if n, ok := requiredContext[p]; ok {
		return n
	}
	return requiredContext[Low]
}

// Decision is the scheduler's verdict for one observed chunk.
type Decision struct {
	Trigger   bool
	Discarded bool // low-quality chunk dropped without counting
	Priority  Priority
	Signals   signal.Signals
	Reason    string
}

// Scheduler tracks one session's accumulation state. Owned by the session
// loop; not safe for concurrent use.
type Scheduler struct {
	buffer         []Chunk
	sinceTrigger   int
	highestSeen    Priority
	nonFillerWords int

	maxBuffer int
}

// New creates a scheduler with the given context buffer bound.
func New(maxBuffer int) *Scheduler {
	if maxBuffer <= 0 {
		maxBuffer = DefaultMaxBuffer
	}
	return &Scheduler{maxBuffer: maxBuffer, highestSeen: Skip}
}

// Classify maps signals onto a processing priority.
func Classify(s signal.Signals) Priority {
	switch {
	case s.WordCount == 0:
		return Skip
	case (s.HasActionVerb && s.HasTimeRef) || (s.HasDecision && s.HasAssignment) || s.HasRisk:
		return Immediate
	case s.Actionable():
		return High
	case s.NonFillerWords < LowContentWords:
		return Low
	default:
		return Medium
	}
}

// Observe feeds one chunk into the scheduler and reports whether processing
// should trigger now.
func (s *Scheduler) Observe(ch Chunk) Decision {
	if signal.IsLowQuality(ch.Text) {
		return Decision{Discarded: true, Priority: Skip, Reason: "low_quality"}
	}

	sig := signal.Analyze(ch.Text)
	prio := Classify(sig)
	if prio == Skip {
		return Decision{Discarded: true, Priority: Skip, Signals: sig, Reason: "degenerate"}
	}

	s.buffer = append(s.buffer, ch)
	if len(s.buffer) > s.maxBuffer {
		s.buffer = s.buffer[len(s.buffer)-s.maxBuffer:]
	}
	s.sinceTrigger++
	s.nonFillerWords += sig.NonFillerWords
	if prio > s.highestSeen {
		s.highestSeen = prio
	}

	d := Decision{Priority: prio, Signals: sig}

	// A trigger with nothing of substance accumulated is never allowed.
	if s.nonFillerWords == 0 {
		return d
	}

	switch {
	case prio == Immediate:
		d.Trigger = true
		d.Reason = "immediate"
	case s.sinceTrigger >= RequiredContext(s.highestSeen):
		d.Trigger = true
		d.Reason = "context_met"
	case s.sinceTrigger >= HardCeilingChunks:
		d.Trigger = true
		d.Reason = "hard_ceiling"
	case s.nonFillerWords >= WordCountThreshold:
		d.Trigger = true
		d.Reason = "word_count"
	}

	if d.Trigger {
		d.Priority = maxPriority(prio, s.highestSeen)
		s.sinceTrigger = 0
		s.highestSeen = Skip
		s.nonFillerWords = 0
	}
	return d
}

// Window returns the context chunks for a trigger of the given priority: the
// trailing slice sized by the priority's context requirement plus the
// triggering chunk itself.
func (s *Scheduler) Window(p Priority) []Chunk {
	n := RequiredContext(p) + 1
	if n > len(s.buffer) {
		n = len(s.buffer)
	}
	out := make([]Chunk, n)
	copy(out, s.buffer[len(s.buffer)-n:])
	return out
}

// Pending returns how many chunks accumulated since the last trigger.
func (s *Scheduler) Pending() int { return s.sinceTrigger }

func maxPriority(a, b Priority) Priority {
	if a > b {
		return a
	}
	return b
}
