package assist

import (
	"strings"
	"time"

	"github.com/meetsense/platform/internal/scheduler"
	"github.com/meetsense/platform/internal/syncx"
)

// Repetition reporting thresholds
const (
	repetitionMinCount = 3
	phraseLen          = 3  // words per tracked phrase
	timeUsageInterval  = 10 // chunks between time usage reports
)

type trackerState struct {
	talkTime  map[string]time.Duration
	total     time.Duration
	phrases   map[string]int
	reported  map[string]bool
	chunkSeen int
}

// Tracker accumulates talk-time and repetition state across a session.
// Purely local; never calls a collaborator.
type Tracker struct {
	state *syncx.RWGuard[trackerState]
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{state: syncx.NewGuard(trackerState{
		talkTime: make(map[string]time.Duration),
		phrases:  make(map[string]int),
		reported: make(map[string]bool),
	})}
}

// Observe folds one chunk into the tracker and returns any items due this
// round: repetitions crossing the threshold, and a periodic talk-time report.
func (t *Tracker) Observe(chunk scheduler.Chunk) []Item {
	var items []Item

	t.state.Write(func(s *trackerState) {
		s.chunkSeen++

		speaker := chunk.Speaker
		if speaker == "" {
			speaker = "unknown"
		}
		s.talkTime[speaker] += chunk.Duration
		s.total += chunk.Duration

		for _, phrase := range shingles(chunk.Text, phraseLen) {
			s.phrases[phrase]++
			if s.phrases[phrase] >= repetitionMinCount && !s.reported[phrase] {
				s.reported[phrase] = true
				items = append(items, Item{
					Type:       ItemRepetition,
					Repetition: &Repetition{Phrase: phrase, Count: s.phrases[phrase]},
				})
			}
		}

		if s.chunkSeen%timeUsageInterval == 0 && s.total > 0 {
			for sp, d := range s.talkTime {
				items = append(items, Item{
					Type: ItemTimeUsage,
					TimeUsage: &TimeUsage{
						Speaker: sp,
						Total:   d,
						Share:   float64(d) / float64(s.total),
					},
				})
			}
		}
	})

	return items
}

// shingles returns normalized n-word phrases from text, skipping short ones.
func shingles(text string, n int) []string {
	words := strings.Fields(strings.ToLower(text))
	for i, w := range words {
		words[i] = strings.Trim(w, ".,!?;:'\"()")
	}
	if len(words) < n {
		return nil
	}
	out := make([]string, 0, len(words)-n+1)
	for i := 0; i+n <= len(words); i++ {
		out = append(out, strings.Join(words[i:i+n], " "))
	}
	return out
}
