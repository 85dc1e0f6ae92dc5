// Package signal provides lexical analysis of transcript text. Everything here
// runs locally on every chunk, so it must stay cheap: no collaborator calls.
package signal

import (
	"regexp"
	"strings"
)

// Signals holds the pattern flags derived from one chunk of text.
type Signals struct {
	HasActionVerb  bool
	HasTimeRef     bool
	HasQuestion    bool
	HasDecision    bool
	HasAssignment  bool
	HasRisk        bool
	Density        float64
	WordCount      int
	NonFillerWords int
}

// HighDensityThreshold marks text as clearly actionable.
const HighDensityThreshold = 0.3

// Density score weights (per weighted-signal-per-word scoring)
const (
	weightActionTime         = 2.0
	weightDecisionAssignment = 1.5
	weightQuestionOrRisk     = 1.0
	weightIsolated           = 0.5
)

var (
	actionRe   = regexp.MustCompile(`(?i)\b(complete|finish|deliver|deploy|ship|send|schedule|prepare|review|implement|fix|create|draft|submit|set up|follow up|take care of|wrap up|reach out)\b`)
	timeRe     = regexp.MustCompile(`(?i)\b(today|tonight|tomorrow|monday|tuesday|wednesday|thursday|friday|saturday|sunday|next week|this week|next month|end of (day|week|month|quarter)|eod|eow|asap|deadline|due)\b`)
	questionRe = regexp.MustCompile(`(?i)^\s*(who|what|when|where|why|how|which|is|are|can|could|should|would|will|do|does|did|have|has)\b`)
	decisionRe = regexp.MustCompile(`(?i)\b(decided|decision|agreed|agreement|approved|settled on|we'll go with|let's go with|going with|final call|signed off|sign off)\b`)
	assignRe   = regexp.MustCompile(`(?i)\b(assigned to|assignee|owner|owns|responsible for|i'll take|i will take|you take|takes point|on point for|will handle|handles)\b|\b[A-Z][a-z]+ (will|is going to)\b`)
	riskRe     = regexp.MustCompile(`(?i)\b(risk|risky|at risk|concern|concerned|worried|worry|blocker|blocked|blocking|danger|jeopardy|slip|might fail|falling behind)\b`)
)

var fillerWords = map[string]struct{}{
	"um": {}, "uh": {}, "uhm": {}, "er": {}, "ah": {}, "hmm": {}, "mhm": {},
	"like": {}, "okay": {}, "ok": {}, "yeah": {}, "yep": {}, "right": {},
	"so": {}, "well": {}, "anyway": {}, "actually": {}, "basically": {},
	"literally": {}, "kinda": {}, "sorta": {},
}

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "of": {},
	"to": {}, "in": {}, "on": {}, "at": {}, "by": {}, "for": {}, "with": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {},
	"it": {}, "this": {}, "that": {}, "we": {}, "i": {}, "you": {},
	"he": {}, "she": {}, "they": {}, "them": {}, "our": {}, "my": {},
}

// Analyze computes pattern signals and the density score for a chunk of text.
func Analyze(text string) Signals {
	words := strings.Fields(text)
	s := Signals{
		HasActionVerb:  actionRe.MatchString(text),
		HasTimeRef:     timeRe.MatchString(text),
		HasQuestion:    strings.Contains(text, "?") || questionRe.MatchString(text),
		HasDecision:    decisionRe.MatchString(text),
		HasAssignment:  assignRe.MatchString(text),
		HasRisk:        riskRe.MatchString(text),
		WordCount:      len(words),
		NonFillerWords: NonFillerCount(text),
	}
	s.Density = density(s)
	return s
}

// density is a weighted signal sum normalized by word count. Co-occurring
// action+time and decision+assignment pairs outweigh isolated markers.
func density(s Signals) float64 {
	if s.WordCount == 0 {
		return 0
	}

	var sum float64
	switch {
	case s.HasActionVerb && s.HasTimeRef:
		sum += weightActionTime
	case s.HasActionVerb || s.HasTimeRef:
		sum += weightIsolated
	}
	switch {
	case s.HasDecision && s.HasAssignment:
		sum += weightDecisionAssignment
	case s.HasDecision || s.HasAssignment:
		sum += weightIsolated
	}
	if s.HasQuestion {
		sum += weightQuestionOrRisk
	}
	if s.HasRisk {
		sum += weightQuestionOrRisk
	}
	return sum / float64(s.WordCount)
}

// HighDensity reports whether the chunk is clearly actionable.
func (s Signals) HighDensity() bool {
	return s.Density >= HighDensityThreshold
}

// Actionable reports whether any single actionable marker is present.
func (s Signals) Actionable() bool {
	return s.HasActionVerb || s.HasTimeRef || s.HasQuestion ||
		s.HasDecision || s.HasAssignment || s.HasRisk
}

// IsLowQuality reports whether text is too degenerate to be worth counting:
// too short, too repetitive, or mostly filler.
func IsLowQuality(text string) bool {
	tokens := tokenize(text)
	if len(tokens) < 3 {
		return true
	}

	unique := make(map[string]struct{}, len(tokens))
	fillers := 0
	substantive := 0
	repeats := 1
	maxRepeats := 1
	var prev string

	for _, tok := range tokens {
		unique[tok] = struct{}{}

		if _, ok := fillerWords[tok]; ok {
			fillers++
		} else if _, ok := stopWords[tok]; !ok {
			substantive++
		}

		if tok == prev {
			repeats++
			if repeats > maxRepeats {
				maxRepeats = repeats
			}
		} else {
			repeats = 1
		}
		prev = tok
	}

	n := float64(len(tokens))
	if float64(len(unique))/n < 0.5 {
		return true
	}
	if float64(fillers)/n > 0.6 {
		return true
	}
	if maxRepeats >= 3 {
		return true
	}
	if substantive < 2 {
		return true
	}
	return false
}

// SubstantiveTokens returns lowercased tokens with fillers and stopwords
// removed. Used for cheap lexical overlap scoring.
func SubstantiveTokens(text string) []string {
	tokens := tokenize(text)
	out := tokens[:0]
	for _, tok := range tokens {
		if _, ok := fillerWords[tok]; ok {
			continue
		}
		if _, ok := stopWords[tok]; ok {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// NonFillerCount returns the number of non-filler tokens in text.
func NonFillerCount(text string) int {
	count := 0
	for _, tok := range tokenize(text) {
		if _, ok := fillerWords[tok]; !ok {
			count++
		}
	}
	return count
}

func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		t := strings.Trim(f, ".,!?;:'\"()")
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}
