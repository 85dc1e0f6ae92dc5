package signal

import (
	"math"
	"testing"
)

func TestAnalyzeActionWithDeadline(t *testing.T) {
	s := Analyze("Complete the API by Friday")

	if !s.HasActionVerb {
		t.Error("expected action verb")
	}
	if !s.HasTimeRef {
		t.Error("expected time reference")
	}
	// 2.0 weight over 5 words.
	if math.Abs(s.Density-0.4) > 1e-9 {
		t.Errorf("density = %v, want 0.4", s.Density)
	}
	if !s.HighDensity() {
		t.Error("expected high density")
	}
}

func TestAnalyzeNoSignals(t *testing.T) {
	s := Analyze("We discussed the weather")

	if s.Density != 0 {
		t.Errorf("density = %v, want 0", s.Density)
	}
	if s.Actionable() {
		t.Error("should not be actionable")
	}
}

func TestAnalyzeEmpty(t *testing.T) {
	s := Analyze("")
	if s.Density != 0 || s.WordCount != 0 {
		t.Errorf("empty text: density=%v words=%d, want zeros", s.Density, s.WordCount)
	}
}

func TestAnalyzeDecisionWithOwner(t *testing.T) {
	s := Analyze("We agreed that Sarah will handle the rollout")
	if !s.HasDecision {
		t.Error("expected decision marker")
	}
	if !s.HasAssignment {
		t.Error("expected assignment marker")
	}
}

func TestAnalyzeQuestion(t *testing.T) {
	for _, text := range []string{
		"What did we decide about the vendor contract?",
		"should we push the release",
	} {
		if !Analyze(text).HasQuestion {
			t.Errorf("expected question signal for %q", text)
		}
	}
}

func TestAnalyzeRisk(t *testing.T) {
	s := Analyze("I'm worried the migration is a blocker for Q3")
	if !s.HasRisk {
		t.Error("expected risk marker")
	}
}

func TestDensityIsolatedMarkers(t *testing.T) {
	// Action verb without a time reference scores the isolated weight.
	s := Analyze("Review the document please and thanks")
	if s.HasTimeRef {
		t.Fatal("unexpected time reference")
	}
	want := 0.5 / float64(s.WordCount)
	if math.Abs(s.Density-want) > 1e-9 {
		t.Errorf("density = %v, want %v", s.Density, want)
	}
}

func TestIsLowQuality(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"the the the meeting today", true}, // repeated token run
		{"um uh like okay yeah", true},      // all filler
		{"hi", true},                        // too short
		{"Finish the API by Friday", false},
		{"Sarah owns the budget review for next quarter", false},
	}

	for _, tt := range tests {
		if got := IsLowQuality(tt.text); got != tt.want {
			t.Errorf("IsLowQuality(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestSubstantiveTokens(t *testing.T) {
	got := SubstantiveTokens("um so the budget review is, like, Friday")
	want := []string{"budget", "review", "friday"}

	if len(got) != len(want) {
		t.Fatalf("tokens = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNonFillerCount(t *testing.T) {
	if got := NonFillerCount("um uh deploy tomorrow"); got != 2 {
		t.Errorf("NonFillerCount = %d, want 2", got)
	}
}
