package assist

import (
	"testing"
	"time"

	"github.com/meetsense/platform/internal/scheduler"
)

func TestTrackerRepetitionThreshold(t *testing.T) {
	tr := NewTracker()

	var got []Item
	for i := 0; i < repetitionMinCount; i++ {
		got = tr.Observe(scheduler.Chunk{Text: "circle back on pricing", Seq: i + 1})
	}

	reps := itemsOfType(got, ItemRepetition)
	if len(reps) == 0 {
		t.Fatal("expected a repetition item on the third occurrence")
	}
	if reps[0].Repetition.Count != repetitionMinCount {
		t.Errorf("count = %d, want %d", reps[0].Repetition.Count, repetitionMinCount)
	}
}

func TestTrackerRepetitionReportedOnce(t *testing.T) {
	tr := NewTracker()

	for i := 0; i < repetitionMinCount; i++ {
		tr.Observe(scheduler.Chunk{Text: "circle back on pricing", Seq: i + 1})
	}
	// A fourth occurrence must stay quiet.
	got := tr.Observe(scheduler.Chunk{Text: "circle back on pricing", Seq: 99})
	if len(itemsOfType(got, ItemRepetition)) != 0 {
		t.Error("repetition reported twice")
	}
}

func TestTrackerTimeUsageInterval(t *testing.T) {
	tr := NewTracker()

	var usage []Item
	for i := 1; i <= timeUsageInterval; i++ {
		speaker := "alice"
		if i%2 == 0 {
			speaker = "bob"
		}
		items := tr.Observe(scheduler.Chunk{
			Text:     "distinct words each time no repeats here",
			Seq:      i,
			Speaker:  speaker,
			Duration: time.Second,
		})
		usage = append(usage, itemsOfType(items, ItemTimeUsage)...)
		if i < timeUsageInterval && len(usage) > 0 {
			t.Fatalf("time usage reported early at chunk %d", i)
		}
	}

	if len(usage) != 2 {
		t.Fatalf("usage items = %d, want one per speaker", len(usage))
	}
	for _, u := range usage {
		if u.TimeUsage.Share != 0.5 {
			t.Errorf("share for %s = %v, want 0.5", u.TimeUsage.Speaker, u.TimeUsage.Share)
		}
	}
}

func TestShingles(t *testing.T) {
	got := shingles("Circle back on pricing", 3)
	want := []string{"circle back on", "back on pricing"}
	if len(got) != len(want) {
		t.Fatalf("shingles = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("shingle[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if shingles("too short", 3) != nil {
		t.Error("short text should yield no shingles")
	}
}
