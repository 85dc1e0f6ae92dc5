package assist

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/meetsense/platform/internal/insight"
	"github.com/meetsense/platform/internal/scheduler"
	"github.com/meetsense/platform/internal/search"
	"github.com/meetsense/platform/internal/trace"
)

// AnalysisTimeout bounds each collaborator-backed analysis.
const AnalysisTimeout = 2 * time.Second

// conflictSimilarity is the score above which a past decision is flagged.
const conflictSimilarity = 0.8

// Searcher is the slice of the search collaborator the analyses use.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]search.Passage, error)
}

// Analyzer runs the activated analyses for one session.
type Analyzer struct {
	searcher Searcher
	tracker  *Tracker
}

// NewAnalyzer creates an analyzer. searcher may be nil; collaborator-backed
// analyses are then skipped.
func NewAnalyzer(searcher Searcher) *Analyzer {
	return &Analyzer{searcher: searcher, tracker: NewTracker()}
}

// Run executes the activated analyses concurrently and collects their items.
// degraded reports whether any activated analysis failed or timed out.
func (a *Analyzer) Run(ctx context.Context, act Activation, chunk scheduler.Chunk, extracted []insight.Insight) (items []Item, degraded bool) {
	ctx, span := trace.StartSpan(ctx, "assist_round")
	defer span.End()

	if act.TimeTracking {
		items = append(items, a.tracker.Observe(chunk)...)
	}

	if act.Clarification {
		items = append(items, clarifications(extracted)...)
	}
	if act.ActionQuality {
		items = append(items, actionQuality(extracted)...)
	}

	if a.searcher == nil || !(act.Conflict || act.FollowUp) {
		return items, false
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	run := func(name string, fn func(context.Context) ([]Item, error)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			actx, cancel := context.WithTimeout(ctx, AnalysisTimeout)
			defer cancel()

			out, err := fn(actx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				trace.Logger(ctx).Warn("assist analysis failed", "analysis", name, "error", err)
				degraded = true
				return
			}
			items = append(items, out...)
		}()
	}

	if act.Conflict {
		run("conflict", func(actx context.Context) ([]Item, error) {
			return a.conflicts(actx, extracted, chunk)
		})
	}
	if act.FollowUp {
		run("follow_up", func(actx context.Context) ([]Item, error) {
			return a.followUps(actx, extracted)
		})
	}
	wg.Wait()

	span.SetAttr("items", len(items))
	span.SetAttr("degraded", degraded)
	return items, degraded
}

var vagueRe = regexp.MustCompile(`(?i)\b(soon|later|eventually|sometime|someday|at some point|someone|somebody|somehow|maybe|probably|stuff|things|etc)\b`)

// clarifications flags vague wording in action items and decisions.
func clarifications(extracted []insight.Insight) []Item {
	var out []Item
	for _, ins := range extracted {
		if ins.Kind != insight.KindActionItem && ins.Kind != insight.KindDecision {
			continue
		}
		if term := vagueRe.FindString(ins.Content); term != "" {
			out = append(out, Item{
				Type: ItemClarification,
				Clarification: &Clarification{
					InsightID: ins.Canonical,
					Term:      term,
					Prompt:    "\"" + term + "\" is vague here; worth pinning down before the meeting moves on.",
				},
			})
		}
	}
	return out
}

// actionQuality flags action items missing an owner or a date.
func actionQuality(extracted []insight.Insight) []Item {
	var out []Item
	for _, ins := range extracted {
		if ins.Kind != insight.KindActionItem {
			continue
		}
		q := ActionQuality{
			InsightID:       ins.Canonical,
			MissingAssignee: ins.Assignee == "",
			MissingDueDate:  ins.DueDate == "",
		}
		if !q.MissingAssignee && !q.MissingDueDate {
			continue
		}
		switch {
		case q.MissingAssignee && q.MissingDueDate:
			q.Prompt = "This action item has no owner and no due date."
		case q.MissingAssignee:
			q.Prompt = "This action item has no owner."
		default:
			q.Prompt = "This action item has no due date."
		}
		out = append(out, Item{Type: ItemActionQuality, ActionQuality: &q})
	}
	return out
}

// conflicts looks for past decisions that collide with new ones.
func (a *Analyzer) conflicts(ctx context.Context, extracted []insight.Insight, chunk scheduler.Chunk) ([]Item, error) {
	query := chunk.Text
	var decision *insight.Insight
	for i := range extracted {
		if extracted[i].Kind == insight.KindDecision {
			decision = &extracted[i]
			query = decision.Content
			break
		}
	}

	passages, err := a.searcher.Search(ctx, query, 3)
	if err != nil {
		return nil, err
	}

	var out []Item
	for _, p := range passages {
		if p.Score < conflictSimilarity {
			continue
		}
		c := Conflict{
			PassageID:  p.ID,
			Title:      p.Title,
			Excerpt:    p.Content,
			Similarity: p.Score,
		}
		if decision != nil {
			c.InsightID = decision.Canonical
		}
		out = append(out, Item{Type: ItemConflict, Conflict: &c})
	}
	return out, nil
}

// followUps suggests related past discussion for decisions and key points.
func (a *Analyzer) followUps(ctx context.Context, extracted []insight.Insight) ([]Item, error) {
	var out []Item
	for _, ins := range extracted {
		if ins.Kind != insight.KindDecision && ins.Kind != insight.KindKeyPoint {
			continue
		}
		passages, err := a.searcher.Search(ctx, ins.Content, 1)
		if err != nil {
			return out, err
		}
		for _, p := range passages {
			out = append(out, Item{
				Type: ItemFollowUp,
				FollowUp: &FollowUp{
					InsightID: ins.Canonical,
					PassageID: p.ID,
					Title:     p.Title,
					Excerpt:   p.Content,
					Score:     p.Score,
				},
			})
		}
	}
	return out, nil
}
