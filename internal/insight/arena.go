package insight

import (
	"time"

	"github.com/google/uuid"
)

// Arena is the per-session append-only insight log. Records are never
// mutated; an update appends a superseding record that carries the original
// canonical id forward. Not safe for concurrent use: the session loop owns it.
type Arena struct {
	records    []Insight
	index      map[uuid.UUID]int       // record id -> position
	superseded map[uuid.UUID]uuid.UUID // old record id -> superseding record id
	canonical  map[uuid.UUID]uuid.UUID // canonical id -> latest record id
}

// NewArena creates an empty insight arena.
func NewArena() *Arena {
	return &Arena{
		index:      make(map[uuid.UUID]int),
		superseded: make(map[uuid.UUID]uuid.UUID),
		canonical:  make(map[uuid.UUID]uuid.UUID),
	}
}

// Append adds a fresh insight record. Missing ids are assigned.
func (a *Arena) Append(ins Insight) Insight {
	if ins.ID == uuid.Nil {
		ins.ID = uuid.New()
	}
	if ins.Canonical == uuid.Nil {
		ins.Canonical = ins.ID
	}
	if ins.CreatedAt.IsZero() {
		ins.CreatedAt = time.Now()
	}
	a.index[ins.ID] = len(a.records)
	a.canonical[ins.Canonical] = ins.ID
	a.records = append(a.records, ins)
	return ins
}

// Merge appends a record superseding the insight identified by recordID,
// appending detail to its content and raising confidence to the max of the
// two. The canonical id is kept, so clients see an update, not a new insight.
func (a *Arena) Merge(recordID uuid.UUID, detail string, confidence float64) (Insight, bool) {
	pos, ok := a.index[recordID]
	if !ok {
		return Insight{}, false
	}
	old := a.records[pos]
	if _, gone := a.superseded[recordID]; gone {
		// Follow the chain to the live record.
		live, ok := a.canonical[old.Canonical]
		if !ok || live == recordID {
			return Insight{}, false
		}
		return a.Merge(live, detail, confidence)
	}

	merged := old
	merged.ID = uuid.New()
	merged.Supersedes = &old.ID
	merged.CreatedAt = time.Now()
	if detail != "" && detail != old.Content {
		merged.Content = old.Content + "\n" + detail
	}
	if confidence > merged.Confidence {
		merged.Confidence = confidence
	}

	a.superseded[old.ID] = merged.ID
	a.index[merged.ID] = len(a.records)
	a.canonical[merged.Canonical] = merged.ID
	a.records = append(a.records, merged)
	return merged, true
}

// Get returns the record with the given record id.
func (a *Arena) Get(recordID uuid.UUID) (Insight, bool) {
	pos, ok := a.index[recordID]
	if !ok {
		return Insight{}, false
	}
	return a.records[pos], true
}

// Latest returns the live record for a canonical id.
func (a *Arena) Latest(canonicalID uuid.UUID) (Insight, bool) {
	rid, ok := a.canonical[canonicalID]
	if !ok {
		return Insight{}, false
	}
	return a.Get(rid)
}

// Active returns all non-superseded records in append order.
func (a *Arena) Active() []Insight {
	out := make([]Insight, 0, len(a.records))
	for _, r := range a.records {
		if _, gone := a.superseded[r.ID]; !gone {
			out = append(out, r)
		}
	}
	return out
}

// Len returns the total number of records, superseded included.
func (a *Arena) Len() int { return len(a.records) }
