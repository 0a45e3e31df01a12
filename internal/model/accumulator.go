package model

import "time"

// UnresolvedRow is one unresolved candidate as it appears in the
// not-found artifact: {list, isbn-or-placeholder, title, author}.
type UnresolvedRow struct {
	List   string
	ISBN   string
	Title  string
	Author string

	// Reason is carried for logging and persistence; it is not part of
	// the CSV artifact columns.
	Reason UnresolvedReason
}

// MissingISBN is the placeholder written when a candidate reached the
// unresolved set without a usable identifier.
const MissingISBN = "N/A"

// Accumulator collects per-list resolution results during a run.
//
// Resolved keys are kept per source list in the order they were
// resolved; that insertion order is load-bearing for downstream
// consumers of the found artifact and must never be sorted. Unresolved
// candidates are kept as a flat slice in encounter order.
//
// The accumulator is owned by the single run goroutine and is not safe
// for concurrent mutation; resolution is strictly sequential, so no
// locking is provided.
type Accumulator struct {
	listOrder  []string
	resolved   map[string][]string
	unresolved []UnresolvedRow
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		resolved: make(map[string][]string),
	}
}

// Record stores the resolution outcome for one candidate.
func (a *Accumulator) Record(c Candidate, r Resolution) {
	if r.IsResolved() {
		if _, seen := a.resolved[c.List]; !seen {
			a.listOrder = append(a.listOrder, c.List)
		}
		a.resolved[c.List] = append(a.resolved[c.List], r.Key)
		return
	}
	isbn := c.ISBN
	if isbn == "" {
		isbn = MissingISBN
	}
	a.unresolved = append(a.unresolved, UnresolvedRow{
		List:   c.List,
		ISBN:   isbn,
		Title:  c.Title,
		Author: c.Author,
		Reason: r.Reason,
	})
}

// Lists returns the source-list names that produced at least one
// resolved key, in first-resolution order.
func (a *Accumulator) Lists() []string {
	out := make([]string, len(a.listOrder))
	copy(out, a.listOrder)
	return out
}

// ResolvedKeys returns the resolved keys for a list in resolution order.
func (a *Accumulator) ResolvedKeys(list string) []string {
	keys := a.resolved[list]
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}

// AllResolvedKeys returns every resolved key across lists, preserving
// list order then per-list resolution order.
func (a *Accumulator) AllResolvedKeys() []string {
	var out []string
	for _, list := range a.listOrder {
		out = append(out, a.resolved[list]...)
	}
	return out
}

// Unresolved returns the unresolved rows in encounter order.
func (a *Accumulator) Unresolved() []UnresolvedRow {
	out := make([]UnresolvedRow, len(a.unresolved))
	copy(out, a.unresolved)
	return out
}

// TotalResolved returns the number of resolved candidates.
func (a *Accumulator) TotalResolved() int {
	total := 0
	for _, keys := range a.resolved {
		total += len(keys)
	}
	return total
}

// TotalUnresolved returns the number of unresolved candidates.
func (a *Accumulator) TotalUnresolved() int {
	return len(a.unresolved)
}

// UnresolvedCount returns the number of unresolved candidates for one list.
func (a *Accumulator) UnresolvedCount(list string) int {
	count := 0
	for _, row := range a.unresolved {
		if row.List == list {
			count++
		}
	}
	return count
}

// Run carries everything a single end-to-end run accumulates: identity,
// timing, the accumulator, and the artifact paths produced by the
// exporter. Pipeline steps mutate it in sequence.
type Run struct {
	// ID uniquely identifies the run (UUID), used as the database key.
	ID string

	// StartedAt is when processing began.
	StartedAt time.Time

	// FinishedAt is when the resolution loop ended.
	FinishedAt time.Time

	// Lists is the configured set of source lists for this run,
	// including ones that produced no candidates.
	Lists []string

	// Results accumulates resolution outcomes.
	Results *Accumulator

	// Outcomes is the full per-candidate outcome sequence in
	// resolution order, kept for persistence.
	Outcomes []Outcome

	// Artifacts maps delivered filename to on-disk path for every
	// artifact written by the exporter.
	Artifacts map[string]string

	// Notified records whether the notification was delivered.
	Notified bool
}

// NewRun creates a Run with an empty accumulator.
func NewRun(id string, lists []string) *Run {
	return &Run{
		ID:        id,
		StartedAt: time.Now(),
		Lists:     lists,
		Results:   NewAccumulator(),
		Artifacts: make(map[string]string),
	}
}

// Record stores one candidate outcome on both the accumulator and the
// outcome sequence.
func (r *Run) Record(c Candidate, res Resolution) {
	r.Results.Record(c, res)
	r.Outcomes = append(r.Outcomes, Outcome{Candidate: c, Resolution: res})
}
