package model

// UnresolvedReason classifies why a candidate could not be matched to a
// catalog record. The reason is recorded for diagnostics; downstream
// artifacts only distinguish resolved from unresolved.
type UnresolvedReason string

// Unresolved reasons, in increasing order of severity.
const (
	// ReasonNoPatternMatch means every search strategy completed but no
	// record key pattern appeared in the navigated location or any anchor.
	ReasonNoPatternMatch UnresolvedReason = "no-pattern-match"

	// ReasonTimeout means the catalog did not reach a recognizable page
	// state within the page-load timeout.
	ReasonTimeout UnresolvedReason = "timeout"

	// ReasonSessionError means the browser session faulted during a
	// strategy step (navigation error, driver crash).
	ReasonSessionError UnresolvedReason = "session-error"
)

// severity ranks reasons so that the most diagnostic one wins when
// different strategies fail differently within a single resolution.
func (r UnresolvedReason) severity() int {
	switch r {
	case ReasonSessionError:
		return 2
	case ReasonTimeout:
		return 1
	default:
		return 0
	}
}

// MoreSevere reports whether r outranks other.
func (r UnresolvedReason) MoreSevere(other UnresolvedReason) bool {
	return r.severity() > other.severity()
}

// Resolution is the outcome of resolving one candidate against the
// catalog: either a record key or an unresolved reason. Exactly one
// Resolution is produced per candidate.
type Resolution struct {
	// Key is the catalog record key ("catkey"). Non-empty only when the
	// candidate resolved; always one or more decimal digits.
	Key string

	// Reason explains an unresolved outcome. Empty when resolved.
	Reason UnresolvedReason
}

// Resolved builds a successful resolution carrying the record key.
func Resolved(key string) Resolution {
	return Resolution{Key: key}
}

// Unresolved builds a failed resolution with the given reason.
func Unresolved(reason UnresolvedReason) Resolution {
	return Resolution{Reason: reason}
}

// IsResolved reports whether the candidate matched a catalog record.
func (r Resolution) IsResolved() bool {
	return r.Key != ""
}

// Outcome pairs a candidate with its resolution. The run keeps the
// full outcome sequence for persistence; the accumulator only keeps
// what the artifacts need.
type Outcome struct {
	Candidate  Candidate
	Resolution Resolution
}
