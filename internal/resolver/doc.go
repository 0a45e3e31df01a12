// Package resolver implements the resolution engine: given a normalized
// ISBN-13 and a browser session, it executes an ordered, short-circuiting
// chain of catalog search strategies and extracts the catalog's internal
// record key from either the navigated location or a rendered anchor.
//
// The catalog's redirect behavior is inconsistent: a single match
// sometimes auto-redirects to a detail page (key in the URL) and
// sometimes lands on a one-item results page (key only in an anchor).
// The engine tolerates both without distinguishing them to the caller,
// and degrades every failure mode to an unresolved outcome with a
// reason. Nothing in this package can abort a run.
package resolver
