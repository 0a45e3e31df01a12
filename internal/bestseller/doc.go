// Package bestseller implements the list source client: it fetches a
// named bestseller list over HTTP, retries transient failures with
// exponential backoff, and normalizes entries into candidates with
// validated ISBN-13 identifiers. Fetch failures are reported to the
// caller and are never fatal to a run.
package bestseller
