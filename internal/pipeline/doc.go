// Package pipeline orchestrates a processing run as an ordered sequence
// of steps: resolve candidates against the catalog, export artifacts,
// notify recipients, and persist the run history. Steps share state
// through the run and can be composed per invocation, so a run without
// email simply omits the notify step.
package pipeline
