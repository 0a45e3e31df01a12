// Package browser provisions and owns the run's single interactive
// browser session, built on go-rod driving a headless Chrome over the
// DevTools protocol. The Manager guarantees the underlying process is
// torn down on every exit path; the Session adapts the page to the
// resolver's narrow capability interface.
package browser
