package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/openshelf/catkey/internal/model"
)

// Session is the narrow capability interface the resolver needs from a
// browser session. Modeling the session this way keeps the strategy
// chain testable against a fake without a real browser.
//
// A Session is stateful: Navigate changes the current location, and
// Location/HTML observe whatever page the session is on. One session
// serves a whole run and is never shared across concurrent resolutions.
type Session interface {
	// Navigate loads the given URL, blocking until the initial load
	// completes or the session's page timeout elapses.
	Navigate(ctx context.Context, url string) error

	// Location returns the session's current URL. Server-side redirects
	// change it without another Navigate call.
	Location() (string, error)

	// HTML returns the currently rendered document.
	HTML() (string, error)

	// WaitLocation polls the current location until pred accepts it or
	// timeout elapses, returning ErrWaitTimeout in the latter case.
	WaitLocation(ctx context.Context, pred func(location string) bool, timeout time.Duration) error
}

// ErrWaitTimeout is returned by Session.WaitLocation when the predicate
// was not satisfied within the timeout.
var ErrWaitTimeout = errors.New("timed out waiting for page state")

// Catalog location substrings that mark a settled page: either the
// server auto-redirected a single match to its detail page, or it
// rendered a results listing. Both are terminal states for a search.
const (
	detailPageFragment  = "detailnonmodal"
	resultsPageFragment = "search/results"
)

// Resolver executes the ordered search-strategy chain against the
// catalog for one identifier at a time. It never panics and never
// returns an error: every failure mode degrades to an unresolved
// outcome with a reason, so one bad identifier can't end a run.
type Resolver struct {
	session     Session
	baseURL     string
	marker      string
	keyPattern  *regexp.Regexp
	pageTimeout time.Duration
	logger      *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// New creates a Resolver bound to one session. The marker parameterizes
// the record-key grammar "<marker>:<digits>"; catalogs built on the same
// ILS family differ only in this token.
func New(session Session, catalogBaseURL, marker string, pageTimeout time.Duration, opts ...Option) *Resolver {
	r := &Resolver{
		session:     session,
		baseURL:     strings.TrimRight(catalogBaseURL, "/"),
		marker:      marker,
		keyPattern:  keyPattern(marker),
		pageTimeout: pageTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// keyPattern compiles the record-key extraction grammar for a marker.
// The broad form (no trailing path constraint) is canonical: detail
// pages append varying path suffixes after the key, and anchors carry
// the bare form.
func keyPattern(marker string) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(marker) + `:(\d+)`)
}

// strategy is one ordered attempt: a named URL template.
type strategy struct {
	name string
	url  func(r *Resolver, isbn string) string
}

// The two-stage chain exists because the catalog's ISBN index misses
// some records that its general index finds; title-mode with the ISBN
// as the query recovers those.
var strategies = []strategy{
	{name: "isbn-search", url: (*Resolver).isbnSearchURL},
	{name: "title-search", url: (*Resolver).titleSearchURL},
}

// isbnSearchURL builds the ISBN-mode search URL. The rt parameter pins
// the search to the ISBN index; its pipe separators must stay encoded.
func (r *Resolver) isbnSearchURL(isbn string) string {
	return fmt.Sprintf("%s/search/results?qu=%s&dt=list&rt=false%%7C%%7C%%7CISBN%%7C%%7C%%7CISBN",
		r.baseURL, url.QueryEscape(isbn))
}

// titleSearchURL builds the fallback title-mode search URL.
func (r *Resolver) titleSearchURL(isbn string) string {
	return fmt.Sprintf("%s/search/title?qu=%s", r.baseURL, url.QueryEscape(isbn))
}

// Resolve runs the strategy chain for one identifier and returns exactly
// one resolution. Strategies short-circuit on the first extracted key.
// A strategy that times out or faults does not stop the chain; the
// fallback strategy still runs before the identifier is declared
// unresolved. When strategies fail for different reasons, the most
// severe one is reported (session-error over timeout over no match).
func (r *Resolver) Resolve(ctx context.Context, isbn string) model.Resolution {
	reason := model.ReasonNoPatternMatch

	for _, strat := range strategies {
		target := strat.url(r, isbn)

		key, attemptReason := r.attempt(ctx, target)
		if key != "" {
			r.logger.Debug("resolved record key",
				"isbn", isbn,
				"key", key,
				"strategy", strat.name,
			)
			return model.Resolved(key)
		}

		r.logger.Debug("strategy exhausted",
			"isbn", isbn,
			"strategy", strat.name,
			"reason", attemptReason,
			"url", target,
		)
		if attemptReason.MoreSevere(reason) {
			reason = attemptReason
		}
	}

	r.logger.Warn("identifier unresolved",
		"isbn", isbn,
		"reason", reason,
		"catalog", r.baseURL,
	)
	return model.Unresolved(reason)
}

// attempt runs one strategy: navigate, wait for a settled page, then
// extract the key from the location or, failing that, from the first
// matching anchor. It returns an empty key with the failure reason when
// nothing was extracted.
func (r *Resolver) attempt(ctx context.Context, target string) (string, model.UnresolvedReason) {
	if err := r.session.Navigate(ctx, target); err != nil {
		// A navigation that ran out its page timeout is a slow catalog,
		// not a broken session.
		if errors.Is(err, context.DeadlineExceeded) {
			return "", model.ReasonTimeout
		}
		r.logger.Warn("navigation failed", "url", target, "error", err)
		return "", model.ReasonSessionError
	}

	err := r.session.WaitLocation(ctx, pageSettled, r.pageTimeout)
	if err != nil {
		if errors.Is(err, ErrWaitTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return "", model.ReasonTimeout
		}
		r.logger.Warn("wait failed", "url", target, "error", err)
		return "", model.ReasonSessionError
	}

	location, err := r.session.Location()
	if err != nil {
		r.logger.Warn("reading location failed", "url", target, "error", err)
		return "", model.ReasonSessionError
	}
	if key := r.extract(location); key != "" {
		return key, ""
	}

	// No key in the location: a multi-match (or single-match without
	// auto-redirect) lands on a results page where the key only appears
	// in record anchors.
	html, err := r.session.HTML()
	if err != nil {
		r.logger.Warn("reading page failed", "url", target, "error", err)
		return "", model.ReasonSessionError
	}
	if key := r.scanAnchors(html); key != "" {
		return key, ""
	}
	return "", model.ReasonNoPatternMatch
}

// pageSettled reports whether the location indicates a terminal search
// state: a detail page (auto-redirect) or a results listing.
func pageSettled(location string) bool {
	return strings.Contains(location, detailPageFragment) ||
		strings.Contains(location, resultsPageFragment)
}

// extract pulls the record key out of s using the key grammar, or
// returns empty.
func (r *Resolver) extract(s string) string {
	m := r.keyPattern.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[1]
}

// scanAnchors parses the rendered document and returns the key from the
// first anchor whose href matches the key grammar.
func (r *Resolver) scanAnchors(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		r.logger.Warn("parsing page failed", "error", err)
		return ""
	}

	selector := fmt.Sprintf("a[href*='%s:']", r.marker)
	var key string
	doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok {
			return true
		}
		if k := r.extract(href); k != "" {
			key = k
			return false
		}
		return true
	})
	return key
}
