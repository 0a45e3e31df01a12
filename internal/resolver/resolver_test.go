package resolver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/openshelf/catkey/internal/model"
)

// fakePage scripts what the catalog "serves" for one navigated URL.
type fakePage struct {
	// location is the URL the session ends up on (redirect target).
	// Empty means the navigated URL itself.
	location string

	// html is the rendered document.
	html string

	// navErr makes Navigate fail.
	navErr error

	// neverSettles makes WaitLocation time out.
	neverSettles bool
}

// fakeSession is a scripted Session implementation.
type fakeSession struct {
	pages     map[string]fakePage
	navigated []string
	current   fakePage
}

func (s *fakeSession) Navigate(_ context.Context, url string) error {
	s.navigated = append(s.navigated, url)
	page, ok := s.pages[url]
	if !ok {
		page = fakePage{location: url, html: "<html></html>"}
	}
	if page.navErr != nil {
		return page.navErr
	}
	if page.location == "" {
		page.location = url
	}
	s.current = page
	return nil
}

func (s *fakeSession) Location() (string, error) {
	return s.current.location, nil
}

func (s *fakeSession) HTML() (string, error) {
	return s.current.html, nil
}

func (s *fakeSession) WaitLocation(_ context.Context, pred func(string) bool, _ time.Duration) error {
	if s.current.neverSettles || !pred(s.current.location) {
		return ErrWaitTimeout
	}
	return nil
}

const (
	testBase = "https://catalog.example.org/client/en_US/main"
	testISBN = "9780385545969"
)

func newTestResolver(s Session) *Resolver {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(s, testBase, "SD_ILS", time.Second, WithLogger(logger))
}

// URLs the resolver is expected to build for testISBN.
var (
	isbnURL  = testBase + "/search/results?qu=" + testISBN + "&dt=list&rt=false%7C%7C%7CISBN%7C%7C%7CISBN"
	titleURL = testBase + "/search/title?qu=" + testISBN
)

// TestExtractionGrammar tests the record-key extraction pattern.
func TestExtractionGrammar(t *testing.T) {
	t.Parallel()

	r := newTestResolver(&fakeSession{})

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "key in detail URL",
			input: "https://catalog.example.org/client/en_US/main/search/detailnonmodal/ent:$002f$002fSD_ILS$002f0$002fSD_ILS:482910/one",
			want:  "482910",
		},
		{
			name:  "plain marker and digits",
			input: "foo SD_ILS:482910 bar",
			want:  "482910",
		},
		{
			name:  "no marker",
			input: "https://catalog.example.org/search/results?qu=123",
			want:  "",
		},
		{
			name:  "marker without digits",
			input: "SD_ILS:none",
			want:  "",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := r.extract(tt.input); got != tt.want {
				t.Errorf("extract(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestResolve tests the strategy chain end to end against a fake session.
func TestResolve(t *testing.T) {
	t.Parallel()

	t.Run("key in redirected location", func(t *testing.T) {
		t.Parallel()

		s := &fakeSession{pages: map[string]fakePage{
			isbnURL: {
				location: testBase + "/search/detailnonmodal/ent:SD_ILS:482910/one",
				html:     "<html></html>",
			},
		}}
		res := newTestResolver(s).Resolve(context.Background(), testISBN)
		if !res.IsResolved() || res.Key != "482910" {
			t.Fatalf("expected Resolved{482910}, got %+v", res)
		}
		if len(s.navigated) != 1 {
			t.Errorf("expected short-circuit after first strategy, navigated %v", s.navigated)
		}
	})

	t.Run("key only in results-page anchor", func(t *testing.T) {
		t.Parallel()

		s := &fakeSession{pages: map[string]fakePage{
			isbnURL: {
				location: testBase + "/search/results?qu=" + testISBN,
				html: `<html><body>
					<a href="/logo">Logo</a>
					<a href="/client/en_US/main/search/detailnonmodal/ent:SD_ILS:102938/one">The Book</a>
					<a href="/client/en_US/main/search/detailnonmodal/ent:SD_ILS:555555/one">Other Edition</a>
				</body></html>`,
			},
		}}
		res := newTestResolver(s).Resolve(context.Background(), testISBN)
		if !res.IsResolved() || res.Key != "102938" {
			t.Fatalf("expected first anchor key 102938, got %+v", res)
		}
	})

	t.Run("title mode issued before unresolved", func(t *testing.T) {
		t.Parallel()

		s := &fakeSession{pages: map[string]fakePage{
			isbnURL: {
				location: testBase + "/search/results?qu=" + testISBN,
				html:     "<html><body>No matches found</body></html>",
			},
			titleURL: {
				location: testBase + "/search/results?qu=" + testISBN,
				html:     "<html><body>Nothing here either</body></html>",
			},
		}}
		res := newTestResolver(s).Resolve(context.Background(), testISBN)
		if res.IsResolved() {
			t.Fatalf("expected unresolved, got %+v", res)
		}
		if res.Reason != model.ReasonNoPatternMatch {
			t.Errorf("expected no-pattern-match, got %s", res.Reason)
		}
		if len(s.navigated) != 2 {
			t.Fatalf("expected both strategies to navigate, got %v", s.navigated)
		}
		if s.navigated[0] != isbnURL || s.navigated[1] != titleURL {
			t.Errorf("expected ISBN mode before title mode, got %v", s.navigated)
		}
	})

	t.Run("title mode recovers indexing miss", func(t *testing.T) {
		t.Parallel()

		s := &fakeSession{pages: map[string]fakePage{
			isbnURL: {
				location: testBase + "/search/results?qu=" + testISBN,
				html:     "<html><body>No matches found</body></html>",
			},
			titleURL: {
				location: testBase + "/search/detailnonmodal/ent:SD_ILS:774411/one",
				html:     "<html></html>",
			},
		}}
		res := newTestResolver(s).Resolve(context.Background(), testISBN)
		if !res.IsResolved() || res.Key != "774411" {
			t.Fatalf("expected fallback resolution 774411, got %+v", res)
		}
	})

	t.Run("timeout on both strategies", func(t *testing.T) {
		t.Parallel()

		s := &fakeSession{pages: map[string]fakePage{
			isbnURL:  {neverSettles: true},
			titleURL: {neverSettles: true},
		}}
		res := newTestResolver(s).Resolve(context.Background(), testISBN)
		if res.IsResolved() {
			t.Fatalf("expected unresolved, got %+v", res)
		}
		if res.Reason != model.ReasonTimeout {
			t.Errorf("expected timeout reason, got %s", res.Reason)
		}
		if len(s.navigated) != 2 {
			t.Errorf("expected title mode attempted after timeout, got %v", s.navigated)
		}
	})

	t.Run("navigation deadline is a timeout", func(t *testing.T) {
		t.Parallel()

		s := &fakeSession{pages: map[string]fakePage{
			isbnURL:  {navErr: context.DeadlineExceeded},
			titleURL: {navErr: context.DeadlineExceeded},
		}}
		res := newTestResolver(s).Resolve(context.Background(), testISBN)
		if res.IsResolved() {
			t.Fatalf("expected unresolved, got %+v", res)
		}
		if res.Reason != model.ReasonTimeout {
			t.Errorf("expected timeout reason for slow navigation, got %s", res.Reason)
		}
	})

	t.Run("timeout then fallback success", func(t *testing.T) {
		t.Parallel()

		s := &fakeSession{pages: map[string]fakePage{
			isbnURL: {neverSettles: true},
			titleURL: {
				location: testBase + "/search/detailnonmodal/ent:SD_ILS:12/one",
				html:     "<html></html>",
			},
		}}
		res := newTestResolver(s).Resolve(context.Background(), testISBN)
		if !res.IsResolved() || res.Key != "12" {
			t.Fatalf("expected resolution after timeout fallback, got %+v", res)
		}
	})

	t.Run("session fault converts to unresolved", func(t *testing.T) {
		t.Parallel()

		s := &fakeSession{pages: map[string]fakePage{
			isbnURL:  {navErr: errors.New("tab crashed")},
			titleURL: {navErr: errors.New("tab crashed")},
		}}
		res := newTestResolver(s).Resolve(context.Background(), testISBN)
		if res.IsResolved() {
			t.Fatalf("expected unresolved, got %+v", res)
		}
		if res.Reason != model.ReasonSessionError {
			t.Errorf("expected session-error reason, got %s", res.Reason)
		}
	})

	t.Run("session fault outranks no match", func(t *testing.T) {
		t.Parallel()

		s := &fakeSession{pages: map[string]fakePage{
			isbnURL: {navErr: errors.New("tab crashed")},
			titleURL: {
				location: testBase + "/search/results?qu=" + testISBN,
				html:     "<html><body>nothing</body></html>",
			},
		}}
		res := newTestResolver(s).Resolve(context.Background(), testISBN)
		if res.Reason != model.ReasonSessionError {
			t.Errorf("expected most severe reason reported, got %s", res.Reason)
		}
	})

	t.Run("custom marker", func(t *testing.T) {
		t.Parallel()

		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		s := &fakeSession{}
		r := New(s, testBase, "ILS_KEY", time.Second, WithLogger(logger))
		if got := r.extract("x ILS_KEY:99 y"); got != "99" {
			t.Errorf("expected custom marker extraction, got %q", got)
		}
		if got := r.extract("x SD_ILS:99 y"); got != "" {
			t.Errorf("expected default marker ignored, got %q", got)
		}
	})
}

// TestScanAnchors tests anchor scanning against assorted markup.
func TestScanAnchors(t *testing.T) {
	t.Parallel()

	r := newTestResolver(&fakeSession{})

	t.Run("skips anchors without extractable key", func(t *testing.T) {
		t.Parallel()

		html := `<html><body>
			<a href="/help/SD_ILS:abc">bad</a>
			<a href="/detail/SD_ILS:42/one">good</a>
		</body></html>`
		if got := r.scanAnchors(html); got != "42" {
			t.Errorf("expected 42, got %q", got)
		}
	})

	t.Run("no anchors yields empty", func(t *testing.T) {
		t.Parallel()

		if got := r.scanAnchors("<html><body><p>empty</p></body></html>"); got != "" {
			t.Errorf("expected empty, got %q", got)
		}
	})

	t.Run("tolerates malformed markup", func(t *testing.T) {
		t.Parallel()

		html := `<html><body><a href="/detail/SD_ILS:7/one">unclosed`
		if got := r.scanAnchors(html); got != "7" {
			t.Errorf("expected 7 from malformed markup, got %q", got)
		}
	})
}

// TestPageSettled tests the settled-state predicate.
func TestPageSettled(t *testing.T) {
	t.Parallel()

	tests := []struct {
		location string
		want     bool
	}{
		{testBase + "/search/detailnonmodal/ent:SD_ILS:1/one", true},
		{testBase + "/search/results?qu=123", true},
		{testBase + "/home", false},
		{"about:blank", false},
	}
	for _, tt := range tests {
		if got := pageSettled(tt.location); got != tt.want {
			t.Errorf("pageSettled(%q) = %v, want %v", tt.location, got, tt.want)
		}
	}
}

// TestResolveNeverPanics exercises the totality property: every session
// behavior yields exactly one resolution.
func TestResolveNeverPanics(t *testing.T) {
	t.Parallel()

	if !strings.HasPrefix(isbnURL, testBase) {
		t.Fatal("test URL construction broken")
	}

	sessions := []*fakeSession{
		{},
		{pages: map[string]fakePage{isbnURL: {navErr: errors.New("boom")}}},
		{pages: map[string]fakePage{isbnURL: {neverSettles: true}}},
		{pages: map[string]fakePage{isbnURL: {location: testBase + "/search/results", html: ""}}},
	}
	for _, s := range sessions {
		res := newTestResolver(s).Resolve(context.Background(), testISBN)
		if res.IsResolved() == (res.Reason != "") {
			t.Errorf("resolution must be exactly one of resolved/unresolved: %+v", res)
		}
	}
}
