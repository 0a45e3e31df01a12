package browser

import (
	"context"
	"time"

	"github.com/go-rod/rod"

	"github.com/openshelf/catkey/internal/resolver"
)

// locationPollInterval is how often WaitLocation re-reads the current
// URL while waiting for a redirect or results page to settle.
const locationPollInterval = 250 * time.Millisecond

// Session adapts a rod page to the resolver's capability interface.
// All navigation shares the manager's page timeout.
type Session struct {
	page        *rod.Page
	pageTimeout time.Duration
}

// Navigate loads url and waits for the load event, bounded by the page
// timeout.
func (s *Session) Navigate(ctx context.Context, url string) error {
	page := s.page.Context(ctx).Timeout(s.pageTimeout)
	if err := page.Navigate(url); err != nil {
		return err
	}
	return page.WaitLoad()
}

// Location returns the page's current URL. Server-side redirects are
// reflected here without another Navigate call.
func (s *Session) Location() (string, error) {
	info, err := s.page.Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

// HTML returns the rendered document markup.
func (s *Session) HTML() (string, error) {
	return s.page.HTML()
}

// WaitLocation polls the current URL until pred accepts it or timeout
// elapses.
//
// Polling instead of subscribing to navigation events keeps the
// semantics identical for server-side redirects, client-side rewrites,
// and pages that were already in the target state before the wait began.
func (s *Session) WaitLocation(ctx context.Context, pred func(string) bool, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(locationPollInterval)
	defer ticker.Stop()

	for {
		location, err := s.Location()
		if err != nil {
			return err
		}
		if pred(location) {
			return nil
		}
		if time.Now().After(deadline) {
			return resolver.ErrWaitTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
