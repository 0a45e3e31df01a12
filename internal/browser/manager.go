package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Manager owns the lifecycle of the run's single browser: it launches a
// headless Chrome, opens one page, and guarantees teardown of both the
// DevTools connection and the underlying process. Exactly one session
// exists per run; resolution is strictly sequential, so the page is
// never shared.
type Manager struct {
	headless    bool
	browserBin  string
	pageTimeout time.Duration
	logger      *slog.Logger

	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
}

// Option configures a Manager.
type Option func(*Manager)

// WithBrowserBin pins the Chrome/Chromium binary to launch. Empty lets
// the launcher locate (or download) one.
func WithBrowserBin(bin string) Option {
	return func(m *Manager) {
		m.browserBin = bin
	}
}

// WithHeadless controls headless mode. Defaults to true.
func WithHeadless(headless bool) Option {
	return func(m *Manager) {
		m.headless = headless
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager. Start must be called before Session.
func NewManager(pageTimeout time.Duration, opts ...Option) *Manager {
	m := &Manager{
		headless:    true,
		pageTimeout: pageTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the browser and opens the run's page.
func (m *Manager) Start(ctx context.Context) error {
	l := launcher.New().Headless(m.headless)
	if m.browserBin != "" {
		l = l.Bin(m.browserBin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	m.launcher = l

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return fmt.Errorf("connect to browser: %w", err)
	}
	m.browser = browser

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return fmt.Errorf("open page: %w", err)
	}
	m.page = page

	m.logger.Info("browser session started", "headless", m.headless)
	return nil
}

// Session returns the run's session. Start must have succeeded.
func (m *Manager) Session() *Session {
	return &Session{
		page:        m.page,
		pageTimeout: m.pageTimeout,
	}
}

// Shutdown tears down the page, the browser connection, and the
// launched process. It is safe to call after a failed Start and must
// run on every exit path of a run, including panics in between, which
// is why callers defer it immediately after Start succeeds.
func (m *Manager) Shutdown() {
	if m.page != nil {
		if err := m.page.Close(); err != nil {
			m.logger.Warn("closing page failed", "error", err)
		}
		m.page = nil
	}
	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			m.logger.Warn("closing browser failed", "error", err)
		}
		m.browser = nil
	}
	if m.launcher != nil {
		// Kill the Chrome process and its temp profile directory.
		m.launcher.Kill()
		m.launcher.Cleanup()
		m.launcher = nil
	}
	m.logger.Info("browser session released")
}
