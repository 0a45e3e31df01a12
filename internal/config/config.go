package config

import (
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These reproduce the pacing and timeout behavior the catalog server is
// known to tolerate; tightening them risks rate limiting or blocking.
const (
	// DefaultMaxRetries is the number of attempts for a bestseller list
	// fetch. Three attempts with exponential backoff (1s, 2s) rides out
	// most transient API hiccups without stalling the run.
	DefaultMaxRetries = 3

	// DefaultRequestTimeout bounds each bestseller list HTTP request.
	DefaultRequestTimeout = 15 * time.Second

	// DefaultPageTimeout bounds each catalog page navigation, including
	// the wait for a detail-page redirect. The catalog's server-side
	// redirect can be slow; values below ~10s produce false timeouts.
	DefaultPageTimeout = 20 * time.Second

	// DefaultResolveDelay is the pause enforced after each resolution.
	// This is a politeness setting toward the catalog server, not a
	// correctness requirement; removing it has triggered rate limiting.
	DefaultResolveDelay = 500 * time.Millisecond

	// DefaultRecordMarker is the token preceding the record key in
	// catalog URLs and anchors (SirsiDynix Enterprise convention).
	DefaultRecordMarker = "SD_ILS"

	// DefaultSMTPHost and DefaultSMTPPort target a STARTTLS submission
	// endpoint; port 587 is the standard submission port.
	DefaultSMTPHost = "smtp.gmail.com"
	DefaultSMTPPort = 587

	// AppName is the application name used for XDG directory paths.
	AppName = "catkey"
)

// Config holds all configuration for a catkey run.
// It is built once at startup (defaults, then config file, then
// environment, then flags), validated, and passed by reference to every
// component. No component reads ambient process state after construction.
//
// Design decision: a single flat struct rather than nested sub-configs.
// The option count is manageable, and nesting would add indirection
// without benefit. Secrets (API key, SMTP password) live here too; the
// logging layer masks them if they ever reach a log line.
type Config struct {
	// APIKey authenticates against the bestseller list API.
	APIKey string

	// Lists is the ordered set of bestseller list names to process
	// (e.g. "hardcover-fiction"). Order is preserved in reports.
	Lists []string

	// CatalogBaseURL is the catalog root, without a trailing slash
	// (e.g. "https://catalog.example.org/client/en_US/main").
	CatalogBaseURL string

	// RecordMarker is the token preceding the record key in catalog
	// locations and anchors. The extraction grammar is
	// "<RecordMarker>:<digits>".
	RecordMarker string

	// OutputDir is where report artifacts are written.
	OutputDir string

	// MaxRetries is the attempt count for list fetches.
	MaxRetries int

	// RequestTimeout bounds each list fetch HTTP request.
	RequestTimeout time.Duration

	// PageTimeout bounds each catalog navigation and page-state wait.
	PageTimeout time.Duration

	// ResolveDelay is the pause enforced after each resolution.
	ResolveDelay time.Duration

	// SMTPHost and SMTPPort locate the mail submission endpoint.
	SMTPHost string
	SMTPPort int

	// Sender and SenderPassword authenticate the notification channel.
	Sender         string
	SenderPassword string

	// Recipients receive the emailed reports.
	Recipients []string

	// NoEmail suppresses notification delivery entirely. When set, the
	// notifier must not be invoked even if artifacts exist.
	NoEmail bool

	// MarkdownSummary additionally writes a Markdown summary artifact.
	MarkdownSummary bool

	// Verbose enables slog.LevelDebug output.
	Verbose bool

	// BrowserBin optionally pins the Chrome/Chromium binary to launch.
	// Empty means let the launcher locate one.
	BrowserBin string

	// Headless controls whether the browser runs without a display.
	// Always true in production; kept as a knob for local debugging.
	Headless bool

	// DBDir is the directory holding the run-history database.
	// Empty disables persistence.
	DBDir string

	// UseCache answers previously resolved ISBNs from the database
	// without a catalog search. Off by default so each run reflects
	// live catalog state.
	UseCache bool

	// ConfigFilePath is an explicit config file location. Empty means
	// search the working directory and home directory.
	ConfigFilePath string
}

// New returns a Config populated with defaults. Callers layer
// environment, file, and flag values on top before Validate.
func New() *Config {
	return &Config{
		RecordMarker:   DefaultRecordMarker,
		OutputDir:      DefaultOutputDir(),
		MaxRetries:     DefaultMaxRetries,
		RequestTimeout: DefaultRequestTimeout,
		PageTimeout:    DefaultPageTimeout,
		ResolveDelay:   DefaultResolveDelay,
		SMTPHost:       DefaultSMTPHost,
		SMTPPort:       DefaultSMTPPort,
		Headless:       true,
		DBDir:          XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for catkey
// (~/.local/share/catkey on Linux).
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// DefaultOutputDir returns the default artifact export directory.
func DefaultOutputDir() string {
	return filepath.Join(XDGDataDir(), "exports")
}

// Validate checks the configuration for the fatal pre-flight errors.
// This is the only fatal error path in the program: it runs once before
// any processing begins, and every later failure is recovered.
//
// The first error found is returned; fixing one often changes the rest.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if len(c.Lists) == 0 {
		return ErrNoLists
	}
	if c.CatalogBaseURL == "" {
		return ErrMissingCatalogURL
	}
	u, err := url.Parse(c.CatalogBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ErrInvalidCatalogURL
	}
	if c.RecordMarker == "" {
		return ErrMissingRecordMarker
	}
	if c.RequestTimeout <= 0 || c.PageTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxRetries < 1 {
		return ErrInvalidMaxRetries
	}
	if c.ResolveDelay < 0 {
		return ErrInvalidResolveDelay
	}
	if !c.NoEmail {
		if c.Sender == "" || c.SenderPassword == "" {
			return ErrMissingSMTPCredentials
		}
		if len(c.Recipients) == 0 {
			return ErrNoRecipients
		}
	}
	return nil
}
