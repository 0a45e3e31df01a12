package config

import "errors"

// Configuration validation errors returned by Config.Validate.
//
// Design decision: package-level sentinel errors rather than fmt.Errorf
// at each check. Callers can use errors.Is for programmatic handling
// while the messages stay human-readable, and none of the messages need
// dynamic values.
var (
	// ErrMissingAPIKey is returned when no bestseller API key is configured.
	ErrMissingAPIKey = errors.New("missing API key: set NYT_API_KEY or --api-key")

	// ErrNoLists is returned when no bestseller list names are configured.
	ErrNoLists = errors.New("no lists configured: set NYT_LIST_NAMES, the config file, or --lists")

	// ErrMissingCatalogURL is returned when the catalog base URL is absent.
	ErrMissingCatalogURL = errors.New("missing catalog base URL: set CATALOG_BASE_URL or --catalog-url")

	// ErrInvalidCatalogURL is returned when the catalog base URL does not
	// parse as an absolute URL.
	ErrInvalidCatalogURL = errors.New("invalid catalog base URL: must be an absolute http(s) URL")

	// ErrMissingRecordMarker is returned when the record-key marker is empty.
	ErrMissingRecordMarker = errors.New("missing record marker: must be non-empty")

	// ErrInvalidTimeout is returned when a timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxRetries is returned when the retry count is below one.
	ErrInvalidMaxRetries = errors.New("invalid max retries: must be at least 1")

	// ErrInvalidResolveDelay is returned when the inter-request delay is
	// negative. Use 0 to disable pacing (not recommended against a live
	// catalog).
	ErrInvalidResolveDelay = errors.New("invalid resolve delay: must be non-negative")

	// ErrMissingSMTPCredentials is returned when email delivery is enabled
	// but sender credentials are absent.
	ErrMissingSMTPCredentials = errors.New("missing SMTP credentials: set SENDER_EMAIL and SENDER_PASSWORD, or use --no-email")

	// ErrNoRecipients is returned when email delivery is enabled but no
	// recipient addresses are configured.
	ErrNoRecipients = errors.New("no recipients configured: set RECEIVER_EMAILS or use --no-email")
)
