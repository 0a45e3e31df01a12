package bestseller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/openshelf/catkey/internal/model"
	"github.com/openshelf/catkey/internal/retry"
)

// DefaultBaseURL is the bestseller list API root.
const DefaultBaseURL = "https://api.nytimes.com/svc/books/v3"

// maxResponseSize bounds list API responses. List payloads are tens of
// kilobytes; 2MB leaves generous headroom while preventing memory
// exhaustion from a misbehaving endpoint.
const maxResponseSize = 2 * 1024 * 1024

// Client fetches named bestseller lists and normalizes their entries
// into candidates. Transient failures are retried with the configured
// policy; exhaustion surfaces as an error the caller is expected to
// log and skip, never to treat as fatal.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	policy     retry.Policy
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root. Used by tests to point the client
// at a local server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRetryPolicy overrides the retry policy for list fetches.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(c *Client) {
		c.policy = policy
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a list client. The timeout bounds each individual HTTP
// request; retries are governed separately by the retry policy.
func New(apiKey string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		policy: retry.Policy{
			MaxAttempts: 3,
			Backoff:     retry.Exponential(time.Second),
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// listResponse mirrors the subset of the list API payload we consume.
type listResponse struct {
	Results struct {
		Books []bookEntry `json:"books"`
	} `json:"results"`
}

// bookEntry is one book in a list payload. PrimaryISBN13 is the
// documented identifier field; the isbns collection is the fallback for
// entries where it is absent or blank.
type bookEntry struct {
	PrimaryISBN13 string `json:"primary_isbn13"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	ISBNs         []struct {
		ISBN13 string `json:"isbn13"`
	} `json:"isbns"`
}

// Fetch retrieves the named list and returns its valid candidates.
// Entries without a usable 13-digit identifier are logged and dropped.
// Transient failures (timeout, connection error, 5xx) are retried with
// exponential backoff; a non-5xx HTTP error stops retrying immediately.
// On exhaustion the error is returned; the caller continues with the
// next list.
func (c *Client) Fetch(ctx context.Context, listName string) ([]model.Candidate, error) {
	endpoint := fmt.Sprintf("%s/lists/current/%s.json?api-key=%s",
		c.baseURL, url.PathEscape(listName), url.QueryEscape(c.apiKey))

	c.logger.Info("fetching bestseller list", "list", listName)

	var resp listResponse
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		return c.fetchOnce(ctx, endpoint, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch list %s: %w", listName, err)
	}

	candidates := make([]model.Candidate, 0, len(resp.Results.Books))
	for _, book := range resp.Results.Books {
		isbn := book.PrimaryISBN13
		if isbn == "" {
			for _, ent := range book.ISBNs {
				if ent.ISBN13 != "" {
					isbn = ent.ISBN13
					break
				}
			}
		}

		candidate, err := model.NewCandidate(isbn, book.Title, book.Author, listName)
		if err != nil {
			c.logger.Warn("dropping entry with invalid identifier",
				"list", listName,
				"title", book.Title,
				"error", err,
			)
			continue
		}
		candidates = append(candidates, candidate)
	}

	c.logger.Info("retrieved list",
		"list", listName,
		"valid", len(candidates),
		"total", len(resp.Results.Books),
	)
	return candidates, nil
}

// fetchOnce performs a single request attempt, classifying HTTP status
// codes for the retry policy: 5xx is transient, other non-200 permanent.
func (c *Client) fetchOnce(ctx context.Context, endpoint string, out *listResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return retry.Permanent(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts and connection errors are transient.
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("server error: %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return retry.Permanent(fmt.Errorf("unexpected status: %s", resp.Status))
	}

	body := io.LimitReader(resp.Body, maxResponseSize)
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return retry.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}
