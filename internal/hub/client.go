// Package hub provides a client for the partitioned paper dataset hosted on
// the Hugging Face Hub. Partitions live at
// data/<category>/<YYYY>/<MM>/00000000.parquet inside a dataset repository.
package hub

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lmmx/arxiv-explorer/internal/arxiv"
	"github.com/lmmx/arxiv-explorer/internal/diskcache"
)

const (
	// DefaultBaseURL is the Hugging Face Hub endpoint.
	DefaultBaseURL = "https://huggingface.co"

	// DefaultRepo is the dataset repository holding the partitions.
	DefaultRepo = "permutans/arxiv-papers-by-subject"

	// DefaultRevision is the branch, tag, or commit partitions are read from.
	DefaultRevision = "main"

	// DefaultTimeout is the HTTP timeout for a single request. Partition
	// downloads can be tens of megabytes.
	DefaultTimeout = 5 * time.Minute

	// RateLimit is the sustained request rate against the hub.
	RateLimit = 5.0

	// DefaultMaxAttempts bounds retries of transient failures.
	DefaultMaxAttempts = 4

	// DefaultBackoff is the delay before the first retry; it doubles on each
	// subsequent attempt up to MaxBackoff.
	DefaultBackoff = 500 * time.Millisecond

	// MaxBackoff caps the delay between attempts.
	MaxBackoff = 10 * time.Second

	// revisionHeader carries the commit a resolved file was served from.
	revisionHeader = "X-Repo-Commit"
)

// Client is a rate-limited, retrying HTTP client for the dataset repository.
type Client struct {
	httpClient  *http.Client
	limiter     *rate.Limiter
	baseURL     string
	repo        string
	revision    string
	token       string
	taxonomy    *arxiv.Taxonomy
	bounds      arxiv.Bounds
	maxAttempts int
	backoff     time.Duration
	logger      *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom hub URL (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = u }
}

// WithRepo sets the dataset repository id.
func WithRepo(repo string) ClientOption {
	return func(c *Client) { c.repo = repo }
}

// WithRevision pins the dataset revision.
func WithRevision(rev string) ClientOption {
	return func(c *Client) { c.revision = rev }
}

// WithToken sets the bearer token for gated or private datasets.
func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithTaxonomy sets the categories keys are validated against.
func WithTaxonomy(t *arxiv.Taxonomy) ClientOption {
	return func(c *Client) { c.taxonomy = t }
}

// WithBounds sets the year-month range keys are validated against.
func WithBounds(b arxiv.Bounds) ClientOption {
	return func(c *Client) { c.bounds = b }
}

// WithRetry sets the attempt budget and initial backoff for transient failures.
func WithRetry(maxAttempts int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxAttempts = maxAttempts
		c.backoff = backoff
	}
}

// WithRateLimit overrides the request rate (requests per second).
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1) }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a hub client. HF_TOKEN from the environment is used
// unless WithToken overrides it.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		limiter:     rate.NewLimiter(rate.Limit(RateLimit), 1),
		baseURL:     DefaultBaseURL,
		repo:        DefaultRepo,
		revision:    DefaultRevision,
		taxonomy:    arxiv.DefaultTaxonomy(),
		bounds:      arxiv.DefaultBounds(time.Now()),
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoff,
		logger:      zap.NewNop(),
	}

	if token := os.Getenv("HF_TOKEN"); token != "" {
		c.token = token
	}

	for _, opt := range opts {
		opt(c)
	}
	if c.maxAttempts < 1 {
		c.maxAttempts = 1
	}
	return c
}

// Repo returns the dataset repository id.
func (c *Client) Repo() string { return c.repo }

// Validate checks key against the taxonomy and corpus bounds. It performs no
// network I/O.
func (c *Client) Validate(key arxiv.PartitionKey) error {
	if err := c.taxonomy.Validate(key.Category); err != nil {
		return err
	}
	if !c.bounds.Contains(key.Period) {
		return arxiv.Errorf(arxiv.KindValidation, "hub.validate", "%s is outside the corpus range %s..%s",
			key.Period, c.bounds.First, c.bounds.Last)
	}
	return nil
}

// resolveURL is the download URL for a file in the repository.
func (c *Client) resolveURL(path string) string {
	return fmt.Sprintf("%s/datasets/%s/resolve/%s/%s", c.baseURL, c.repo, url.PathEscape(c.revision), path)
}

// Fetch downloads one partition into memory and returns its bytes and the
// revision it was served from.
func (c *Client) Fetch(ctx context.Context, key arxiv.PartitionKey) ([]byte, string, error) {
	if err := c.Validate(key); err != nil {
		return nil, "", err
	}

	var (
		buf bytes.Buffer
		rev string
	)
	err := c.withRetry(ctx, "hub.fetch "+key.String(), func() error {
		buf.Reset()
		resp, err := c.get(ctx, c.resolveURL(key.RemotePath()), nil)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if _, err := io.Copy(&buf, resp.Body); err != nil {
			return arxiv.Wrap(arxiv.KindTransientNetwork, "hub.fetch", fmt.Errorf("reading body: %w", err))
		}
		rev = resp.Header.Get(revisionHeader)
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return buf.Bytes(), rev, nil
}

// Download streams one partition to dest. The data is written to a temp file
// next to dest and renamed over it only once fully received, so a crash
// mid-download never leaves a partial file at dest.
func (c *Client) Download(ctx context.Context, key arxiv.PartitionKey, dest string) (*Download, error) {
	if err := c.Validate(key); err != nil {
		return nil, err
	}

	result := &Download{Key: key, Path: dest}
	err := c.withRetry(ctx, "hub.download "+key.String(), func() error {
		resp, err := c.get(ctx, c.resolveURL(key.RemotePath()), nil)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		var n int64
		err = diskcache.WriteFile(dest, func(w io.Writer) error {
			var err error
			n, err = io.Copy(w, resp.Body)
			return err
		})
		if err != nil {
			return arxiv.Wrap(arxiv.KindTransientNetwork, "hub.download", err)
		}
		result.Size = n
		result.Revision = resp.Header.Get(revisionHeader)
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("downloaded partition",
		zap.String("partition", key.String()),
		zap.Int64("bytes", result.Size),
		zap.String("revision", result.Revision))
	return result, nil
}

// get performs one rate-limited GET and classifies the outcome. On success
// the caller owns the response body.
func (c *Client) get(ctx context.Context, u string, header http.Header) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, arxiv.Wrap(arxiv.KindTransientNetwork, "hub.get", err)
	}

	if err := checkHTTPErrors(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// statusError carries a Retry-After hint alongside the classified error.
type statusError struct {
	err        *arxiv.Error
	retryAfter time.Duration
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

// checkHTTPErrors classifies a non-success response.
func checkHTTPErrors(resp *http.Response) error {
	switch {
	case resp.StatusCode < 400:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return arxiv.Errorf(arxiv.KindNotFound, "hub", "%s: HTTP 404", resp.Request.URL.Path)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &statusError{
			err:        arxiv.Errorf(arxiv.KindTransientNetwork, "hub", "HTTP %d", resp.StatusCode),
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return arxiv.Errorf(arxiv.KindInternal, "hub", "authentication failed (HTTP %d); set HF_TOKEN", resp.StatusCode)
	default:
		return arxiv.Errorf(arxiv.KindInternal, "hub", "HTTP %d", resp.StatusCode)
	}
}

func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// withRetry runs fn until it succeeds, fails with a non-transient error, or
// the attempt budget is spent. Not-found and validation failures return
// immediately.
func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	delay := c.backoff
	var err error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		err = fn()
		if err == nil || !arxiv.IsTransient(err) {
			return err
		}
		if attempt == c.maxAttempts {
			break
		}

		wait := delay
		var se *statusError
		if errors.As(err, &se) && se.retryAfter > wait {
			wait = se.retryAfter
		}
		if wait > MaxBackoff {
			wait = MaxBackoff
		}
		c.logger.Warn("retrying hub request",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
	return fmt.Errorf("%s: giving up after %d attempts: %w", op, c.maxAttempts, err)
}
