package repository

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/matzehuels/gallade/pkg/cache"
	"github.com/matzehuels/gallade/pkg/errors"
	"github.com/matzehuels/gallade/pkg/httputil"
	"github.com/matzehuels/gallade/pkg/observability"
)

// MavenCentral is the default repository.
const MavenCentral = "https://repo.maven.apache.org/maven2"

const httpTimeout = 30 * time.Second

var (
	// ErrNotFound is returned when the repository has no such resource.
	ErrNotFound = stderrors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, 5xx responses).
	ErrNetwork = stderrors.New("network error")
)

// Options configures a [Client].
type Options struct {
	Name string // display name; defaults to the URL host
	URL  string // repository base URL

	HTTPClient *http.Client
	Cache      cache.Cache
	Keyer      cache.Keyer

	// VersionsTTL bounds how long version listings and snapshot descriptors
	// are cached. Released descriptors are cached without expiry.
	VersionsTTL time.Duration

	Retry httputil.Policy

	// RateLimit caps requests per second; zero means unlimited.
	RateLimit float64
	Burst     int

	UserAgent string
	Logger    *log.Logger
}

// Client fetches metadata and artifacts from one repository.
// It is safe for concurrent use.
type Client struct {
	name      string
	base      *url.URL
	http      *http.Client
	cache     cache.Cache
	keyer     cache.Keyer
	ttl       time.Duration
	retry     httputil.Policy
	limiter   *rate.Limiter
	userAgent string
	logger    *log.Logger
}

// New creates a client. The URL must be http or https.
func New(opts Options) (*Client, error) {
	raw := strings.TrimRight(opts.URL, "/")
	if err := errors.ValidateURL(raw); err != nil {
		return nil, err
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid repository url %q", opts.URL)
	}

	c := &Client{
		name:      opts.Name,
		base:      base,
		http:      opts.HTTPClient,
		cache:     opts.Cache,
		keyer:     opts.Keyer,
		ttl:       opts.VersionsTTL,
		retry:     opts.Retry,
		userAgent: opts.UserAgent,
		logger:    opts.Logger,
	}
	if c.name == "" {
		c.name = base.Host
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: httpTimeout}
	}
	if c.cache == nil {
		c.cache = cache.NewNullCache()
	}
	if c.keyer == nil {
		c.keyer = cache.NewDefaultKeyer()
	}
	if c.retry.Attempts == 0 {
		c.retry = httputil.DefaultPolicy
	}
	if c.userAgent == "" {
		c.userAgent = "gallade"
	}
	if c.logger == nil {
		c.logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = max(1, int(opts.RateLimit))
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	host := base.Host
	onRetry := c.retry.OnRetry
	c.retry.OnRetry = func(attempt int, err error) {
		observability.HTTP().OnRetry(context.Background(), host, attempt, err)
		c.logger.Warn("retrying request", "repository", c.name, "attempt", attempt, "err", err)
		if onRetry != nil {
			onRetry(attempt, err)
		}
	}
	return c, nil
}

// Name returns the display name of the repository.
func (c *Client) Name() string { return c.name }

// URL returns the repository base URL.
func (c *Client) URL() string { return c.base.String() }

func (c *Client) resolve(path string) string {
	return c.base.String() + "/" + strings.TrimLeft(path, "/")
}

// get fetches path fully into memory, retrying transient failures.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	var body []byte
	err := c.retry.Do(ctx, func() error {
		rc, err := c.do(ctx, path)
		if err != nil {
			return err
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return httputil.Retryable(fmt.Errorf("%w: read %s: %v", ErrNetwork, path, err))
		}
		body = data
		return nil
	})
	return body, err
}

// open starts a streaming GET for path. Only establishing the response is
// retried; the caller owns the body.
func (c *Client) open(ctx context.Context, path string) (io.ReadCloser, error) {
	var body io.ReadCloser
	err := c.retry.Do(ctx, func() error {
		rc, err := c.do(ctx, path)
		if err != nil {
			return err
		}
		body = rc
		return nil
	})
	return body, err
}

func (c *Client) do(ctx context.Context, path string) (io.ReadCloser, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	target := c.resolve(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	hooks := observability.HTTP()
	hooks.OnRequest(ctx, req.Method, req.URL.Host, req.URL.Path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, req.URL.Host, req.URL.Path, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, httputil.Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
	}
	hooks.OnResponse(ctx, req.Method, req.URL.Host, req.URL.Path, resp.StatusCode, time.Since(start))
	c.logger.Debug("http", "url", target, "status", resp.StatusCode, "duration", time.Since(start))

	if err := checkStatus(resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %w", target, err)
	}
	return resp.Body, nil
}

func checkStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound || code == http.StatusGone:
		return ErrNotFound
	case code == http.StatusTooManyRequests || code >= 500:
		return httputil.Retryable(fmt.Errorf("%w: status %d", ErrNetwork, code))
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}

// cached returns the cached value for key, or runs fetch and stores its
// result with ttl.
func (c *Client) cached(ctx context.Context, kind, key string, ttl time.Duration, fetch func() ([]byte, error)) ([]byte, error) {
	hooks := observability.Cache()
	if data, ok, err := c.cache.Get(ctx, key); err == nil && ok {
		hooks.OnCacheHit(ctx, kind)
		return data, nil
	} else if err != nil {
		c.logger.Warn("cache read failed", "kind", kind, "err", err)
	}
	hooks.OnCacheMiss(ctx, kind)

	data, err := fetch()
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, data, ttl); err != nil {
		c.logger.Warn("cache write failed", "kind", kind, "err", err)
	} else {
		hooks.OnCacheSet(ctx, kind, len(data))
	}
	return data, nil
}

// classify converts transport errors into coded errors.
func (c *Client) classify(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return err
	case stderrors.Is(err, ErrNotFound):
		return errors.Wrap(errors.ErrCodeNotFound, err, "%s not found in %s", what, c.name)
	case stderrors.Is(err, ErrNetwork):
		return errors.Wrap(errors.ErrCodeNetwork, err, "fetch %s from %s", what, c.name)
	}
	return errors.Wrap(errors.ErrCodeUnresolved, err, "read %s from %s", what, c.name)
}
