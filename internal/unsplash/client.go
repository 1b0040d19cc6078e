package unsplash

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/iscle/haven-go/internal/errors"
	"github.com/iscle/haven-go/internal/httpclient"
	"github.com/iscle/haven-go/internal/logger"
	"github.com/iscle/haven-go/internal/observability/metrics"
	"github.com/iscle/haven-go/internal/retry"
)

const (
	// maxResponseBytes bounds how much of a search response is read.
	maxResponseBytes = 4 << 20
	// errorPreviewBytes is how much of an error body ends up in errors and logs.
	errorPreviewBytes = 200
	maxRateBurst      = 5
)

// Client searches photos with retry, rate limiting and metrics.
// Safe for concurrent use.
type Client struct {
	config    Config
	searchURL *url.URL
	http      *httpclient.Client
	retrier   *retry.Retrier
	limiter   *rate.Limiter // nil when rate limiting is disabled
	metrics   *metrics.WallpaperMetrics
	log       logger.Logger
}

type clientOptions struct {
	http      *httpclient.Client
	log       logger.Logger
	metrics   *metrics.WallpaperMetrics
	retryOpts []retry.Option
}

// Option configures a Client.
type Option func(*clientOptions)

// WithHTTPClient sets the HTTP client. The client's hooks are taken over for
// metrics and logging.
func WithHTTPClient(c *httpclient.Client) Option {
	return func(o *clientOptions) { o.http = c }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *clientOptions) { o.log = l }
}

// WithMetrics enables request metrics.
func WithMetrics(m *metrics.WallpaperMetrics) Option {
	return func(o *clientOptions) { o.metrics = m }
}

// WithRetryOptions passes options through to the retrier, e.g. retry.WithTimer in tests.
func WithRetryOptions(opts ...retry.Option) Option {
	return func(o *clientOptions) { o.retryOpts = append(o.retryOpts, opts...) }
}

// NewClient creates a new Unsplash API client
func NewClient(cfg Config, policy retry.Policy, opts ...Option) (*Client, error) {
	defaults := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.SearchPath == "" {
		cfg.SearchPath = defaults.SearchPath
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.Newf("invalid Unsplash base URL %q", cfg.BaseURL).
			Component("unsplash").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	o := clientOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Global().Module("unsplash")
	}
	if o.http == nil {
		o.http = httpclient.New(&httpclient.Config{DefaultTimeout: cfg.Timeout})
	}

	c := &Client{
		config:    cfg,
		searchURL: base.JoinPath(cfg.SearchPath),
		http:      o.http,
		metrics:   o.metrics,
		log:       o.log,
	}

	if cfg.RateLimit > 0 {
		perSecond := rate.Limit(float64(cfg.RateLimit) / time.Minute.Seconds())
		c.limiter = rate.NewLimiter(perSecond, min(cfg.RateLimit, maxRateBurst))
	}

	retryOpts := append([]retry.Option{
		retry.WithLogger(o.log),
		retry.WithNotify(func(attempt int, err error, wait time.Duration) {
			c.metrics.RecordFetchRetry()
		}),
	}, o.retryOpts...)
	c.retrier = retry.New(policy, retryOpts...)

	c.http.SetBeforeRequestHook(func(req *http.Request) {
		c.log.Trace("search request", logger.String("url", logger.RedactSensitiveData(req.URL.String())))
	})
	c.http.SetAfterResponseHook(func(req *http.Request, resp *http.Response, err error, elapsed time.Duration) {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		c.metrics.RecordFetchRequest(status, elapsed)
	})

	c.log.Info("Unsplash client initialized",
		logger.String("search_url", c.searchURL.String()),
		logger.Bool("access_key_configured", cfg.AccessKey != ""),
		logger.Int("rate_limit_per_minute", cfg.RateLimit),
		logger.Int("max_retries", policy.MaxRetries))

	return c, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.Close()
}

// Search fetches one page of photos for query. Transient failures are retried
// per the client's policy; the returned error then wraps a
// *retry.NonRetryableError, a *retry.ExhaustedError or the context error.
func (c *Client) Search(ctx context.Context, query string, page, perPage int) (*SearchResult, error) {
	query = strings.TrimSpace(query)
	switch {
	case query == "":
		return nil, errors.Newf("invalid search: empty query").
			Component("unsplash").
			Category(errors.CategoryValidation).
			Build()
	case page < 1 || perPage < 1:
		return nil, errors.Newf("invalid search: page %d and per_page %d must be at least 1", page, perPage).
			Component("unsplash").
			Category(errors.CategoryValidation).
			Context("query", query).
			Build()
	}

	reqURL := c.buildURL(query, page, perPage)
	start := time.Now()

	result, err := retry.Do(ctx, c.retrier, func(ctx context.Context) (*SearchResult, error) {
		return c.searchOnce(ctx, reqURL)
	})
	if err != nil {
		c.log.WithContext(ctx).Warn("photo search failed",
			logger.String("query", query),
			logger.Int("page", page),
			logger.Error(err))
		return nil, errors.New(err).
			Component("unsplash").
			Context("query", query).
			Context("page", page).
			Context("per_page", perPage).
			Timing("search", time.Since(start)).
			Build()
	}

	c.log.WithContext(ctx).Debug("photo search completed",
		logger.String("query", query),
		logger.Int("page", page),
		logger.Int("per_page", perPage),
		logger.Int("results", len(result.Results)),
		logger.Int("total", result.Total),
		logger.Int("total_pages", result.TotalPages))

	return result, nil
}

func (c *Client) buildURL(query string, page, perPage int) string {
	u := *c.searchURL
	params := url.Values{}
	params.Set("plus", "none")
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("query", query)
	u.RawQuery = params.Encode()
	return u.String()
}

func (c *Client) headers() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json")
	h.Set("Accept-Version", "v1")
	if c.config.AccessKey != "" {
		h.Set("Authorization", "Client-ID "+c.config.AccessKey)
	}
	return h
}

// searchOnce performs a single attempt.
func (c *Client) searchOnce(ctx context.Context, reqURL string) (*SearchResult, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.Newf("rate limiter: %w", err).
				Component("unsplash").
				Category(errors.CategoryLimit).
				Build()
		}
	}

	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	resp, err := c.http.Get(ctx, reqURL, c.headers())
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Debug("failed to close response body", logger.Error(cerr))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		preview := string(body)
		if len(preview) > errorPreviewBytes {
			preview = preview[:errorPreviewBytes] + "..."
		}
		return nil, &retry.StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(preview),
		}
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, errors.Newf("malformed search response: %w", err).
			Component("unsplash").
			Category(errors.CategoryFileParsing).
			Context("content_type", resp.Header.Get("Content-Type")).
			Build()
	}

	return sr.toResult(), nil
}
