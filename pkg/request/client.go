package request

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"travelogue/pkg/cache"
	"travelogue/pkg/config"
	"travelogue/pkg/logging"
	"travelogue/pkg/tracker"
	"travelogue/pkg/version"
)

var defaultUserAgent = fmt.Sprintf("Travelogue/%s (affective travelogue evaluation)", version.Version)

// ErrMaxRetries is returned when every attempt failed with a retryable error.
var ErrMaxRetries = errors.New("max retries exceeded")

// maxBodySize caps response bodies read into memory.
const maxBodySize = 32 << 20

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("api error: status %d", e.Code)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Code, e.Body)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || (e.Code >= 500 && e.Code < 600)
}

type ctxKey int

const (
	ctxAttempts ctxKey = iota
	ctxProvider
	ctxTimeout
)

// WithAttempts overrides the number of attempts for requests made with ctx.
// Callers that run their own retry loop pass 1; provider-wide backoff is
// skipped for those requests as well.
func WithAttempts(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, ctxAttempts, n)
}

// WithProvider overrides the provider label (queue, limiter and stats key)
// that would otherwise be derived from the host.
func WithProvider(ctx context.Context, label string) context.Context {
	return context.WithValue(ctx, ctxProvider, label)
}

// WithTimeout bounds each request made with ctx to d. Unlike a context
// deadline, the clock starts when the provider worker picks the request up,
// so time spent queued behind other requests is not charged to it.
func WithTimeout(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, ctxTimeout, d)
}

// TimeoutFrom returns the timeout set by WithTimeout.
func TimeoutFrom(ctx context.Context) (time.Duration, bool) {
	d, ok := ctx.Value(ctxTimeout).(time.Duration)
	return d, ok && d > 0
}

// Config holds client tuning.
type Config struct {
	Retries   int
	Timeout   time.Duration
	BaseDelay time.Duration
	MaxDelay  time.Duration
	RateLimit float64 // per provider, requests per second; 0 disables
	Burst     int
}

// ConfigFrom converts the YAML request section.
func ConfigFrom(c *config.RequestConfig) Config {
	return Config{
		Retries:   c.Retries,
		Timeout:   c.Timeout.Std(),
		BaseDelay: c.Backoff.BaseDelay.Std(),
		MaxDelay:  c.Backoff.MaxDelay.Std(),
		RateLimit: c.RateLimit,
		Burst:     c.Burst,
	}
}

// Client handles outbound HTTP with per-provider queuing, rate limiting,
// retries, optional response caching and usage tracking.
type Client struct {
	httpClient *http.Client
	cfg        Config
	cache      cache.Cacher
	tracker    *tracker.Tracker
	backoff    *ProviderBackoff

	mu       sync.Mutex
	sendMu   sync.RWMutex // held for reading while enqueuing, for writing while closing
	queues   map[string]chan job
	limiters map[string]*rate.Limiter
	closed   bool
	wg       sync.WaitGroup
}

type job struct {
	ctx      context.Context
	method   string
	url      string
	body     []byte
	headers  map[string]string
	cacheKey string
	respChan chan jobResult
}

type jobResult struct {
	body []byte
	err  error
}

// New creates a new Client. c may be nil to disable response caching.
func New(cfg Config, c cache.Cacher, t *tracker.Tracker) *Client {
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if t == nil {
		t = tracker.New()
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		cache:      c,
		tracker:    t,
		backoff:    NewProviderBackoff(cfg.BaseDelay, cfg.MaxDelay),
		queues:     make(map[string]chan job),
		limiters:   make(map[string]*rate.Limiter),
	}
}

// Tracker returns the usage tracker.
func (c *Client) Tracker() *tracker.Tracker {
	return c.tracker
}

// Get performs a GET request, served from cache when cacheKey is set and present.
func (c *Client) Get(ctx context.Context, u, cacheKey string) ([]byte, error) {
	return c.GetWithHeaders(ctx, u, nil, cacheKey)
}

// GetWithHeaders performs a GET request with custom headers and optional caching.
func (c *Client) GetWithHeaders(ctx context.Context, u string, headers map[string]string, cacheKey string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, u, nil, headers, cacheKey)
}

// Post performs a POST request.
func (c *Client) Post(ctx context.Context, u string, body []byte, contentType string) ([]byte, error) {
	return c.do(ctx, http.MethodPost, u, body, map[string]string{"Content-Type": contentType}, "")
}

// PostWithHeaders performs a POST request with custom headers.
func (c *Client) PostWithHeaders(ctx context.Context, u string, body []byte, headers map[string]string) ([]byte, error) {
	return c.do(ctx, http.MethodPost, u, body, headers, "")
}

func (c *Client) do(ctx context.Context, method, u string, body []byte, headers map[string]string, cacheKey string) ([]byte, error) {
	parsed, err := url.Parse(u)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	provider := providerFor(ctx, parsed.Host)

	if cacheKey != "" && c.cache != nil {
		if val, hit := c.cache.GetCache(ctx, cacheKey); hit {
			c.tracker.TrackCacheHit(provider)
			logging.Trace(slog.Default(), "Cache Hit", "provider", provider, "key", cacheKey)
			return val, nil
		}
		c.tracker.TrackCacheMiss(provider)
	}

	respChan := make(chan jobResult, 1)
	j := job{ctx: ctx, method: method, url: u, body: body, headers: headers, cacheKey: cacheKey, respChan: respChan}
	if err := c.dispatch(provider, j); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-respChan:
		return res.body, res.err
	}
}

func providerFor(ctx context.Context, host string) string {
	if label, ok := ctx.Value(ctxProvider).(string); ok && label != "" {
		return label
	}
	return normalizeProvider(host)
}

func normalizeProvider(host string) string {
	h := strings.ToLower(host)
	if i := strings.LastIndex(h, ":"); i >= 0 && !strings.Contains(h[i:], "]") {
		h = h[:i]
	}
	switch {
	case strings.Contains(h, "overpass"):
		return "overpass"
	case strings.HasSuffix(h, "googleapis.com"):
		return "gemini"
	case strings.HasSuffix(h, "openai.com"):
		return "openai"
	}
	return host
}

// dispatch sends the job to the provider's queue, starting its worker on first use.
func (c *Client) dispatch(provider string, j job) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("request client closed")
	}
	q, ok := c.queues[provider]
	if !ok {
		q = make(chan job, 100)
		c.queues[provider] = q
		c.limiters[provider] = c.newLimiter()
		c.wg.Add(1)
		go c.worker(provider, q, c.limiters[provider])
	}
	c.mu.Unlock()

	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return errors.New("request client closed")
	}

	// Blocks when the queue is full, throttling the caller
	select {
	case q <- j:
		return nil
	case <-j.ctx.Done():
		return j.ctx.Err()
	}
}

func (c *Client) newLimiter() *rate.Limiter {
	if c.cfg.RateLimit <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := c.cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(c.cfg.RateLimit), burst)
}

// Close stops all provider workers. Requests dispatched afterwards fail.
func (c *Client) Close() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for _, q := range c.queues {
		close(q)
	}
	c.mu.Unlock()
	c.wg.Wait()
	c.httpClient.CloseIdleConnections()
}

// worker processes requests for one provider sequentially.
func (c *Client) worker(provider string, q <-chan job, limiter *rate.Limiter) {
	defer c.wg.Done()
	for j := range q {
		if err := j.ctx.Err(); err != nil {
			slog.Warn("Job dropped from queue (context expired)", "provider", provider, "error", err)
			j.respChan <- jobResult{err: err}
			continue
		}
		if err := limiter.Wait(j.ctx); err != nil {
			j.respChan <- jobResult{err: err}
			continue
		}

		attempts, custom := j.ctx.Value(ctxAttempts).(int)
		if !custom || attempts < 1 {
			attempts = c.cfg.Retries
			if err := c.backoff.Wait(j.ctx, provider); err != nil {
				j.respChan <- jobResult{err: err}
				continue
			}
		}

		caller := j.ctx
		cancel := context.CancelFunc(func() {})
		if d, ok := TimeoutFrom(caller); ok {
			j.ctx, cancel = context.WithTimeout(caller, d)
		}
		body, err := c.executeWithBackoff(j, provider, attempts)
		cancel()
		if err == nil {
			c.tracker.TrackAPISuccess(provider)
			c.backoff.RecordSuccess(provider)
			if len(body) == 0 {
				c.tracker.TrackAPIZero(provider)
			}
			if j.cacheKey != "" && c.cache != nil {
				if err := c.cache.SetCache(context.Background(), j.cacheKey, body); err != nil {
					slog.Error("Failed to cache response", "url", j.url, "error", err)
				}
			}
		} else {
			c.tracker.TrackAPIFailure(provider)
			if !custom && caller.Err() == nil {
				c.backoff.RecordFailure(provider)
			}
		}

		j.respChan <- jobResult{body: body, err: err}
	}
}

// executeWithBackoff retries network errors, 429 and 5xx with exponential delay.
func (c *Client) executeWithBackoff(j job, provider string, attempts int) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := Sleep(j.ctx, Delay(attempt-1, c.cfg.BaseDelay, c.cfg.MaxDelay)); err != nil {
				return nil, err
			}
		}

		body, err := c.execute(j, provider, attempt)
		if err == nil {
			return body, nil
		}
		if j.ctx.Err() != nil {
			return nil, j.ctx.Err()
		}

		var se *StatusError
		if errors.As(err, &se) && !se.Retryable() {
			return nil, err
		}
		lastErr = err
		slog.Warn("Request failed", "provider", provider, "url", j.url, "attempt", attempt+1, "error", err)
	}
	return nil, fmt.Errorf("%w: %w", ErrMaxRetries, lastErr)
}

func (c *Client) execute(j job, provider string, attempt int) ([]byte, error) {
	var reader io.Reader = http.NoBody
	if j.body != nil {
		reader = bytes.NewReader(j.body)
	}
	req, err := http.NewRequestWithContext(j.ctx, j.method, j.url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	hasUA := false
	for k, v := range j.headers {
		req.Header.Set(k, v)
		if http.CanonicalHeaderKey(k) == "User-Agent" {
			hasUA = true
		}
	}
	if !hasUA {
		req.Header.Set("User-Agent", defaultUserAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.RequestLogger.Warn("request", "provider", provider, "method", j.method, "url", redact(req.URL), "attempt", attempt+1, "error", err)
		return nil, err
	}
	defer resp.Body.Close()

	data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	logging.RequestLogger.Info("request", "provider", provider, "method", j.method, "url", redact(req.URL),
		"status", resp.StatusCode, "attempt", attempt+1, "bytes", len(data), "took", time.Since(start))

	if resp.StatusCode >= 400 {
		return nil, &StatusError{Code: resp.StatusCode, Body: truncate(string(data), 300)}
	}
	if readErr != nil {
		return nil, fmt.Errorf("read error: %w", readErr)
	}
	return data, nil
}

// redact drops query strings, which may carry API keys.
func redact(u *url.URL) string {
	cp := *u
	cp.RawQuery = ""
	return cp.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
