package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/marketlens/marketlens/internal/apperrors"
	"github.com/marketlens/marketlens/internal/config"
	"github.com/marketlens/marketlens/internal/metrics"
)

// Module wires a *Client into the fx graph.
var Module = fx.Options(
	fx.Provide(New),
	fx.Provide(NewAPI),
)

// Client is the single shared HTTP client for every upstream call (§4.2):
// one *http.Client, one circuit breaker, bounded by a counting semaphore.
// Closing it is idempotent.
type Client struct {
	httpClient *http.Client
	signer     Signer
	logger     *zap.Logger
	metrics    *metrics.Metrics

	breaker *gobreaker.CircuitBreaker
	sem     chan struct{}

	retry retryOptions

	// hostRate bounds outbound requests per upstream host (§4.2, §5), on
	// top of the concurrency semaphore; limiters is lazily populated per
	// host since baseURL count is small and fixed (metadata/book/trades).
	hostRate  limiter.Rate
	limiters  map[string]*limiter.Limiter
	limiterMu sync.Mutex

	rateLimitHits int64
	closed        bool
}

// New constructs the shared upstream Client, sized and configured from
// cfg.Upstream. Default breaker thresholds: 5 consecutive failures
// trips, 30s half-open window.
func New(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) *Client {
	concurrency := cfg.Upstream.OrderbookConcurrency
	if concurrency <= 0 {
		concurrency = 15
	}

	breakerSettings := gobreaker.Settings{
		Name:        "upstream",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("upstream circuit breaker state change",
				zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}

	attempts := cfg.Upstream.RetryAttempts
	if attempts <= 0 {
		attempts = 3
	}
	baseDelay := cfg.Upstream.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	maxDelay := cfg.Upstream.RetryMaxDelay
	if maxDelay <= 0 {
		maxDelay = 10 * time.Second
	}

	rateLimitPerMinute := cfg.Upstream.RateLimitPerMinute
	if rateLimitPerMinute <= 0 {
		rateLimitPerMinute = 120
	}

	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		signer: Signer{
			Address:    cfg.Upstream.Address,
			APIKey:     cfg.Upstream.ApiKey,
			Secret:     cfg.Upstream.ApiSecret,
			Passphrase: cfg.Upstream.Passphrase,
		},
		logger:   logger,
		metrics:  m,
		breaker:  gobreaker.NewCircuitBreaker(breakerSettings),
		sem:      make(chan struct{}, concurrency),
		retry:    retryOptions{maxAttempts: attempts, baseDelay: baseDelay, maxDelay: maxDelay},
		hostRate: limiter.Rate{Period: time.Minute, Limit: int64(rateLimitPerMinute)},
		limiters: make(map[string]*limiter.Limiter),
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return c.Close()
		},
	})

	return c
}

// Close idempotently releases the client's transport resources.
func (c *Client) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.httpClient.CloseIdleConnections()
	return nil
}

// RateLimitHits reports how many times the client has either been throttled
// locally (outbound rate limiter) or received a 429 from upstream, for
// scheduler/telemetry logging.
func (c *Client) RateLimitHits() int64 {
	return c.rateLimitHits
}

// hostLimiter returns the per-host outbound rate limiter, creating one
// (backed by an in-process memory store) on first use.
func (c *Client) hostLimiter(host string) *limiter.Limiter {
	c.limiterMu.Lock()
	defer c.limiterMu.Unlock()
	if l, ok := c.limiters[host]; ok {
		return l
	}
	l := limiter.New(memory.NewStore(), c.hostRate)
	c.limiters[host] = l
	return l
}

// throttle blocks until the per-host outbound rate limit has room for one
// more request, or ctx is cancelled. This is the concrete enforcement point
// for the 429 counter in §4.2: it trades a short, bounded wait for fewer
// upstream rate-limit rejections in the first place.
func (c *Client) throttle(ctx context.Context, host string) error {
	lim := c.hostLimiter(host)
	limCtx, err := lim.Get(ctx, host)
	if err != nil {
		c.logger.Warn("outbound rate limiter unavailable, proceeding unthrottled", zap.Error(err))
		return nil
	}
	if !limCtx.Reached {
		return nil
	}

	c.rateLimitHits++
	c.metrics.UpstreamRateLimitHits.Inc()

	wait := time.Until(time.Unix(limCtx.Reset, 0))
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get performs an authenticated or anonymous GET against baseURL+path with
// query params, bounded by the semaphore, wrapped in the circuit breaker
// and the retry loop, decoding the JSON response body into out. baseURL is
// one of the three configured upstream hosts (metadata/book/trades); path
// is what gets signed, excluding query parameters (§4.2).
func (c *Client) Get(ctx context.Context, baseURL, path string, query url.Values, signed bool, out interface{}) error {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-c.sem }()

	if host, parseErr := url.Parse(baseURL); parseErr == nil && host.Host != "" {
		if throttleErr := c.throttle(ctx, host.Host); throttleErr != nil {
			return apperrors.Wrap(throttleErr, apperrors.KindUpstreamRateLimit, "outbound rate limit wait")
		}
	}

	err := withRetry(ctx, c.retry, func() error {
		_, breakerErr := c.breaker.Execute(func() (interface{}, error) {
			body, doErr := c.doGet(ctx, baseURL, path, query, signed)
			if doErr != nil {
				return nil, doErr
			}
			if out != nil {
				if jsonErr := json.Unmarshal(body, out); jsonErr != nil {
					return nil, apperrors.Wrap(jsonErr, apperrors.KindDataValidation, "decode upstream response")
				}
			}
			return nil, nil
		})
		return breakerErr
	})
	return err
}

// doGet performs a single HTTP round trip, classifying the result per the
// §4.2 retry contract.
func (c *Client) doGet(ctx context.Context, baseURL, path string, query url.Values, signed bool) ([]byte, error) {
	fullURL := strings.TrimRight(baseURL, "/") + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindUpstreamClient, "build request")
	}
	if signed {
		if signErr := c.signer.Sign(req, http.MethodGet, path); signErr != nil {
			return nil, apperrors.Wrap(signErr, apperrors.KindUpstreamClient, "sign request")
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindUpstreamTransport, fmt.Sprintf("GET %s", path))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindUpstreamTransport, "read response body")
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		c.rateLimitHits++
		c.metrics.UpstreamRateLimitHits.Inc()
	}
	if classErr := classifyStatus(resp.StatusCode, body); classErr != nil {
		c.metrics.UpstreamRequests.WithLabelValues(string(apperrors.GetKind(classErr))).Inc()
		return nil, classErr
	}

	c.metrics.UpstreamRequests.WithLabelValues("").Inc()
	return body, nil
}
