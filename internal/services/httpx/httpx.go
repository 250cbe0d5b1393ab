// Package httpx is the JSON-over-HTTP client shared by the external service
// adapters. Each Client owns a rate limiter and a circuit breaker, so a
// failing upstream fails fast instead of stalling a whole job batch.
package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	logx "seojobs/pkg/logx"
)

var (
	// ErrCircuitOpen is returned while the upstream is considered down.
	ErrCircuitOpen = errors.New("circuit open")
	// ErrNotConfigured is returned by adapters whose endpoint or key is unset.
	ErrNotConfigured = errors.New("service not configured")
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxFailures = 5
	defaultOpenTimeout = 30 * time.Second
	defaultInterval    = 60 * time.Second
	maxBodyBytes       = 8 << 20
)

// Config configures one upstream.
type Config struct {
	Name    string
	Timeout time.Duration // per request; default 30s
	// RatePerSec <= 0 means unlimited.
	RatePerSec float64
	Burst      int
	// MaxFailures consecutive failures open the circuit (default 5).
	MaxFailures uint32
	// OpenTimeout is how long the circuit stays open before a probe (default 30s).
	OpenTimeout time.Duration
	Header      http.Header
	// HTTPClient overrides the pooled default, mostly for tests.
	HTTPClient *http.Client
}

// StatusError is a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Temporary reports whether retrying later can help (429 and 5xx).
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

type Client struct {
	name    string
	hc      *http.Client
	timeout time.Duration
	header  http.Header
	lim     *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]
	log     logx.Logger
}

func New(cfg Config, log logx.Logger) *Client {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = defaultMaxFailures
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = defaultOpenTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = newPooledClient()
	}

	lim := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}

	c := &Client{
		name:    cfg.Name,
		hc:      hc,
		timeout: cfg.Timeout,
		header:  cfg.Header.Clone(),
		lim:     lim,
		log:     log.With(logx.String("upstream", cfg.Name)),
	}
	maxFailures := cfg.MaxFailures
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    defaultInterval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn("circuit breaker state change", logx.String("from", from.String()), logx.String("to", to.String()))
		},
		// A rejected request says nothing about upstream health.
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return !se.Temporary()
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return c
}

// State exposes the breaker state for status output.
func (c *Client) State() gobreaker.State { return c.breaker.State() }

// GetJSON issues GET endpoint?query and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, endpoint string, query url.Values, out any) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return errors.Wrapf(err, "%s: parse endpoint", c.name)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	if err := c.lim.Wait(ctx); err != nil {
		return errors.Wrapf(err, "%s: rate limit", c.name)
	}

	body, err := c.breaker.Execute(func() ([]byte, error) { return c.do(ctx, u) })
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return errors.Wrapf(ErrCircuitOpen, "%s", c.name)
		}
		return errors.Wrapf(err, "%s", c.name)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "%s: decode response", c.name)
	}
	return nil
}

func (c *Client) do(ctx context.Context, u *url.URL) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	c.log.Debug("http request", logx.String("path", u.Path), logx.Int("status", resp.StatusCode), logx.Duration("dur", time.Since(start)))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: snippet(body)}
	}
	return body, nil
}

func snippet(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

func newPooledClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}
}
