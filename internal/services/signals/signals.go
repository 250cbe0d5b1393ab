// Package signals calls the E-E-A-T signal analyzer service.
package signals

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"seojobs/internal/domain"
	"seojobs/internal/services/httpx"
	logx "seojobs/pkg/logx"
)

type Config struct {
	Endpoint string // GET <endpoint>?url=<website>
	APIKey   string // sent as a bearer token when set
	Timeout  time.Duration
}

type Client struct {
	endpoint string
	http     *httpx.Client
}

func New(cfg Config, log logx.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	var h http.Header
	if cfg.APIKey != "" {
		h = http.Header{"Authorization": {"Bearer " + cfg.APIKey}}
	}
	return &Client{
		endpoint: strings.TrimSpace(cfg.Endpoint),
		http:     httpx.New(httpx.Config{Name: "signals", Timeout: cfg.Timeout, Header: h}, log),
	}
}

// Analyze scores website. Out-of-range scores are clamped to 0..100.
func (c *Client) Analyze(ctx context.Context, website string) (domain.EEATScores, error) {
	if c.endpoint == "" {
		return domain.EEATScores{}, errors.WithHint(errors.Wrap(httpx.ErrNotConfigured, "signals"), "set services.signals.endpoint")
	}
	if strings.TrimSpace(website) == "" {
		return domain.EEATScores{}, errors.New("signals: empty website")
	}

	var s domain.EEATScores
	if err := c.http.GetJSON(ctx, c.endpoint, url.Values{"url": {website}}, &s); err != nil {
		return domain.EEATScores{}, err
	}
	s.Experience = clamp(s.Experience)
	s.Expertise = clamp(s.Expertise)
	s.Authoritativeness = clamp(s.Authoritativeness)
	s.Trustworthiness = clamp(s.Trustworthiness)
	return s, nil
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
