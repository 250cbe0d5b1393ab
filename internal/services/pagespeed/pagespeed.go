// Package pagespeed runs Lighthouse audits through the PageSpeed Insights v5 API.
package pagespeed

import (
	"context"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"seojobs/internal/domain"
	"seojobs/internal/services/httpx"
	logx "seojobs/pkg/logx"
)

const DefaultEndpoint = "https://www.googleapis.com/pagespeedonline/v5/runPagespeed"

var categories = []string{"performance", "accessibility", "best-practices", "seo"}

type Config struct {
	Endpoint string
	// APIKey is optional; keyless requests get a much smaller quota.
	APIKey   string
	Strategy string        // mobile (default) or desktop
	Timeout  time.Duration // default 60s; Lighthouse runs are slow
	// RatePerSec caps request starts; 0 means unlimited.
	RatePerSec float64
}

type Client struct {
	cfg  Config
	http *httpx.Client
}

func New(cfg Config, log logx.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Strategy == "" {
		cfg.Strategy = "mobile"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: httpx.New(httpx.Config{Name: "pagespeed", Timeout: cfg.Timeout, RatePerSec: cfg.RatePerSec}, log),
	}
}

type response struct {
	LighthouseResult *struct {
		Categories map[string]struct {
			Score *float64 `json:"score"`
		} `json:"categories"`
	} `json:"lighthouseResult"`
}

// Audit returns the four Lighthouse category scores of website on a 0..100 scale.
func (c *Client) Audit(ctx context.Context, website string) (domain.PerformanceScores, error) {
	website = strings.TrimSpace(website)
	if website == "" {
		return domain.PerformanceScores{}, errors.New("pagespeed: empty website")
	}
	q := url.Values{"url": {website}, "strategy": {c.cfg.Strategy}, "category": categories}
	if c.cfg.APIKey != "" {
		q.Set("key", c.cfg.APIKey)
	}

	var resp response
	if err := c.http.GetJSON(ctx, c.cfg.Endpoint, q, &resp); err != nil {
		return domain.PerformanceScores{}, err
	}
	if resp.LighthouseResult == nil || len(resp.LighthouseResult.Categories) == 0 {
		return domain.PerformanceScores{}, errors.Newf("pagespeed: no lighthouse result for %s", website)
	}
	cat := resp.LighthouseResult.Categories
	score := func(name string) float64 {
		s := cat[name].Score
		if s == nil {
			return 0
		}
		return math.Round(*s * 100)
	}
	return domain.PerformanceScores{
		Performance:   score("performance"),
		Accessibility: score("accessibility"),
		BestPractices: score("best-practices"),
		SEO:           score("seo"),
	}, nil
}
