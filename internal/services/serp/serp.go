// Package serp looks up Google positions through SerpAPI.
package serp

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"seojobs/internal/domain"
	"seojobs/internal/services/httpx"
	logx "seojobs/pkg/logx"
)

const DefaultEndpoint = "https://serpapi.com/search"

type Config struct {
	Endpoint string
	APIKey   string
	Num      int    // results per lookup (default 100)
	Country  string // gl (default us)
	Language string // hl (default en)
	Timeout  time.Duration
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
	if cfg.Num <= 0 {
		cfg.Num = 100
	}
	if cfg.Country == "" {
		cfg.Country = "us"
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: httpx.New(httpx.Config{Name: "serpapi", Timeout: cfg.Timeout, RatePerSec: cfg.RatePerSec}, log),
	}
}

type response struct {
	Error          string `json:"error"`
	OrganicResults []struct {
		Position int    `json:"position"`
		Link     string `json:"link"`
	} `json:"organic_results"`
}

// Rank returns the 1-based organic position of kw's company website, or 0 when
// it is not in the first Num results.
func (c *Client) Rank(ctx context.Context, kw domain.Keyword) (int, error) {
	if c.cfg.APIKey == "" {
		return 0, errors.WithHint(errors.Wrap(httpx.ErrNotConfigured, "serpapi"), "set services.serp.api_key")
	}
	host := siteHost(kw.CompanyWebsite)
	if host == "" {
		return 0, errors.Newf("serpapi: keyword %d has no company website", kw.ID)
	}

	q := url.Values{
		"api_key": {c.cfg.APIKey},
		"engine":  {"google"},
		"q":       {kw.Keyword},
		"num":     {strconv.Itoa(c.cfg.Num)},
		"gl":      {c.cfg.Country},
		"hl":      {c.cfg.Language},
	}
	if kw.Location != "" {
		q.Set("location", kw.Location)
	}

	var resp response
	if err := c.http.GetJSON(ctx, c.cfg.Endpoint, q, &resp); err != nil {
		return 0, err
	}
	if resp.Error != "" {
		// SerpAPI reports "no results" as an error string on a 200.
		if strings.Contains(strings.ToLower(resp.Error), "hasn't returned any results") {
			return 0, nil
		}
		return 0, errors.Newf("serpapi: %s", resp.Error)
	}
	for i, r := range resp.OrganicResults {
		if !sameSite(siteHost(r.Link), host) {
			continue
		}
		if r.Position > 0 {
			return r.Position, nil
		}
		return i + 1, nil
	}
	return 0, nil
}

// siteHost returns the lowercase host of a URL or bare domain, without "www.".
func siteHost(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func sameSite(got, want string) bool {
	return got != "" && (got == want || strings.HasSuffix(got, "."+want))
}
