package serp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seojobs/internal/domain"
	"seojobs/internal/services/httpx"
	logx "seojobs/pkg/logx"
)

const organic = `{"organic_results":[
	{"position":1,"link":"https://www.yelp.com/biz/acme"},
	{"position":2,"link":"https://competitor.example/plumbing"},
	{"position":3,"link":"https://blog.acme.example/emergency"},
	{"position":4,"link":"https://acme.example/"}]}`

func testServer(t *testing.T, body string, check func(*http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRankMatchesCompanyHost(t *testing.T) {
	srv := testServer(t, organic, func(r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "k", q.Get("api_key"))
		assert.Equal(t, "google", q.Get("engine"))
		assert.Equal(t, "emergency plumber", q.Get("q"))
		assert.Equal(t, "100", q.Get("num"))
		assert.Equal(t, "us", q.Get("gl"))
		assert.Equal(t, "en", q.Get("hl"))
		assert.Equal(t, "Boston, Massachusetts", q.Get("location"))
	})
	c := New(Config{Endpoint: srv.URL, APIKey: "k"}, logx.Nop())

	rank, err := c.Rank(context.Background(), domain.Keyword{
		ID: 1, Keyword: "emergency plumber", Location: "Boston, Massachusetts", CompanyWebsite: "https://www.acme.example",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, rank, "subdomains count as the company site")
}

func TestRankNotFound(t *testing.T) {
	srv := testServer(t, organic, nil)
	c := New(Config{Endpoint: srv.URL, APIKey: "k"}, logx.Nop())

	rank, err := c.Rank(context.Background(), domain.Keyword{Keyword: "x", CompanyWebsite: "other.example"})
	require.NoError(t, err)
	assert.Zero(t, rank)
}

func TestRankNoResults(t *testing.T) {
	srv := testServer(t, `{"error":"Google hasn't returned any results for this query."}`, nil)
	c := New(Config{Endpoint: srv.URL, APIKey: "k"}, logx.Nop())

	rank, err := c.Rank(context.Background(), domain.Keyword{Keyword: "x", CompanyWebsite: "acme.example"})
	require.NoError(t, err)
	assert.Zero(t, rank)
}

func TestRankAPIError(t *testing.T) {
	srv := testServer(t, `{"error":"Invalid API key."}`, nil)
	c := New(Config{Endpoint: srv.URL, APIKey: "bad"}, logx.Nop())

	_, err := c.Rank(context.Background(), domain.Keyword{Keyword: "x", CompanyWebsite: "acme.example"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid API key")
}

func TestRankRequiresKeyAndWebsite(t *testing.T) {
	_, err := New(Config{}, logx.Nop()).Rank(context.Background(), domain.Keyword{CompanyWebsite: "acme.example"})
	require.ErrorIs(t, err, httpx.ErrNotConfigured)

	_, err = New(Config{APIKey: "k"}, logx.Nop()).Rank(context.Background(), domain.Keyword{ID: 9})
	require.Error(t, err)
}

func TestSiteHost(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"https://www.Acme.example/path": "acme.example",
		"acme.example":                  "acme.example",
		"http://shop.acme.example:8080": "shop.acme.example",
		"":                              "",
	}
	for in, want := range cases {
		if got := siteHost(in); got != want {
			t.Fatalf("siteHost(%q) = %q, want %q", in, got, want)
		}
	}
}
