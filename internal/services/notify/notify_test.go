package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seojobs/internal/eventbus"
	"seojobs/internal/task/jobs"
	logx "seojobs/pkg/logx"
)

var drop = jobs.RankAlert{
	KeywordID: 7, Keyword: "emergency plumber", CompanyName: "Acme", Location: "Boston, MA",
	PreviousRank: 5, CurrentRank: 20, Change: 15,
}

func TestFormatAlert(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `Rank alert: "emergency plumber" for Acme dropped 15 positions in Boston, MA (#5 -> #20, +15)`, FormatAlert(drop))

	up := jobs.RankAlert{Keyword: "drain", CompanyName: "Acme", PreviousRank: 22, CurrentRank: 9, Change: -13}
	assert.Equal(t, `Rank alert: "drain" for Acme improved 13 positions (#22 -> #9, -13)`, FormatAlert(up))
}

func TestSMTPMailerMessage(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "mail.example", Username: "u", Password: "p", From: "seo@agency.example"}, logx.Nop())
	m.now = func() time.Time { return time.Date(2024, 5, 13, 8, 0, 0, 0, time.UTC) }

	var gotAddr string
	var gotTo []string
	var gotMsg string
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		assert.NotNil(t, a)
		assert.Equal(t, "seo@agency.example", from)
		return nil
	}

	err := m.Send(context.Background(), jobs.Email{To: "owner@acme.example", Subject: "Weekly SEO Report - 5/6/2024", Body: "line1\nline2"})
	require.NoError(t, err)
	assert.Equal(t, "mail.example:587", gotAddr)
	assert.Equal(t, []string{"owner@acme.example"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: Weekly SEO Report - 5/6/2024\r\n")
	assert.Contains(t, gotMsg, "Date: Mon, 13 May 2024 08:00:00 +0000\r\n")
	assert.True(t, strings.HasSuffix(gotMsg, "\r\n\r\nline1\r\nline2"))
}

func TestSMTPMailerErrors(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{}, logx.Nop())
	require.Error(t, m.Send(context.Background(), jobs.Email{To: "a@b.example"}))

	m = NewSMTPMailer(SMTPConfig{Host: "mail.example", From: "x@y.example"}, logx.Nop())
	m.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("550 no such user") }
	err := m.Send(context.Background(), jobs.Email{To: "a@b.example"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "550")

	release := make(chan struct{})
	defer close(release)
	m.send = func(string, smtp.Auth, string, []string, []byte) error { <-release; return nil }
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, m.Send(ctx, jobs.Email{To: "a@b.example"}), context.DeadlineExceeded)
}

func TestSlackWebhook(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s, err := NewSlackAlerter(SlackConfig{WebhookURL: srv.URL})
	require.NoError(t, err)
	require.NoError(t, s.RankAlert(context.Background(), drop))
	assert.Equal(t, FormatAlert(drop), got["text"])
}

func TestSlackBotToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat.postMessage", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "C123", r.PostForm.Get("channel"))
		assert.Equal(t, FormatAlert(drop), r.PostForm.Get("text"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"channel":"C123","ts":"1715587200.000100"}`))
	}))
	defer srv.Close()

	s, err := NewSlackAlerter(SlackConfig{Token: "xoxb-test", Channel: "C123", APIURL: srv.URL + "/"})
	require.NoError(t, err)
	require.NoError(t, s.RankAlert(context.Background(), drop))
}

func TestSlackNotConfigured(t *testing.T) {
	_, err := NewSlackAlerter(SlackConfig{Token: "xoxb-only"})
	require.Error(t, err)
}

func TestBusAlerterPublishes(t *testing.T) {
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(1, jobs.EventRankAlert)
	defer unsub()

	require.NoError(t, BusAlerter{Bus: bus}.RankAlert(context.Background(), drop))
	ev := <-ch
	assert.Equal(t, drop, ev.Data)
}

type flakySink struct {
	mu    sync.Mutex
	fails int
	calls int
	got   []jobs.RankAlert
}

func (s *flakySink) RankAlert(_ context.Context, a jobs.RankAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fails > 0 {
		s.fails--
		return errors.New("webhook 503")
	}
	s.got = append(s.got, a)
	return nil
}

func runForwarder(t *testing.T, f *Forwarder, evs ...eventbus.Event) {
	t.Helper()
	ch := make(chan eventbus.Event, len(evs))
	for _, e := range evs {
		ch <- e
	}
	close(ch)
	require.NoError(t, f.Run(context.Background(), ch))
}

func TestForwarderDedupAndRetry(t *testing.T) {
	sink := &flakySink{fails: 2}
	f := NewForwarder(sink, ForwarderConfig{RatePerSec: 1000, RetryBase: time.Millisecond}, logx.Nop())

	alert := eventbus.Event{Type: jobs.EventRankAlert, Data: drop}
	other := drop
	other.CurrentRank = 25
	runForwarder(t, f,
		alert,
		eventbus.Event{Type: "job.finished", Data: drop},
		alert,
		eventbus.Event{Type: jobs.EventRankAlert, Data: &other},
	)

	assert.Equal(t, 4, sink.calls, "two retries, one success, one distinct alert")
	require.Len(t, sink.got, 2)
	assert.Equal(t, 25, sink.got[1].CurrentRank)
	assert.Equal(t, 2, f.Sent())
}

func TestForwarderGivesUpAndAllowsRepeat(t *testing.T) {
	sink := &flakySink{fails: 3}
	f := NewForwarder(sink, ForwarderConfig{RatePerSec: 1000, RetryMax: 1, RetryBase: time.Millisecond}, logx.Nop())

	alert := eventbus.Event{Type: jobs.EventRankAlert, Data: drop}
	runForwarder(t, f, alert, alert)

	// 2 failed attempts, then the repeat gets 1 failure and 1 success.
	assert.Equal(t, 4, sink.calls)
	assert.Equal(t, 1, f.Sent())
}

func TestForwarderStopsOnContext(t *testing.T) {
	f := NewForwarder(&flakySink{}, ForwarderConfig{}, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, f.Run(ctx, make(chan eventbus.Event)))
}
