package notify

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"

	"seojobs/internal/eventbus"
	"seojobs/internal/task/jobs"
	logx "seojobs/pkg/logx"
)

type ForwarderConfig struct {
	// DedupWindow suppresses a repeat of the same move (default 6h; <0 disables).
	DedupWindow time.Duration
	RatePerSec  float64 // default 1
	RetryMax    int     // extra attempts after the first (default 2)
	RetryBase   time.Duration
	SendTimeout time.Duration
}

func (c ForwarderConfig) withDefaults() ForwarderConfig {
	if c.DedupWindow == 0 {
		c.DedupWindow = 6 * time.Hour
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 1
	}
	if c.RetryMax < 0 {
		c.RetryMax = 0
	} else if c.RetryMax == 0 {
		c.RetryMax = 2
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 500 * time.Millisecond
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
	return c
}

// Forwarder delivers ranking.alert events to a sink with rate limiting, retry
// and dedup. It is driven by a single goroutine through Run.
type Forwarder struct {
	sink jobs.AlertSink
	cfg  ForwarderConfig
	log  logx.Logger
	lim  *rate.Limiter
	now  func() time.Time

	dedup map[string]time.Time
	sent  int
}

func NewForwarder(sink jobs.AlertSink, cfg ForwarderConfig, log logx.Logger) *Forwarder {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = cfg.withDefaults()
	return &Forwarder{
		sink:  sink,
		cfg:   cfg,
		log:   log.With(logx.String("comp", "alerts")),
		lim:   rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
		now:   time.Now,
		dedup: map[string]time.Time{},
	}
}

// Run consumes events until ctx is done or the channel is closed.
func (f *Forwarder) Run(ctx context.Context, events <-chan eventbus.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			a, ok := alertOf(ev)
			if !ok {
				continue
			}
			f.handle(ctx, a)
		}
	}
}

func alertOf(ev eventbus.Event) (jobs.RankAlert, bool) {
	if ev.Type != jobs.EventRankAlert {
		return jobs.RankAlert{}, false
	}
	switch a := ev.Data.(type) {
	case jobs.RankAlert:
		return a, true
	case *jobs.RankAlert:
		if a != nil {
			return *a, true
		}
	}
	return jobs.RankAlert{}, false
}

func (f *Forwarder) handle(ctx context.Context, a jobs.RankAlert) {
	key := fmt.Sprintf("%d:%d:%d", a.KeywordID, a.PreviousRank, a.CurrentRank)
	if !f.dedupAllow(key) {
		f.log.Debug("alert deduped", logx.String("key", key))
		return
	}

	attempts := 1 + f.cfg.RetryMax
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if werr := f.lim.Wait(ctx); werr != nil {
			return
		}
		sctx, cancel := context.WithTimeout(ctx, f.cfg.SendTimeout)
		err = f.sink.RankAlert(sctx, a)
		cancel()
		if err == nil {
			f.sent++
			f.log.Debug("alert sent", logx.String("keyword", a.Keyword), logx.Int("attempt", attempt))
			return
		}
		if attempt == attempts {
			break
		}
		t := time.NewTimer(f.retryDelay(attempt))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return
		}
	}
	// Let the move alert again on the next run.
	delete(f.dedup, key)
	f.log.Warn("alert delivery failed", logx.String("keyword", a.Keyword), logx.Int("attempts", attempts), logx.Err(err))
}

func (f *Forwarder) dedupAllow(key string) bool {
	if f.cfg.DedupWindow < 0 {
		return true
	}
	now := f.now()
	if until, ok := f.dedup[key]; ok && now.Before(until) {
		return false
	}
	for k, until := range f.dedup {
		if !now.Before(until) {
			delete(f.dedup, k)
		}
	}
	f.dedup[key] = now.Add(f.cfg.DedupWindow)
	return true
}

// retryDelay is base * 2^(attempt-1) with 0.7..1.3 jitter.
func (f *Forwarder) retryDelay(attempt int) time.Duration {
	d := f.cfg.RetryBase << (attempt - 1)
	return time.Duration(float64(d) * (0.7 + rand.Float64()*0.6))
}

// Sent reports delivered alerts. Only safe once Run has returned.
func (f *Forwarder) Sent() int { return f.sent }
