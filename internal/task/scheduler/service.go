package scheduler

import (
	"context"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	logx "seojobs/pkg/logx"
)

// New builds a scheduler and starts its trigger loop. Jobs registered later are
// armed immediately when enabled. Call Close to stop the loop.
func New(cfg Config, log logx.Logger, opts ...Option) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultHistorySize
	}
	if strings.TrimSpace(cfg.Timezone) == "" {
		cfg.Timezone = DefaultTimezone
	}

	base, cancel := context.WithCancel(context.Background())
	s := &Service{
		log:    log,
		cfg:    cfg,
		now:    time.Now,
		parser: scheduleParser,
		jobs:   map[string]*jobRecord{},
		base:   base,
		cancel: cancel,
	}
	for _, o := range opts {
		o(s)
	}

	s.loc = loadLocation(cfg.Timezone, log)
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(s.loc))
	s.c.Start()
	s.log.Info("service started", logx.String("tz", s.loc.String()), logx.Int("history_size", cfg.HistorySize), logx.Duration("job_timeout", cfg.JobTimeout))
	return s
}

// Location is the timezone every schedule is evaluated in.
func (s *Service) Location() *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loc
}

// SetJobTimeout changes the deadline applied to subsequent invocations.
func (s *Service) SetJobTimeout(d time.Duration) {
	s.mu.Lock()
	s.cfg.JobTimeout = d
	s.mu.Unlock()
}

// Close disarms every trigger, cancels the context of cron-fired runs and waits
// for them until ctx is done. Manual TriggerJob runs use the caller's context.
func (s *Service) Close(ctx context.Context) {
	start := time.Now()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for _, rec := range s.jobs {
		s.disarmLocked(rec)
	}
	c := s.c
	s.mu.Unlock()

	stopped := c.Stop()
	s.cancel()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		s.log.Warn("stop timed out; jobs still running", logx.Err(ctx.Err()))
	}
	s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
}

func loadLocation(tz string, log logx.Logger) *time.Location {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}
