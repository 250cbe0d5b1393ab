package scheduler

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"

	logx "seojobs/pkg/logx"
)

// RegisterJob adds a job and arms its trigger when enabled, unless the
// service was built WithHeldStart and StartAll has not run yet.
// An invalid schedule registers nothing.
func (s *Service) RegisterJob(name, schedule string, h Handler, enabled bool) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("job name required")
	}
	if h == nil {
		return errors.Newf("job %q: handler required", name)
	}
	sched, err := ParseSchedule(schedule)
	if err != nil {
		return errors.Wrapf(err, "register %q", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[name]; ok {
		return errors.Wrapf(ErrJobExists, "%q", name)
	}
	rec := &jobRecord{
		name:     name,
		schedule: strings.TrimSpace(schedule),
		sched:    sched,
		enabled:  enabled,
		handler:  h,
	}
	s.jobs[name] = rec
	if enabled {
		s.armLocked(rec)
	}

	fields := []logx.Field{logx.String("job", name), logx.String("schedule", rec.schedule), logx.Bool("enabled", enabled)}
	if rec.entryID != 0 && s.log.Enabled(logx.LevelDebug) {
		if next, err := NextRuns(rec.schedule, s.now(), s.loc, 3); err == nil {
			fields = append(fields, logx.String("next", formatRuns(next)))
		}
	}
	s.log.Debug("job registered", fields...)
	return nil
}

// TriggerJob runs the job now on the caller's goroutine, ignoring the enabled
// flag, and returns the finished execution. A handler failure is reported in
// the returned Execution, not as err.
func (s *Service) TriggerJob(ctx context.Context, name string) (Execution, error) {
	s.mu.Lock()
	rec, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return Execution{}, wrapNotFound(name)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return s.dispatch(ctx, rec.name, rec.handler, TriggerManual), nil
}

// EnableJob arms the trigger, or marks it for StartAll while the service is
// held. Enabling an enabled job is a no-op.
func (s *Service) EnableJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[name]
	if !ok {
		return wrapNotFound(name)
	}
	if rec.enabled {
		return nil
	}
	rec.enabled = true
	s.armLocked(rec)
	s.log.Info("job enabled", logx.String("job", name))
	return nil
}

// DisableJob disarms the trigger. Disabling a disabled job is a no-op.
func (s *Service) DisableJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[name]
	if !ok {
		return wrapNotFound(name)
	}
	if !rec.enabled {
		return nil
	}
	rec.enabled = false
	s.disarmLocked(rec)
	s.log.Info("job disabled", logx.String("job", name))
	return nil
}

// UpdateJobSchedule swaps the job's trigger. The new expression is validated
// first; on error the old schedule and armed state are untouched.
func (s *Service) UpdateJobSchedule(name, schedule string) error {
	sched, err := ParseSchedule(schedule)
	if err != nil {
		s.mu.Lock()
		_, ok := s.jobs[name]
		s.mu.Unlock()
		if !ok {
			return wrapNotFound(name)
		}
		return errors.Wrapf(err, "reschedule %q", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[name]
	if !ok {
		return wrapNotFound(name)
	}
	old := rec.schedule
	wasArmed := rec.entryID != 0
	s.disarmLocked(rec)
	rec.schedule = strings.TrimSpace(schedule)
	rec.sched = sched
	// After StopAll an enabled job stays disarmed until StartAll.
	if rec.enabled && wasArmed {
		s.armLocked(rec)
	}
	next, _ := NextRuns(rec.schedule, s.now(), s.loc, 3)
	s.log.Info("job rescheduled", logx.String("job", name), logx.String("from", old), logx.String("to", rec.schedule), logx.String("next", formatRuns(next)))
	return nil
}

// StartAll arms every enabled job that is not armed yet.
func (s *Service) StartAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held = false
	n := 0
	for _, rec := range s.jobs {
		if rec.enabled && rec.entryID == 0 {
			s.armLocked(rec)
		}
		if rec.entryID != 0 {
			n++
		}
	}
	s.log.Info("jobs started", logx.Int("armed", n), logx.Int("registered", len(s.jobs)))
}

// StopAll disarms every job. Enabled flags are kept, so StartAll re-arms them.
func (s *Service) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.jobs {
		s.disarmLocked(rec)
	}
	s.log.Info("jobs stopped", logx.Int("registered", len(s.jobs)))
}

// AvailableJobs returns the registered job names, sorted.
func (s *Service) AvailableJobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (s *Service) armLocked(rec *jobRecord) {
	if rec.entryID != 0 || s.closed || s.held {
		return
	}
	name := rec.name
	rec.entryID = s.c.Schedule(rec.sched, cron.FuncJob(func() { s.fire(name) }))
}

func (s *Service) disarmLocked(rec *jobRecord) {
	if rec.entryID == 0 {
		return
	}
	s.c.Remove(rec.entryID)
	rec.entryID = 0
}

func (s *Service) nextLocked(rec *jobRecord) time.Time {
	if rec.entryID == 0 {
		return time.Time{}
	}
	return rec.sched.Next(s.now().In(s.loc))
}

// fire is the cron callback; it runs on a goroutine spawned by cron.
func (s *Service) fire(name string) {
	s.mu.Lock()
	rec, ok := s.jobs[name]
	base := s.base
	s.mu.Unlock()
	if !ok {
		return
	}
	s.dispatch(base, rec.name, rec.handler, TriggerSchedule)
}
