package scheduler

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"
)

// scheduleParser accepts standard five-field crontab expressions
// (minute hour day-of-month month day-of-week) and descriptors such as
// "@daily" or "@every 1h30m". Seconds are not supported.
var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule validates expr and returns its trigger schedule.
// Errors wrap ErrInvalidSchedule.
func ParseSchedule(expr string) (cron.Schedule, error) {
	s := strings.TrimSpace(expr)
	if s == "" {
		return nil, errors.Wrap(ErrInvalidSchedule, "schedule required")
	}
	sched, err := scheduleParser.Parse(s)
	if err != nil {
		return nil, errors.WithHint(
			errors.Wrapf(ErrInvalidSchedule, "%q: %v", expr, err),
			"use five fields like '0 2 * * *' or a descriptor like '@daily'",
		)
	}
	return sched, nil
}

// ValidateSchedule is ParseSchedule without the result.
func ValidateSchedule(expr string) error {
	_, err := ParseSchedule(expr)
	return err
}

// NextRuns returns the next n fire times of expr after from, evaluated in loc.
func NextRuns(expr string, from time.Time, loc *time.Location, n int) ([]time.Time, error) {
	sched, err := ParseSchedule(expr)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	out := make([]time.Time, 0, n)
	t := from.In(loc)
	for i := 0; i < n; i++ {
		t = sched.Next(t)
		if t.IsZero() {
			break
		}
		out = append(out, t)
	}
	return out, nil
}

// PreviewNextRuns is NextRuns from now in the scheduler's timezone.
func (s *Service) PreviewNextRuns(expr string, n int) ([]time.Time, error) {
	s.mu.Lock()
	loc, now := s.loc, s.now()
	s.mu.Unlock()
	return NextRuns(expr, now, loc, n)
}

func formatRuns(ts []time.Time) string {
	var b strings.Builder
	for i, t := range ts {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(t.Format("2006-01-02 15:04:05"))
	}
	return b.String()
}
