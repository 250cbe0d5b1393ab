package config

import (
	"strings"

	"github.com/cockroachdb/errors"

	"seojobs/internal/task/scheduler"
)

// Validate rejects configs the app could not apply: unknown jobs, bad
// schedules, bad durations and negative limits.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	for name := range cfg.Jobs {
		if _, ok := DefaultJobs[name]; !ok {
			return errors.WithHintf(errors.Newf("jobs.%s: unknown job", name), "known jobs: %s", strings.Join(JobNames(), ", "))
		}
	}
	for _, name := range JobNames() {
		expr, _ := cfg.Job(name)
		if err := scheduler.ValidateSchedule(expr); err != nil {
			return errors.Wrapf(err, "jobs.%s.schedule", name)
		}
	}

	durations := []struct{ path, raw string }{
		{"scheduler.job_timeout", cfg.Scheduler.JobTimeout},
		{"storage.busy_timeout", cfg.Storage.BusyTimeout},
		{"services.pagespeed.timeout", cfg.Services.PageSpeed.Timeout},
		{"services.signals.timeout", cfg.Services.Signals.Timeout},
		{"services.serp.timeout", cfg.Services.Serp.Timeout},
		{"services.slack.dedup_window", cfg.Services.Slack.DedupWindow},
	}
	for _, d := range durations {
		if _, err := ParseDurationField(d.path, d.raw); err != nil {
			return err
		}
	}
	handlers := []struct {
		path string
		h    HandlerConfig
	}{
		{"handlers.audit", cfg.Handlers.Audit},
		{"handlers.ranking", cfg.Handlers.Ranking},
		{"handlers.report", cfg.Handlers.Report},
	}
	for _, h := range handlers {
		if h.h.BatchLimit < 0 {
			return errors.Newf("%s.batch_limit: must be >= 0", h.path)
		}
		if _, err := ParseItemDelay(h.path+".item_delay", h.h.ItemDelay); err != nil {
			return err
		}
	}

	if cfg.Logging.File.MaxSizeMB < 0 || cfg.Logging.File.MaxBackups < 0 {
		return errors.New("logging.file: max_size_mb and max_backups must be >= 0")
	}
	if cfg.Scheduler.HistorySize < 0 {
		return errors.New("scheduler.history_size: must be >= 0")
	}
	if cfg.Handlers.SignificantChange < 0 || cfg.Handlers.AlertChange < 0 {
		return errors.New("handlers: significant_change and alert_change must be >= 0")
	}
	if s, a := cfg.Handlers.SignificantChange, cfg.Handlers.AlertChange; s > 0 && a > 0 && a < s {
		return errors.WithHint(errors.Newf("handlers.alert_change (%d) is below significant_change (%d)", a, s),
			"alerts are raised only for significant changes")
	}
	if p := cfg.Services.SMTP.Port; p < 0 || p > 65535 {
		return errors.Newf("services.smtp.port: %d out of range", p)
	}
	return nil
}
