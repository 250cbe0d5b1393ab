package config

import (
	"reflect"
	"sort"
	"strings"

	logx "seojobs/pkg/logx"
)

// JobChange is one job whose effective schedule or enabled flag differs.
type JobChange struct {
	Name            string
	Schedule        string
	Enabled         bool
	ScheduleChanged bool
	EnabledChanged  bool
}

// DiffJobs compares the effective settings of every known job.
func DiffJobs(oldCfg, newCfg *Config) []JobChange {
	var out []JobChange
	for _, name := range JobNames() {
		oldSched, oldOn := oldCfg.Job(name)
		newSched, newOn := newCfg.Job(name)
		if oldSched == newSched && oldOn == newOn {
			continue
		}
		out = append(out, JobChange{
			Name:            name,
			Schedule:        newSched,
			Enabled:         newOn,
			ScheduleChanged: oldSched != newSched,
			EnabledChanged:  oldOn != newOn,
		})
	}
	return out
}

// SummarizeConfigChange returns (1) the changed top-level sections, (2) safe
// structured attrs for logging (never secrets) and (3) the jobs that changed.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.String("scheduler.timezone", strings.TrimSpace(newCfg.Scheduler.Timezone)),
			logx.String("scheduler.job_timeout", strings.TrimSpace(newCfg.Scheduler.JobTimeout)),
			logx.Int("scheduler.history_size", newCfg.Scheduler.HistorySize),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(newCfg.Storage.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(newCfg.Storage.Path) != ""),
			logx.String("storage.busy_timeout", strings.TrimSpace(newCfg.Storage.BusyTimeout)),
		)
	}

	jobChanges := DiffJobs(oldCfg, newCfg)
	jobNames := make([]string, 0, len(jobChanges))
	for _, jc := range jobChanges {
		jobNames = append(jobNames, jc.Name)
	}
	if len(jobNames) > 0 {
		changed = append(changed, "jobs")
		attrs = append(attrs, logx.Strings("jobs.changed", jobNames))
	}

	if oldCfg.Handlers != newCfg.Handlers {
		changed = append(changed, "handlers")
		attrs = append(attrs,
			logx.Int("handlers.audit.batch_limit", newCfg.Handlers.Audit.BatchLimit),
			logx.Int("handlers.ranking.batch_limit", newCfg.Handlers.Ranking.BatchLimit),
			logx.Int("handlers.report.batch_limit", newCfg.Handlers.Report.BatchLimit),
			logx.Int("handlers.alert_change", newCfg.Handlers.AlertChange),
		)
	}

	if !reflect.DeepEqual(oldCfg.Services, newCfg.Services) {
		changed = append(changed, "services")
		s := newCfg.Services
		attrs = append(attrs,
			logx.Bool("services.pagespeed.key_set", s.PageSpeed.APIKey != ""),
			logx.Bool("services.signals.endpoint_set", s.Signals.Endpoint != ""),
			logx.Bool("services.serp.key_set", s.Serp.APIKey != ""),
			logx.Bool("services.smtp.host_set", s.SMTP.Host != ""),
			logx.Bool("services.slack.set", s.Slack.WebhookURL != "" || s.Slack.Token != ""),
		)
	}

	sort.Strings(changed)
	return changed, attrs, jobNames
}

// RestartRequired lists changed sections that only take effect on restart.
// Handlers and services are built once at startup.
func RestartRequired(changed []string) []string {
	var out []string
	for _, c := range changed {
		switch c {
		case "storage", "handlers", "services":
			out = append(out, c)
		}
	}
	return out
}
