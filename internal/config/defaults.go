package config

import (
	"sort"
	"strings"

	"seojobs/internal/task/jobs"
)

// JobDefault is the built-in schedule of a known job.
type JobDefault struct {
	Schedule string
	Enabled  bool
}

// DefaultJobs are the jobs seojobs registers. The hourly priority tracker is
// off until configured.
var DefaultJobs = map[string]JobDefault{
	jobs.AuditRunnerJob:          {Schedule: "0 2 * * *", Enabled: true},
	jobs.RankingTrackerJob:       {Schedule: "0 3 * * *", Enabled: true},
	jobs.ReportGeneratorJob:      {Schedule: "0 8 * * 1", Enabled: true},
	jobs.RankingTrackerHourlyJob: {Schedule: "0 * * * *", Enabled: false},
}

// JobNames lists DefaultJobs sorted by name.
func JobNames() []string {
	out := make([]string, 0, len(DefaultJobs))
	for n := range DefaultJobs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Job resolves one job's effective schedule and enabled flag.
func (c *Config) Job(name string) (schedule string, enabled bool) {
	d := DefaultJobs[name]
	schedule, enabled = d.Schedule, d.Enabled
	if c == nil {
		return schedule, enabled
	}
	if o, ok := c.Jobs[name]; ok {
		if s := strings.TrimSpace(o.Schedule); s != "" {
			schedule = s
		}
		if o.Enabled != nil {
			enabled = *o.Enabled
		}
	}
	return schedule, enabled
}
