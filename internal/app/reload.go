package app

import (
	"context"
	"strings"

	"seojobs/internal/config"
	logx "seojobs/pkg/logx"
)

func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config in the channel.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}
			if newCfg == nil {
				continue
			}
			a.applyConfig(lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

// applyConfig applies the live parts of newCfg: logging, job schedules and
// enabled flags, and the job timeout. Everything else needs a restart.
func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	sections, attrs, _ := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)

	if restart := config.RestartRequired(sections); len(restart) > 0 {
		a.log.Warn("config changed; restart required for changes to take effect", logx.Strings("sections", restart))
	}

	a.logs.Apply(mapLoggingConfig(newCfg))

	for _, jc := range config.DiffJobs(oldCfg, newCfg) {
		log := a.log.With(logx.String("job", jc.Name))
		// Reschedule before enabling so a newly enabled job arms on its new trigger.
		if jc.ScheduleChanged {
			if err := a.sched.UpdateJobSchedule(jc.Name, jc.Schedule); err != nil {
				log.Warn("reschedule failed; keeping previous", logx.Err(err))
			}
		}
		if !jc.EnabledChanged {
			continue
		}
		var err error
		if jc.Enabled {
			err = a.sched.EnableJob(jc.Name)
		} else {
			err = a.sched.DisableJob(jc.Name)
		}
		if err != nil {
			log.Warn("toggle failed", logx.Bool("enabled", jc.Enabled), logx.Err(err))
		}
	}

	oldSched, newSched := oldCfg.Scheduler, newCfg.Scheduler
	if oldSched.JobTimeout != newSched.JobTimeout {
		if sc, err := mapSchedulerConfig(newCfg); err != nil {
			a.log.Warn("invalid scheduler.job_timeout; keeping previous", logx.Err(err))
		} else {
			a.sched.SetJobTimeout(sc.JobTimeout)
		}
	}
	if oldSched.Timezone != newSched.Timezone || oldSched.HistorySize != newSched.HistorySize {
		a.log.Warn("scheduler timezone and history_size apply on restart")
	}

	a.log.Info("config reloaded", fields...)
}
