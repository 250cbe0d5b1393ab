package app

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"seojobs/internal/config"
	"seojobs/internal/services/notify"
	"seojobs/internal/services/pagespeed"
	"seojobs/internal/services/serp"
	"seojobs/internal/services/signals"
	"seojobs/internal/storage"
	"seojobs/internal/task/jobs"
	"seojobs/internal/task/scheduler"
	logx "seojobs/pkg/logx"
)

const defaultDBPath = "./data/seojobs.db"

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled:    cfg.Logging.File.Enabled,
			Path:       cfg.Logging.File.Path,
			MaxBytes:   int64(cfg.Logging.File.MaxSizeMB) << 20,
			MaxBackups: cfg.Logging.File.MaxBackups,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	path := strings.TrimSpace(sc.Path)
	if path == "" {
		path = defaultDBPath
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, 5*time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{Driver: sc.Driver, Path: path, BusyTimeout: busy}, nil
}

func mapSchedulerConfig(cfg *config.Config) (scheduler.Config, error) {
	timeout, err := config.ParseDurationOrDefault("scheduler.job_timeout", cfg.Scheduler.JobTimeout, 0)
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{
		Timezone:    cfg.Scheduler.Timezone,
		JobTimeout:  timeout,
		HistorySize: cfg.Scheduler.HistorySize,
	}, nil
}

func mapAuditConfig(cfg *config.Config) (jobs.AuditConfig, error) {
	h := cfg.Handlers.Audit
	delay, err := config.ParseItemDelay("handlers.audit.item_delay", h.ItemDelay)
	if err != nil {
		return jobs.AuditConfig{}, err
	}
	return jobs.AuditConfig{BatchLimit: h.BatchLimit, ItemDelay: delay}, nil
}

func mapRankingConfig(cfg *config.Config) (jobs.RankingConfig, error) {
	h := cfg.Handlers.Ranking
	delay, err := config.ParseItemDelay("handlers.ranking.item_delay", h.ItemDelay)
	if err != nil {
		return jobs.RankingConfig{}, err
	}
	return jobs.RankingConfig{
		BatchLimit:        h.BatchLimit,
		ItemDelay:         delay,
		SignificantChange: cfg.Handlers.SignificantChange,
		AlertChange:       cfg.Handlers.AlertChange,
	}, nil
}

func mapReportConfig(cfg *config.Config, loc *time.Location) (jobs.ReportConfig, error) {
	h := cfg.Handlers.Report
	delay, err := config.ParseItemDelay("handlers.report.item_delay", h.ItemDelay)
	if err != nil {
		return jobs.ReportConfig{}, err
	}
	return jobs.ReportConfig{BatchLimit: h.BatchLimit, ItemDelay: delay, Location: loc}, nil
}

// clients holds the outbound integrations shared by the handlers.
type clients struct {
	pagespeed *pagespeed.Client
	signals   *signals.Client
	serp      *serp.Client
	mailer    jobs.Mailer
	alerts    jobs.AlertSink // final delivery target of the alert forwarder
	forward   notify.ForwarderConfig
}

func buildClients(cfg *config.Config, log logx.Logger) (*clients, error) {
	s := cfg.Services
	var out clients

	psTimeout, err := config.ParseDurationOrDefault("services.pagespeed.timeout", s.PageSpeed.Timeout, 0)
	if err != nil {
		return nil, err
	}
	out.pagespeed = pagespeed.New(pagespeed.Config{
		Endpoint:   s.PageSpeed.Endpoint,
		APIKey:     s.PageSpeed.APIKey,
		Strategy:   s.PageSpeed.Strategy,
		Timeout:    psTimeout,
		RatePerSec: s.PageSpeed.RatePerSec,
	}, log.With(logx.String("comp", "pagespeed")))

	sigTimeout, err := config.ParseDurationOrDefault("services.signals.timeout", s.Signals.Timeout, 0)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(s.Signals.Endpoint) == "" {
		log.Warn("services.signals.endpoint not set; every audit will fail until it is configured")
	}
	out.signals = signals.New(signals.Config{
		Endpoint: s.Signals.Endpoint,
		APIKey:   s.Signals.APIKey,
		Timeout:  sigTimeout,
	}, log.With(logx.String("comp", "signals")))

	serpTimeout, err := config.ParseDurationOrDefault("services.serp.timeout", s.Serp.Timeout, 0)
	if err != nil {
		return nil, err
	}
	out.serp = serp.New(serp.Config{
		Endpoint:   s.Serp.Endpoint,
		APIKey:     s.Serp.APIKey,
		Num:        s.Serp.Num,
		Country:    s.Serp.Country,
		Language:   s.Serp.Language,
		Timeout:    serpTimeout,
		RatePerSec: s.Serp.RatePerSec,
	}, log.With(logx.String("comp", "serp")))

	smtpCfg := notify.SMTPConfig{
		Host:     s.SMTP.Host,
		Port:     s.SMTP.Port,
		Username: s.SMTP.Username,
		Password: s.SMTP.Password,
		From:     s.SMTP.From,
	}
	if smtpCfg.Configured() {
		out.mailer = notify.NewSMTPMailer(smtpCfg, log.With(logx.String("comp", "mail")))
	} else {
		log.Info("smtp not configured; report emails are logged only")
		out.mailer = notify.LogMailer{Log: log.With(logx.String("comp", "mail"))}
	}

	slackCfg := notify.SlackConfig{
		WebhookURL: s.Slack.WebhookURL,
		Token:      s.Slack.Token,
		Channel:    s.Slack.Channel,
	}
	if slackCfg.Configured() {
		sa, err := notify.NewSlackAlerter(slackCfg)
		if err != nil {
			return nil, errors.Wrap(err, "slack")
		}
		out.alerts = sa
	} else {
		out.alerts = notify.LogAlerter{Log: log.With(logx.String("comp", "alerts"))}
	}
	window, err := config.ParseDurationOrDefault("services.slack.dedup_window", s.Slack.DedupWindow, 0)
	if err != nil {
		return nil, err
	}
	out.forward = notify.ForwarderConfig{DedupWindow: window}
	return &out, nil
}
