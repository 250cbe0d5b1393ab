package config

// Config is the whole seojobs configuration file. Durations are Go duration
// strings ("1500ms", "2s", "10m").
type Config struct {
	Logging   LoggingConfig        `json:"logging"`
	Scheduler SchedulerConfig      `json:"scheduler"`
	Storage   StorageConfig        `json:"storage"`
	Jobs      map[string]JobConfig `json:"jobs,omitempty"`
	Handlers  HandlersConfig       `json:"handlers"`
	Services  ServicesConfig       `json:"services"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
	// MaxSizeMB rotates the file past this size; 0 never rotates.
	MaxSizeMB  int `json:"max_size_mb,omitempty"`
	MaxBackups int `json:"max_backups,omitempty"`
}

type SchedulerConfig struct {
	// Timezone every schedule is evaluated in (default America/New_York).
	Timezone string `json:"timezone,omitempty"`
	// JobTimeout bounds one handler invocation; "" or "0s" disables.
	JobTimeout  string `json:"job_timeout,omitempty"`
	HistorySize int    `json:"history_size,omitempty"`
}

// StorageConfig selects the relational store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./seojobs.db", "busy_timeout": "5s" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// JobConfig overrides one job's defaults. Enabled is a pointer so an omitted
// key keeps the default.
type JobConfig struct {
	Enabled  *bool  `json:"enabled,omitempty"`
	Schedule string `json:"schedule,omitempty"`
}

type HandlerConfig struct {
	BatchLimit int `json:"batch_limit,omitempty"`
	// ItemDelay is the pause between items. "" keeps the handler default and
	// "off" disables it.
	ItemDelay string `json:"item_delay,omitempty"`
}

type HandlersConfig struct {
	Audit   HandlerConfig `json:"audit"`
	Ranking HandlerConfig `json:"ranking"`
	Report  HandlerConfig `json:"report"`

	SignificantChange int `json:"significant_change,omitempty"`
	AlertChange       int `json:"alert_change,omitempty"`
}

type ServicesConfig struct {
	PageSpeed PageSpeedConfig `json:"pagespeed"`
	Signals   SignalsConfig   `json:"signals"`
	Serp      SerpConfig      `json:"serp"`
	SMTP      SMTPConfig      `json:"smtp"`
	Slack     SlackConfig     `json:"slack"`
}

type PageSpeedConfig struct {
	Endpoint   string  `json:"endpoint,omitempty"`
	APIKey     string  `json:"api_key,omitempty"`
	Strategy   string  `json:"strategy,omitempty"`
	Timeout    string  `json:"timeout,omitempty"`
	RatePerSec float64 `json:"rate_per_sec,omitempty"`
}

type SignalsConfig struct {
	Endpoint string `json:"endpoint,omitempty"`
	APIKey   string `json:"api_key,omitempty"`
	Timeout  string `json:"timeout,omitempty"`
}

type SerpConfig struct {
	Endpoint   string  `json:"endpoint,omitempty"`
	APIKey     string  `json:"api_key,omitempty"`
	Num        int     `json:"num,omitempty"`
	Country    string  `json:"country,omitempty"`
	Language   string  `json:"language,omitempty"`
	Timeout    string  `json:"timeout,omitempty"`
	RatePerSec float64 `json:"rate_per_sec,omitempty"`
}

type SMTPConfig struct {
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	From     string `json:"from,omitempty"`
}

type SlackConfig struct {
	WebhookURL string `json:"webhook_url,omitempty"`
	Token      string `json:"token,omitempty"`
	Channel    string `json:"channel,omitempty"`
	// DedupWindow suppresses repeats of the same rank move (default "6h").
	DedupWindow string `json:"dedup_window,omitempty"`
}
