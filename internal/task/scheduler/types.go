package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"

	"seojobs/internal/eventbus"
	logx "seojobs/pkg/logx"
)

var (
	ErrJobNotFound     = errors.New("job not found")
	ErrInvalidSchedule = errors.New("invalid schedule")
	ErrJobExists       = errors.New("job already registered")
)

const (
	DefaultHistorySize = 100
	DefaultTimezone    = "America/New_York"
	defaultHistoryRead = 20
	recentPerJob       = 5
)

// Handler is one unit of work. details is the handler's summary payload and is
// recorded on success only.
type Handler func(ctx context.Context) (details any, err error)

// Config controls the scheduler.
type Config struct {
	Timezone    string        // IANA TZ; invalid values fall back to Local
	JobTimeout  time.Duration // per-invocation deadline; 0 disables
	HistorySize int           // ring capacity (default 100)
}

type Status string

const (
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Terminal reports whether s is success or failed.
func (s Status) Terminal() bool { return s == StatusSuccess || s == StatusFailed }

type TriggerKind string

const (
	TriggerSchedule TriggerKind = "schedule"
	TriggerManual   TriggerKind = "manual"
)

// Execution is one history entry. Values returned by the Service are copies.
type Execution struct {
	ID        string      `json:"id"`
	JobName   string      `json:"jobName"`
	Trigger   TriggerKind `json:"trigger"`
	StartTime time.Time   `json:"startTime"`
	EndTime   time.Time   `json:"endTime,omitempty"`
	Status    Status      `json:"status"`
	Error     string      `json:"error,omitempty"`
	Details   any         `json:"details,omitempty"`
}

// Duration is zero while the execution is running.
func (e Execution) Duration() time.Duration {
	if e.EndTime.IsZero() {
		return 0
	}
	return e.EndTime.Sub(e.StartTime)
}

// JobStatus is the single-job view.
type JobStatus struct {
	Name     string
	Schedule string
	Enabled  bool
	Armed    bool
	Next     time.Time
	// Up to 5 entries of this job, in ring (insertion) order.
	Recent []Execution
}

// JobSummary is one row of AllJobStatus.
type JobSummary struct {
	Name     string
	Schedule string
	Enabled  bool
	Armed    bool
	Next     time.Time
	// The entry with the latest StartTime; nil when the job never ran.
	LastExecution *Execution
}

type jobRecord struct {
	name     string
	schedule string
	sched    cron.Schedule
	enabled  bool
	handler  Handler
	entryID  cron.EntryID // 0 when disarmed
}

// Event types published on the bus.
const (
	EventJobStarted  = "job.started"
	EventJobFinished = "job.finished"
)

type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	loc *time.Location
	bus eventbus.Bus
	now func() time.Time

	parser cron.Parser
	c      *cron.Cron

	jobs    map[string]*jobRecord
	history []Execution

	// base is the parent context of cron-fired runs; cancelled by Close.
	base   context.Context
	cancel context.CancelFunc
	closed bool
	// held keeps triggers disarmed until the first StartAll.
	held bool
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now for execution timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithHeldStart registers enabled jobs without arming them. Nothing fires
// until StartAll.
func WithHeldStart() Option {
	return func(s *Service) { s.held = true }
}

// WithBus publishes job lifecycle events to bus.
func WithBus(bus eventbus.Bus) Option {
	return func(s *Service) { s.bus = bus }
}

func wrapNotFound(name string) error { return errors.Wrapf(ErrJobNotFound, "%q", name) }
