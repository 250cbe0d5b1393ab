package app

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"seojobs/internal/config"
	"seojobs/internal/domain"
	"seojobs/internal/eventbus"
	"seojobs/internal/services/notify"
	"seojobs/internal/storage"
	"seojobs/internal/task/jobs"
	"seojobs/internal/task/scheduler"
	logx "seojobs/pkg/logx"
)

var ErrAlreadyStarted = errors.New("app already started")

type App struct {
	cfgm *config.ConfigManager
	logs *logx.Service
	log  logx.Logger
	bus  eventbus.Bus

	sched *scheduler.Service
	// store serves execution log queries; every handler owns its own.
	store *storage.Store

	audit   *jobs.AuditRunner
	ranking *jobs.RankingTracker
	report  *jobs.ReportGenerator
	forward *notify.Forwarder

	mu      sync.Mutex
	started bool
	stopped bool
	runCtx  context.Context
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// NewApp loads cfgPath and wires every component. Jobs are registered but
// nothing fires until Start.
func NewApp(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, errors.Wrapf(err, "load config %s", cfgPath)
	}

	logs, log := logx.New(mapLoggingConfig(cfg))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	a := &App{cfgm: cfgm, logs: logs, log: log, bus: eventbus.New()}
	ok := false
	defer func() {
		if !ok {
			if a.sched != nil {
				a.sched.Close(context.Background())
			}
			_ = a.closeHandlers()
			_ = a.logs.Close()
		}
	}()

	schedCfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		return nil, err
	}
	a.sched = scheduler.New(schedCfg, log.With(logx.String("comp", "scheduler")), scheduler.WithBus(a.bus), scheduler.WithHeldStart())

	if err := a.wireHandlers(ctx, cfg); err != nil {
		return nil, err
	}

	handlers := map[string]scheduler.Handler{
		jobs.AuditRunnerJob:          a.audit.Run,
		jobs.RankingTrackerJob:       a.ranking.Run,
		jobs.RankingTrackerHourlyJob: a.ranking.RunHighPriority,
		jobs.ReportGeneratorJob:      a.report.Run,
	}
	for _, name := range config.JobNames() {
		schedule, enabled := cfg.Job(name)
		if err := a.sched.RegisterJob(name, schedule, handlers[name], enabled); err != nil {
			return nil, errors.Wrapf(err, "register %s", name)
		}
	}

	ok = true
	return a, nil
}

func (a *App) wireHandlers(ctx context.Context, cfg *config.Config) error {
	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return err
	}
	if sc.Path == ":memory:" {
		a.log.Warn("in-memory storage gives every handler a separate empty database")
	}
	open := func(owner string) (*storage.Store, error) {
		st, err := storage.Open(ctx, sc, a.log.With(logx.String("comp", "storage"), logx.String("owner", owner)))
		if err != nil {
			return nil, errors.Wrapf(err, "open storage for %s", owner)
		}
		return st, nil
	}

	cl, err := buildClients(cfg, a.log)
	if err != nil {
		return err
	}

	if a.store, err = open("app"); err != nil {
		return err
	}

	auditCfg, err := mapAuditConfig(cfg)
	if err != nil {
		return err
	}
	auditStore, err := open(jobs.AuditRunnerJob)
	if err != nil {
		return err
	}
	a.audit = jobs.NewAuditRunner(auditStore, cl.pagespeed, cl.signals, auditCfg, a.log.With(logx.String("comp", "audit")))

	rankCfg, err := mapRankingConfig(cfg)
	if err != nil {
		return err
	}
	rankStore, err := open(jobs.RankingTrackerJob)
	if err != nil {
		return err
	}
	a.ranking = jobs.NewRankingTracker(rankStore, cl.serp, notify.BusAlerter{Bus: a.bus}, rankCfg, a.log.With(logx.String("comp", "ranking")))

	reportCfg, err := mapReportConfig(cfg, a.sched.Location())
	if err != nil {
		return err
	}
	reportStore, err := open(jobs.ReportGeneratorJob)
	if err != nil {
		return err
	}
	a.report = jobs.NewReportGenerator(reportStore, cl.mailer, reportCfg, a.log.With(logx.String("comp", "report")))

	a.forward = notify.NewForwarder(cl.alerts, cl.forward, a.log)
	return nil
}

// Logger is the root logger; its level follows config reloads.
func (a *App) Logger() logx.Logger { return a.log }

// Config is the last applied configuration.
func (a *App) Config() *config.Config { return a.cfgm.Get() }

// Start arms the enabled jobs and runs the background loops: config watch and
// reload, alert forwarding and job activity logging.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return ErrAlreadyStarted
	}
	a.started = true
	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	a.runCtx, a.cancel, a.group = gctx, cancel, g
	a.mu.Unlock()

	alerts, unsubAlerts := a.bus.Subscribe(64, jobs.EventRankAlert)
	g.Go(func() error {
		defer unsubAlerts()
		return a.forward.Run(gctx, alerts)
	})

	activity, unsubActivity := a.bus.Subscribe(64, scheduler.EventJobStarted, scheduler.EventJobFinished)
	g.Go(func() error {
		defer unsubActivity()
		a.logActivity(gctx, activity)
		return nil
	})

	sub := a.cfgm.Subscribe(8)
	g.Go(func() error {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(gctx, sub)
		return nil
	})
	g.Go(func() error { return a.cfgm.Watch(gctx) })

	a.sched.StartAll()
	snap := a.sched.Snapshot()
	a.log.Info("app started",
		logx.String("tz", snap.Timezone),
		logx.Int("jobs", len(snap.Schedules)),
		logx.String("config", a.cfgm.Path()),
	)
	return nil
}

// Done is closed when the app context ends, either through Stop or because a
// background loop failed. It is nil before Start.
func (a *App) Done() <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runCtx == nil {
		return nil
	}
	return a.runCtx.Done()
}

// failureStreakWarn is the number of consecutive failed runs of one job that
// raises a warning.
const failureStreakWarn = 3

// logActivity traces bus events and warns when a job keeps failing. The
// scheduler logs each run itself.
func (a *App) logActivity(ctx context.Context, events <-chan eventbus.Event) {
	streak := map[string]int{}
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			exec, ok := e.Data.(scheduler.Execution)
			if !ok || e.Type != scheduler.EventJobFinished {
				continue
			}
			if exec.Status != scheduler.StatusFailed {
				if streak[exec.JobName] >= failureStreakWarn {
					a.log.Info("job recovered", logx.String("job", exec.JobName), logx.Int("failed_runs", streak[exec.JobName]))
				}
				delete(streak, exec.JobName)
				continue
			}
			streak[exec.JobName]++
			if n := streak[exec.JobName]; n >= failureStreakWarn {
				a.log.Warn("job failing repeatedly", logx.String("job", exec.JobName), logx.Int("consecutive", n), logx.String("err", exec.Error))
			}
		}
	}
}

// Trigger runs one job now. Before Start it forwards the alerts of this run
// itself so a one-off invocation still delivers them; it must not overlap
// Start in that mode.
func (a *App) Trigger(ctx context.Context, name string) (scheduler.Execution, error) {
	a.mu.Lock()
	started := a.started
	a.mu.Unlock()
	if started {
		return a.sched.TriggerJob(ctx, name)
	}

	alerts, unsub := a.bus.Subscribe(64, jobs.EventRankAlert)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = a.forward.Run(context.WithoutCancel(ctx), alerts)
	}()
	exec, err := a.sched.TriggerJob(ctx, name)
	// Closing the subscription lets the forwarder drain what was queued.
	unsub()
	<-done
	return exec, err
}

// Jobs lists every registered job sorted by name.
func (a *App) Jobs() []scheduler.JobSummary { return a.sched.AllJobStatus() }

func (a *App) Snapshot() scheduler.Snapshot { return a.sched.Snapshot() }

// History reads the persisted execution log, newest first. An empty job name
// means every job.
func (a *App) History(ctx context.Context, job string, limit int) ([]domain.JobExecution, error) {
	return a.store.RecentJobExecutions(ctx, job, limit)
}

// Stop shuts down in order: scheduler (waiting for in-flight runs), background
// loops, then handler stores and logging. Each step is bounded so one stuck
// component cannot stall the rest. Stop is idempotent.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return nil
	}
	a.stopped = true
	cancel, g := a.cancel, a.group
	a.mu.Unlock()

	a.log.Info("stopping", logx.String("reason", string(reason)))

	var errs error
	errs = errors.CombineErrors(errs, a.step(ctx, "scheduler", 5*time.Second, func(c context.Context) error {
		a.sched.StopAll()
		a.sched.Close(c)
		return nil
	}))
	if cancel != nil {
		cancel()
	}
	if g != nil {
		errs = errors.CombineErrors(errs, a.step(ctx, "background", 2*time.Second, func(c context.Context) error {
			if err := waitGroup(c, g); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		}))
	}
	errs = errors.CombineErrors(errs, a.step(ctx, "storage", time.Second, func(context.Context) error {
		return a.closeHandlers()
	}))

	warnings, errCount := a.logs.Counts()
	a.log.Info("stopped", logx.Int64("warnings", int64(warnings)), logx.Int64("errors", int64(errCount)))
	_ = a.logs.Close()
	return errs
}

// step runs fn with at most max of the caller's remaining deadline and returns
// its error. A step that overruns is logged and left behind.
func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) error {
	start := time.Now()
	if dl, ok := ctx.Deadline(); ok {
		max = min(max, time.Until(dl))
	}
	if max <= 0 {
		a.log.Warn("stop step skipped; deadline reached", logx.String("name", name))
		return nil
	}
	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- errors.Newf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			return errors.Wrapf(err, "stop %s", name)
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		return nil
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		return nil
	}
}

func waitGroup(ctx context.Context, g *errgroup.Group) error {
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *App) closeHandlers() error {
	var errs error
	if a.audit != nil {
		errs = errors.CombineErrors(errs, a.audit.Close())
	}
	if a.ranking != nil {
		errs = errors.CombineErrors(errs, a.ranking.Close())
	}
	if a.report != nil {
		errs = errors.CombineErrors(errs, a.report.Close())
	}
	if a.store != nil {
		errs = errors.CombineErrors(errs, a.store.Close())
	}
	return errs
}
