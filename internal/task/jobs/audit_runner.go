package jobs

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"seojobs/internal/domain"
	logx "seojobs/pkg/logx"
)

type AuditConfig struct {
	BatchLimit int           // default 50
	ItemDelay  time.Duration // default 2s
}

func (c AuditConfig) withDefaults() AuditConfig {
	if c.BatchLimit <= 0 {
		c.BatchLimit = 50
	}
	if c.ItemDelay < 0 {
		c.ItemDelay = 0
	} else if c.ItemDelay == 0 {
		c.ItemDelay = 2 * time.Second
	}
	return c
}

// AuditSummary is the details payload of one audit run.
type AuditSummary struct {
	CompaniesProcessed int           `json:"companiesProcessed"`
	Successful         int           `json:"successful"`
	Failed             int           `json:"failed"`
	Results            []AuditResult `json:"results"`
}

type AuditResult struct {
	CompanyID   int64           `json:"companyId"`
	CompanyName string          `json:"companyName"`
	Status      string          `json:"status"`
	Priority    domain.Priority `json:"priority,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// AuditRunner audits every opted-in company's website.
type AuditRunner struct {
	store   AuditStore
	perf    PerformanceAuditor
	signals SignalAnalyzer
	cfg     AuditConfig
	log     logx.Logger
	now     func() time.Time

	guard guard
}

func NewAuditRunner(store AuditStore, perf PerformanceAuditor, signals SignalAnalyzer, cfg AuditConfig, log logx.Logger) *AuditRunner {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &AuditRunner{
		store:   store,
		perf:    perf,
		signals: signals,
		cfg:     cfg.withDefaults(),
		log:     log.With(logx.String("job", AuditRunnerJob)),
		now:     time.Now,
	}
}

// Run adapts Execute to the scheduler handler signature.
func (r *AuditRunner) Run(ctx context.Context) (any, error) {
	sum, err := r.Execute(ctx)
	if sum == nil {
		return nil, err
	}
	return sum, err
}

// Running reports whether a run is in progress.
func (r *AuditRunner) Running() bool { return r.guard.Running() }

// Execute audits one batch. It returns (nil, nil) without doing anything when a
// run is already in progress. A batch-level failure is logged, recorded and
// returned.
func (r *AuditRunner) Execute(ctx context.Context) (*AuditSummary, error) {
	if !r.guard.tryAcquire() {
		r.log.Debug("run skipped; already in progress")
		return nil, nil
	}
	defer r.guard.release()

	start := r.now()
	r.log.Info("audit run started")

	sum, err := r.runBatch(ctx)
	end := r.now()
	if err != nil {
		r.log.Error("audit run failed", logx.Err(err), logx.Duration("dur", end.Sub(start)))
		recordExecution(ctx, r.store, r.log, domain.JobExecution{
			JobName: AuditRunnerJob, StartTime: start, EndTime: end, Status: statusFailed, Details: err.Error(),
		})
		return sum, err
	}

	r.log.Info("audit run completed",
		logx.Int("processed", sum.CompaniesProcessed),
		logx.Int("successful", sum.Successful),
		logx.Int("failed", sum.Failed),
		logx.Duration("dur", end.Sub(start)),
	)
	recordExecution(ctx, r.store, r.log, domain.JobExecution{
		JobName: AuditRunnerJob, StartTime: start, EndTime: end, Status: statusSuccess, Details: sum,
	})
	return sum, nil
}

func (r *AuditRunner) runBatch(ctx context.Context) (*AuditSummary, error) {
	companies, err := r.store.CompaniesForAudit(ctx, r.cfg.BatchLimit)
	if err != nil {
		return nil, errors.Wrap(err, "fetch companies for audit")
	}
	sum := &AuditSummary{CompaniesProcessed: len(companies), Results: make([]AuditResult, 0, len(companies))}
	if len(companies) == 0 {
		r.log.Info("no companies scheduled for audit")
		return sum, nil
	}

	pace := newPacer(r.cfg.ItemDelay)
	for i, c := range companies {
		if err := pace.wait(ctx); err != nil {
			return sum, errors.Wrapf(err, "audit batch interrupted after %d of %d companies", i, len(companies))
		}
		res := r.auditOne(ctx, c)
		if res.Status == statusSuccess {
			sum.Successful++
		} else {
			sum.Failed++
		}
		sum.Results = append(sum.Results, res)
	}
	return sum, nil
}

func (r *AuditRunner) auditOne(ctx context.Context, c domain.Company) AuditResult {
	res := AuditResult{CompanyID: c.ID, CompanyName: c.Name}
	fail := func(err error) AuditResult {
		res.Status = statusFailed
		res.Error = err.Error()
		r.log.Warn("company audit failed", logx.Int64("company_id", c.ID), logx.String("company", c.Name), logx.Err(err))
		return res
	}

	perf, err := r.perf.Audit(ctx, c.Website)
	if err != nil {
		return fail(errors.Wrap(err, "performance audit"))
	}
	eeat, err := r.signals.Analyze(ctx, c.Website)
	if err != nil {
		return fail(errors.Wrap(err, "signal analysis"))
	}

	audit := domain.Audit{
		CompanyID:       c.ID,
		AuditDate:       r.now(),
		Performance:     perf,
		EEAT:            eeat,
		Recommendations: AuditRecommendations(perf, eeat),
		Priority:        CalculatePriority(perf, eeat),
	}
	if err := r.store.InsertAudit(ctx, audit); err != nil {
		return fail(err)
	}
	if err := r.store.TouchCompany(ctx, c.ID); err != nil {
		r.log.Debug("company touch failed", logx.Int64("company_id", c.ID), logx.Err(err))
	}

	res.Status = statusSuccess
	res.Priority = audit.Priority
	r.log.Debug("company audited",
		logx.Int64("company_id", c.ID),
		logx.Float64("performance", perf.Mean()),
		logx.Float64("eeat", eeat.Mean()),
		logx.String("priority", string(audit.Priority)),
	)
	return res
}

// Close releases the runner's store.
func (r *AuditRunner) Close() error { return r.store.Close() }

// CalculatePriority maps the mean of the two score-set means onto the ladder
// <60 critical, <75 high, <85 medium, otherwise low.
func CalculatePriority(perf domain.PerformanceScores, eeat domain.EEATScores) domain.Priority {
	overall := (perf.Mean() + eeat.Mean()) / 2
	switch {
	case overall < 60:
		return domain.PriorityCritical
	case overall < 75:
		return domain.PriorityHigh
	case overall < 85:
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}

// AuditRecommendations applies the fixed per-score thresholds.
func AuditRecommendations(perf domain.PerformanceScores, eeat domain.EEATScores) []string {
	rules := []struct {
		hit bool
		msg string
	}{
		{perf.Performance < 80, "Optimize page load speed and performance"},
		{perf.Accessibility < 85, "Improve accessibility for better user experience"},
		{perf.SEO < 90, "Implement SEO best practices"},
		{eeat.Experience < 75, "Add more experience-based content and case studies"},
		{eeat.Expertise < 75, "Showcase team expertise and credentials"},
		{eeat.Authoritativeness < 75, "Build authority through backlinks and citations"},
		{eeat.Trustworthiness < 75, "Improve trust signals (reviews, testimonials, security)"},
	}
	out := []string{}
	for _, r := range rules {
		if r.hit {
			out = append(out, r.msg)
		}
	}
	return out
}
