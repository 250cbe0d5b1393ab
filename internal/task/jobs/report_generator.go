package jobs

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"seojobs/internal/domain"
	logx "seojobs/pkg/logx"
)

type ReportConfig struct {
	BatchLimit int           // default 50
	ItemDelay  time.Duration // 0 means no pause
	// Location is the timezone the reporting week is cut in (default Local).
	Location *time.Location
}

func (c ReportConfig) withDefaults() ReportConfig {
	if c.BatchLimit <= 0 {
		c.BatchLimit = 50
	}
	if c.ItemDelay < 0 {
		c.ItemDelay = 0
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	return c
}

// ReportSummary is the details payload of one report run.
type ReportSummary struct {
	CompaniesProcessed int       `json:"companiesProcessed"`
	ReportsGenerated   int       `json:"reportsGenerated"`
	Failed             int       `json:"failed"`
	EmailsSent         int       `json:"emailsSent"`
	WeekStart          time.Time `json:"weekStart"`
	WeekEnd            time.Time `json:"weekEnd"`
}

// ReportGenerator builds the weekly report of every company not opted out.
type ReportGenerator struct {
	store  ReportStore
	mailer Mailer
	cfg    ReportConfig
	log    logx.Logger
	now    func() time.Time

	guard guard
}

// NewReportGenerator builds a generator. mailer may be nil, which skips email.
func NewReportGenerator(store ReportStore, mailer Mailer, cfg ReportConfig, log logx.Logger) *ReportGenerator {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &ReportGenerator{
		store:  store,
		mailer: mailer,
		cfg:    cfg.withDefaults(),
		log:    log.With(logx.String("job", ReportGeneratorJob)),
		now:    time.Now,
	}
}

func (g *ReportGenerator) Run(ctx context.Context) (any, error) {
	sum := g.Execute(ctx)
	if sum == nil {
		return nil, nil
	}
	return sum, nil
}

func (g *ReportGenerator) Running() bool { return g.guard.Running() }

// Execute generates one batch of weekly reports. Failures never propagate.
func (g *ReportGenerator) Execute(ctx context.Context) *ReportSummary {
	if !g.guard.tryAcquire() {
		g.log.Debug("run skipped; already in progress")
		return nil
	}
	defer g.guard.release()

	start := g.now()
	weekStart, weekEnd := LastWeekRange(start.In(g.cfg.Location))
	g.log.Info("report run started", logx.Time("week_start", weekStart), logx.Time("week_end", weekEnd))

	sum, err := g.run(ctx, weekStart, weekEnd)
	end := g.now()
	if err != nil {
		g.log.Error("report run failed", logx.Err(err), logx.Duration("dur", end.Sub(start)))
		recordExecution(ctx, g.store, g.log, domain.JobExecution{
			JobName: ReportGeneratorJob, StartTime: start, EndTime: end, Status: statusFailed, Details: err.Error(),
		})
		return sum
	}

	g.log.Info("report run completed",
		logx.Int("processed", sum.CompaniesProcessed),
		logx.Int("generated", sum.ReportsGenerated),
		logx.Int("failed", sum.Failed),
		logx.Duration("dur", end.Sub(start)),
	)
	recordExecution(ctx, g.store, g.log, domain.JobExecution{
		JobName: ReportGeneratorJob, StartTime: start, EndTime: end, Status: statusSuccess, Details: sum,
	})
	return sum
}

func (g *ReportGenerator) run(ctx context.Context, weekStart, weekEnd time.Time) (*ReportSummary, error) {
	sum := &ReportSummary{WeekStart: weekStart, WeekEnd: weekEnd}
	companies, err := g.store.CompaniesForReports(ctx, g.cfg.BatchLimit)
	if err != nil {
		return sum, errors.Wrap(err, "fetch companies for reports")
	}
	sum.CompaniesProcessed = len(companies)
	if len(companies) == 0 {
		g.log.Info("no companies for weekly reports")
		return sum, nil
	}

	pace := newPacer(g.cfg.ItemDelay)
	for i, c := range companies {
		if err := pace.wait(ctx); err != nil {
			return sum, errors.Wrapf(err, "report batch interrupted after %d of %d companies", i, len(companies))
		}
		sent, err := g.reportOne(ctx, c, weekStart, weekEnd)
		if err != nil {
			sum.Failed++
			g.log.Warn("company report failed", logx.Int64("company_id", c.ID), logx.String("company", c.Name), logx.Err(err))
			continue
		}
		sum.ReportsGenerated++
		if sent {
			sum.EmailsSent++
		}
	}
	return sum, nil
}

func (g *ReportGenerator) reportOne(ctx context.Context, c domain.Company, weekStart, weekEnd time.Time) (emailed bool, err error) {
	audits, err := g.store.AuditSummary(ctx, c.ID, weekStart, weekEnd)
	if err != nil {
		return false, err
	}
	rankings, err := g.store.RankingSummary(ctx, c.ID, weekStart, weekEnd)
	if err != nil {
		return false, err
	}
	metrics := CalculateMetrics(audits, rankings)
	report := domain.Report{
		CompanyID:       c.ID,
		CompanyName:     c.Name,
		ReportType:      "weekly",
		ReportDate:      g.now(),
		WeekStart:       weekStart,
		WeekEnd:         weekEnd,
		Metrics:         metrics,
		Recommendations: ReportRecommendations(metrics, audits),
		Audits:          audits,
		Rankings:        rankings,
	}
	if err := g.store.InsertReport(ctx, report); err != nil {
		return false, err
	}
	if c.Email == "" || g.mailer == nil {
		return false, nil
	}
	if err := g.mailer.Send(ctx, FormatReportEmail(c.Email, report)); err != nil {
		return false, errors.Wrapf(err, "email report to %s", c.Email)
	}
	return true, nil
}

func (g *ReportGenerator) Close() error { return g.store.Close() }

// LastWeekRange returns the most recently completed Monday..Sunday week before
// now, in now's location. weekStart is Monday 00:00:00 and weekEnd is Sunday
// 23:59:59.999999999.
func LastWeekRange(now time.Time) (weekStart, weekEnd time.Time) {
	back := int(now.Weekday()) // Sunday=0
	if back == 0 {
		// The current week ends today and is not complete yet.
		back = 7
	}
	sunday := now.AddDate(0, 0, -back)
	y, m, d := sunday.Date()
	weekEnd = time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), now.Location())
	weekStart = time.Date(y, m, d-6, 0, 0, 0, 0, now.Location())
	return weekStart, weekEnd
}

// CalculateMetrics derives the headline numbers of a report.
func CalculateMetrics(a domain.AuditSummary, r domain.RankingSummary) domain.WeeklyMetrics {
	return domain.WeeklyMetrics{
		TotalAudits:      a.TotalAudits,
		AverageScore:     round1((a.AvgPerformance + a.AvgAccessibility + a.AvgSEO) / 3),
		RankingsTracked:  r.KeywordsTracked,
		AverageRank:      round1(r.AvgRank),
		RankImprovements: r.Improvements,
		RankDeclines:     r.Declines,
		CriticalIssues:   a.CriticalIssues,
	}
}

// ReportRecommendations applies the fixed report rules in order.
func ReportRecommendations(m domain.WeeklyMetrics, a domain.AuditSummary) []string {
	var out []string
	if m.AverageScore < 75 {
		out = append(out, "Overall site performance needs improvement - focus on technical SEO")
	}
	if a.AvgPerformance < 80 {
		out = append(out, "Optimize page load speed and Core Web Vitals")
	}
	if a.AvgSEO < 85 {
		out = append(out, "Address SEO issues identified in recent audits")
	}
	if m.CriticalIssues > 0 {
		out = append(out, fmt.Sprintf("Address %d critical issues immediately", m.CriticalIssues))
	}
	if m.RankDeclines > m.RankImprovements {
		out = append(out, "Rankings are trending down - review content and backlink strategy")
	}
	if m.AverageRank > 20 {
		out = append(out, "Focus on improving rankings for high-priority keywords")
	}
	if m.RankingsTracked == 0 {
		out = append(out, "No rankings tracked this week - verify keyword monitoring is active")
	}
	if a.AvgExpertise < 75 {
		out = append(out, "Strengthen expertise signals with author credentials and bios")
	}
	if a.AvgTrustworthiness < 75 {
		out = append(out, "Improve trust signals - add testimonials, reviews, and security badges")
	}
	if len(out) == 0 {
		out = append(out, "Performance is strong - maintain current optimization efforts")
	}
	return out
}

const emailDate = "1/2/2006"

// FormatReportEmail renders the plain-text weekly report mail.
func FormatReportEmail(to string, r domain.Report) Email {
	m := r.Metrics
	var b strings.Builder
	fmt.Fprintf(&b, "Weekly SEO Report for %s\n", r.CompanyName)
	fmt.Fprintf(&b, "Week: %s - %s\n\n", r.WeekStart.Format(emailDate), r.WeekEnd.Format(emailDate))
	b.WriteString("KEY METRICS:\n")
	fmt.Fprintf(&b, "- Audits Performed: %d\n", m.TotalAudits)
	fmt.Fprintf(&b, "- Average Score: %g/100\n", m.AverageScore)
	fmt.Fprintf(&b, "- Rankings Tracked: %d\n", m.RankingsTracked)
	fmt.Fprintf(&b, "- Average Rank: #%d\n", int(math.Round(m.AverageRank)))
	fmt.Fprintf(&b, "- Rank Improvements: %d\n", m.RankImprovements)
	fmt.Fprintf(&b, "- Rank Declines: %d\n", m.RankDeclines)
	fmt.Fprintf(&b, "- Critical Issues: %d\n\n", m.CriticalIssues)
	b.WriteString("RECOMMENDATIONS:\n")
	for i, rec := range r.Recommendations {
		fmt.Fprintf(&b, "%d. %s\n", i+1, rec)
	}
	return Email{
		To:      to,
		Subject: "Weekly SEO Report - " + r.WeekStart.Format(emailDate),
		Body:    b.String(),
	}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
