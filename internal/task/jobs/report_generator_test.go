package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seojobs/internal/domain"
	logx "seojobs/pkg/logx"
)

func TestLastWeekRange(t *testing.T) {
	t.Parallel()
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	wantStart := time.Date(2024, 4, 29, 0, 0, 0, 0, ny)
	wantEnd := time.Date(2024, 5, 5, 23, 59, 59, 999999999, ny)
	for _, now := range []time.Time{
		time.Date(2024, 5, 6, 0, 0, 1, 0, ny),   // Monday
		time.Date(2024, 5, 8, 14, 30, 0, 0, ny), // Wednesday
		time.Date(2024, 5, 11, 23, 0, 0, 0, ny), // Saturday
		time.Date(2024, 5, 12, 8, 0, 0, 0, ny),  // Sunday
	} {
		start, end := LastWeekRange(now)
		if !start.Equal(wantStart) || !end.Equal(wantEnd) {
			t.Fatalf("LastWeekRange(%s) = %s..%s, want %s..%s", now.Weekday(), start, end, wantStart, wantEnd)
		}
		if start.Weekday() != time.Monday || end.Weekday() != time.Sunday {
			t.Fatalf("LastWeekRange(%s) weekdays = %s..%s", now.Weekday(), start.Weekday(), end.Weekday())
		}
	}
}

func TestCalculateMetrics(t *testing.T) {
	t.Parallel()
	m := CalculateMetrics(
		domain.AuditSummary{TotalAudits: 2, AvgPerformance: 70, AvgAccessibility: 80, AvgSEO: 81.5, CriticalIssues: 1},
		domain.RankingSummary{KeywordsTracked: 4, AvgRank: 12.345, Improvements: 3, Declines: 1},
	)
	assert.Equal(t, domain.WeeklyMetrics{
		TotalAudits:      2,
		AverageScore:     77.2,
		RankingsTracked:  4,
		AverageRank:      12.3,
		RankImprovements: 3,
		RankDeclines:     1,
		CriticalIssues:   1,
	}, m)
}

func TestReportRecommendations(t *testing.T) {
	t.Parallel()
	strong := domain.AuditSummary{AvgPerformance: 95, AvgAccessibility: 95, AvgSEO: 95, AvgExpertise: 90, AvgTrustworthiness: 90}
	m := domain.WeeklyMetrics{AverageScore: 95, RankingsTracked: 3, AverageRank: 4, RankImprovements: 2}
	assert.Equal(t, []string{"Performance is strong - maintain current optimization efforts"}, ReportRecommendations(m, strong))

	weak := domain.AuditSummary{AvgPerformance: 60, AvgAccessibility: 70, AvgSEO: 80}
	m = CalculateMetrics(weak, domain.RankingSummary{})
	m.CriticalIssues = 2
	assert.Equal(t, []string{
		"Overall site performance needs improvement - focus on technical SEO",
		"Optimize page load speed and Core Web Vitals",
		"Address SEO issues identified in recent audits",
		"Address 2 critical issues immediately",
		"No rankings tracked this week - verify keyword monitoring is active",
		"Strengthen expertise signals with author credentials and bios",
		"Improve trust signals - add testimonials, reviews, and security badges",
	}, ReportRecommendations(m, weak))

	m = domain.WeeklyMetrics{AverageScore: 95, RankingsTracked: 3, AverageRank: 25, RankDeclines: 2, RankImprovements: 1}
	assert.Equal(t, []string{
		"Rankings are trending down - review content and backlink strategy",
		"Focus on improving rankings for high-priority keywords",
	}, ReportRecommendations(m, strong))
}

func TestFormatReportEmail(t *testing.T) {
	t.Parallel()
	r := domain.Report{
		CompanyName:     "Acme Plumbing",
		WeekStart:       time.Date(2024, 4, 29, 0, 0, 0, 0, time.UTC),
		WeekEnd:         time.Date(2024, 5, 5, 23, 59, 59, 0, time.UTC),
		Metrics:         domain.WeeklyMetrics{TotalAudits: 3, AverageScore: 81.7, AverageRank: 6.6},
		Recommendations: []string{"first", "second"},
	}
	e := FormatReportEmail("owner@acme.example", r)
	assert.Equal(t, "owner@acme.example", e.To)
	assert.Equal(t, "Weekly SEO Report - 4/29/2024", e.Subject)
	assert.Contains(t, e.Body, "Weekly SEO Report for Acme Plumbing")
	assert.Contains(t, e.Body, "Week: 4/29/2024 - 5/5/2024")
	assert.Contains(t, e.Body, "- Average Score: 81.7/100")
	assert.Contains(t, e.Body, "- Average Rank: #7")
	assert.Contains(t, e.Body, "1. first\n2. second\n")
}

func TestReportGeneratorRun(t *testing.T) {
	t.Parallel()
	st := newMemStore()
	st.companies = []domain.Company{
		{ID: 1, Name: "A", Email: "a@example.com"},
		{ID: 2, Name: "B"},
		{ID: 3, Name: "C", Email: "c@example.com"},
		{ID: 4, Name: "D", Email: "bounce@example.com"},
	}
	st.summaryErr[3] = errors.New("aggregate failed")
	st.auditSummaries[1] = domain.AuditSummary{TotalAudits: 1, AvgPerformance: 90, AvgAccessibility: 90, AvgSEO: 90}
	st.rankingSummaries[1] = domain.RankingSummary{KeywordsTracked: 2, AvgRank: 3}

	var sent []Email
	mailer := mailFunc(func(_ context.Context, m Email) error {
		if m.To == "bounce@example.com" {
			return errors.New("550 mailbox unavailable")
		}
		sent = append(sent, m)
		return nil
	})
	g := NewReportGenerator(st, mailer, ReportConfig{Location: time.UTC}, logx.Nop())
	now := time.Date(2024, 5, 13, 8, 0, 0, 0, time.UTC) // Monday
	g.now = fixedClock(now)

	out, err := g.Run(context.Background())
	require.NoError(t, err)
	sum := out.(*ReportSummary)
	assert.Equal(t, 4, sum.CompaniesProcessed)
	assert.Equal(t, 2, sum.ReportsGenerated)
	assert.Equal(t, 2, sum.Failed)
	assert.Equal(t, 1, sum.EmailsSent)
	assert.Equal(t, time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), sum.WeekStart)

	require.Len(t, sent, 1)
	assert.Equal(t, "a@example.com", sent[0].To)
	assert.Equal(t, "Weekly SEO Report - 5/6/2024", sent[0].Subject)

	// D's report is stored even though its mail bounced.
	require.Len(t, st.reports, 3)
	rep := st.reports[0]
	assert.Equal(t, "weekly", rep.ReportType)
	assert.Equal(t, now, rep.ReportDate)
	assert.Equal(t, 90.0, rep.Metrics.AverageScore)
	assert.Equal(t, sum.WeekEnd, rep.WeekEnd)

	exec, ok := st.lastExecution()
	require.True(t, ok)
	assert.Equal(t, ReportGeneratorJob, exec.JobName)
	assert.Equal(t, statusSuccess, exec.Status)
}

func TestReportGeneratorSwallowsBatchFailure(t *testing.T) {
	t.Parallel()
	st := newMemStore()
	st.companiesErr = errors.New("database is locked")
	g := NewReportGenerator(st, nil, ReportConfig{}, logx.Nop())

	out, err := g.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, out)

	exec, ok := st.lastExecution()
	require.True(t, ok)
	assert.Equal(t, statusFailed, exec.Status)
	assert.Contains(t, exec.Details, "database is locked")
}

func TestReportGeneratorWithoutMailer(t *testing.T) {
	t.Parallel()
	st := newMemStore()
	st.companies = []domain.Company{{ID: 1, Name: "A", Email: "a@example.com"}}
	g := NewReportGenerator(st, nil, ReportConfig{}, logx.Nop())

	sum := g.Execute(context.Background())
	require.NotNil(t, sum)
	assert.Equal(t, 1, sum.ReportsGenerated)
	assert.Zero(t, sum.EmailsSent)
	assert.False(t, g.Running())
}

func TestReportGeneratorSkipsOverlappingRun(t *testing.T) {
	t.Parallel()
	st := newMemStore()
	st.companies = []domain.Company{{ID: 1, Name: "A", Email: "a@example.com"}}

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	mailer := mailFunc(func(context.Context, Email) error {
		once.Do(func() { close(entered) })
		<-release
		return nil
	})
	g := NewReportGenerator(st, mailer, ReportConfig{Location: time.UTC}, logx.Nop())
	g.now = fixedClock(time.Date(2024, 5, 13, 8, 0, 0, 0, time.UTC))

	done := make(chan *ReportSummary, 1)
	go func() { done <- g.Execute(context.Background()) }()
	<-entered
	require.True(t, g.Running())

	assert.Nil(t, g.Execute(context.Background()))

	close(release)
	first := <-done
	require.NotNil(t, first)
	assert.Equal(t, 1, first.ReportsGenerated)
	assert.False(t, g.Running())

	st.mu.Lock()
	defer st.mu.Unlock()
	assert.Len(t, st.reports, 1)
	assert.Len(t, st.executions, 1)
}
