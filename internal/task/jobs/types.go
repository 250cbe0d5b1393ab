package jobs

import (
	"context"
	"io"
	"time"

	"seojobs/internal/domain"
)

// Job names as registered with the scheduler and written to job_executions.
const (
	AuditRunnerJob          = "audit-runner"
	RankingTrackerJob       = "ranking-tracker"
	RankingTrackerHourlyJob = "ranking-tracker-hourly"
	ReportGeneratorJob      = "report-generator"
)

// EventRankAlert is published on the bus for large rank moves.
const EventRankAlert = "ranking.alert"

const (
	statusSuccess = "success"
	statusFailed  = "failed"
)

// PerformanceAuditor runs a Lighthouse-style audit of a website.
type PerformanceAuditor interface {
	Audit(ctx context.Context, website string) (domain.PerformanceScores, error)
}

// SignalAnalyzer scores a website's E-E-A-T signals.
type SignalAnalyzer interface {
	Analyze(ctx context.Context, website string) (domain.EEATScores, error)
}

// RankChecker looks up the current search position of a keyword for its
// company's website. 0 means not ranked.
type RankChecker interface {
	Rank(ctx context.Context, kw domain.Keyword) (int, error)
}

type Email struct {
	To      string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, m Email) error
}

// RankAlert describes a rank move at or beyond the alert threshold.
type RankAlert struct {
	KeywordID    int64     `json:"keywordId"`
	Keyword      string    `json:"keyword"`
	CompanyName  string    `json:"companyName"`
	Location     string    `json:"location,omitempty"`
	PreviousRank int       `json:"previousRank"`
	CurrentRank  int       `json:"currentRank"`
	Change       int       `json:"change"`
	At           time.Time `json:"at"`
}

// Improved reports the sign convention: a lower rank number is better.
func (a RankAlert) Improved() bool { return a.Change < 0 }

type AlertSink interface {
	RankAlert(ctx context.Context, a RankAlert) error
}

// ExecutionRecorder writes the per-run summary row.
type ExecutionRecorder interface {
	InsertJobExecution(ctx context.Context, e domain.JobExecution) error
}

type AuditStore interface {
	ExecutionRecorder
	io.Closer
	CompaniesForAudit(ctx context.Context, limit int) ([]domain.Company, error)
	InsertAudit(ctx context.Context, a domain.Audit) error
	TouchCompany(ctx context.Context, id int64) error
}

type RankingStore interface {
	ExecutionRecorder
	io.Closer
	KeywordsForTracking(ctx context.Context, priorityOnly bool, limit int) ([]domain.Keyword, error)
	InsertRanking(ctx context.Context, r domain.Ranking) error
	UpdateKeywordRank(ctx context.Context, keywordID int64, rank int, checkedAt time.Time) error
}

type ReportStore interface {
	ExecutionRecorder
	io.Closer
	CompaniesForReports(ctx context.Context, limit int) ([]domain.Company, error)
	AuditSummary(ctx context.Context, companyID int64, from, to time.Time) (domain.AuditSummary, error)
	RankingSummary(ctx context.Context, companyID int64, from, to time.Time) (domain.RankingSummary, error)
	InsertReport(ctx context.Context, r domain.Report) error
}
