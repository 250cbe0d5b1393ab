// Package domain holds the entities shared by the store, the job handlers
// and the external service clients.
package domain

import "time"

// Company is an SEO client site.
type Company struct {
	ID      int64
	Name    string
	Website string
	Email   string

	// Opt-in flags live in the companies.metadata JSON column.
	ScheduledAudits bool
	// WeeklyReports nil means "not set", which defaults to enabled.
	WeeklyReports *bool

	UpdatedAt time.Time
}

// Keyword is a tracked search term for one company.
type Keyword struct {
	ID          int64
	CompanyID   int64
	Keyword     string
	Location    string
	CurrentRank int
	IsPriority  bool
	LastChecked time.Time

	CompanyName    string
	CompanyWebsite string
}

// PerformanceScores is the Lighthouse-style score bundle (0..100).
type PerformanceScores struct {
	Performance   float64 `json:"performance"`
	Accessibility float64 `json:"accessibility"`
	BestPractices float64 `json:"bestPractices"`
	SEO           float64 `json:"seo"`
}

// Mean returns the arithmetic mean of the four sub-scores.
func (p PerformanceScores) Mean() float64 {
	return (p.Performance + p.Accessibility + p.BestPractices + p.SEO) / 4
}

// EEATScores is the Experience/Expertise/Authoritativeness/Trustworthiness bundle (0..100).
type EEATScores struct {
	Experience        float64 `json:"experience"`
	Expertise         float64 `json:"expertise"`
	Authoritativeness float64 `json:"authoritativeness"`
	Trustworthiness   float64 `json:"trustworthiness"`
}

func (e EEATScores) Mean() float64 {
	return (e.Experience + e.Expertise + e.Authoritativeness + e.Trustworthiness) / 4
}

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Audit is one persisted audit row.
type Audit struct {
	CompanyID       int64
	AuditDate       time.Time
	Performance     PerformanceScores
	EEAT            EEATScores
	Recommendations []string
	Priority        Priority
}

// Ranking is one persisted rank observation.
type Ranking struct {
	KeywordID    int64
	Rank         int
	RankChange   int
	CheckedAt    time.Time
	PreviousRank int
	Location     string
}

// WeeklyMetrics are the headline numbers of a weekly report.
type WeeklyMetrics struct {
	TotalAudits      int     `json:"totalAudits"`
	AverageScore     float64 `json:"averageScore"`
	RankingsTracked  int     `json:"rankingsTracked"`
	AverageRank      float64 `json:"averageRank"`
	RankImprovements int     `json:"rankImprovements"`
	RankDeclines     int     `json:"rankDeclines"`
	CriticalIssues   int     `json:"criticalIssues"`
}

// AuditSummary aggregates a company's audits over a date range.
type AuditSummary struct {
	TotalAudits          int     `json:"totalAudits"`
	AvgPerformance       float64 `json:"avgPerformance"`
	AvgAccessibility     float64 `json:"avgAccessibility"`
	AvgSEO               float64 `json:"avgSeo"`
	AvgExperience        float64 `json:"avgExperience"`
	AvgExpertise         float64 `json:"avgExpertise"`
	AvgAuthoritativeness float64 `json:"avgAuthoritativeness"`
	AvgTrustworthiness   float64 `json:"avgTrustworthiness"`
	CriticalIssues       int     `json:"criticalIssues"`
}

// RankingSummary aggregates a company's ranking observations over a date range.
type RankingSummary struct {
	KeywordsTracked int     `json:"keywordsTracked"`
	AvgRank         float64 `json:"avgRank"`
	Improvements    int     `json:"improvements"`
	Declines        int     `json:"declines"`
	BestRank        int     `json:"bestRank"`
	WorstRank       int     `json:"worstRank"`
}

// Report is one persisted weekly report row.
type Report struct {
	CompanyID       int64
	CompanyName     string
	ReportType      string
	ReportDate      time.Time
	WeekStart       time.Time
	WeekEnd         time.Time
	Metrics         WeeklyMetrics
	Recommendations []string
	Audits          AuditSummary
	Rankings        RankingSummary
}

// JobExecution is the durable summary row a handler writes once per run.
type JobExecution struct {
	ID        int64
	JobName   string
	StartTime time.Time
	EndTime   time.Time
	Status    string
	Details   any
}

// Duration is EndTime - StartTime.
func (j JobExecution) Duration() time.Duration { return j.EndTime.Sub(j.StartTime) }
