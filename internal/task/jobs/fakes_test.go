package jobs

import (
	"context"
	"sync"
	"time"

	"seojobs/internal/domain"
)

// memStore is an in-memory AuditStore, RankingStore and ReportStore.
type memStore struct {
	mu sync.Mutex

	companies    []domain.Company
	keywords     []domain.Keyword
	companiesErr error
	keywordsErr  error
	auditErr     map[int64]error // InsertAudit by company
	summaryErr   map[int64]error // AuditSummary by company
	execErr      error

	auditSummaries   map[int64]domain.AuditSummary
	rankingSummaries map[int64]domain.RankingSummary

	audits      []domain.Audit
	touched     []int64
	rankings    []domain.Ranking
	rankUpdates map[int64]int
	reports     []domain.Report
	executions  []domain.JobExecution
	limits      []int
	closed      bool
}

func newMemStore() *memStore {
	return &memStore{
		auditErr:         map[int64]error{},
		summaryErr:       map[int64]error{},
		auditSummaries:   map[int64]domain.AuditSummary{},
		rankingSummaries: map[int64]domain.RankingSummary{},
		rankUpdates:      map[int64]int{},
	}
}

func (m *memStore) CompaniesForAudit(_ context.Context, limit int) ([]domain.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limits = append(m.limits, limit)
	if m.companiesErr != nil {
		return nil, m.companiesErr
	}
	return append([]domain.Company(nil), m.companies...), nil
}

func (m *memStore) CompaniesForReports(ctx context.Context, limit int) ([]domain.Company, error) {
	return m.CompaniesForAudit(ctx, limit)
}

func (m *memStore) InsertAudit(_ context.Context, a domain.Audit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.auditErr[a.CompanyID]; err != nil {
		return err
	}
	m.audits = append(m.audits, a)
	return nil
}

func (m *memStore) TouchCompany(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touched = append(m.touched, id)
	return nil
}

func (m *memStore) KeywordsForTracking(_ context.Context, priorityOnly bool, limit int) ([]domain.Keyword, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limits = append(m.limits, limit)
	if m.keywordsErr != nil {
		return nil, m.keywordsErr
	}
	var out []domain.Keyword
	for _, k := range m.keywords {
		if priorityOnly && !k.IsPriority {
			continue
		}
		out = append(out, k)
	}
	return out, nil
}

func (m *memStore) InsertRanking(_ context.Context, r domain.Ranking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rankings = append(m.rankings, r)
	return nil
}

func (m *memStore) UpdateKeywordRank(_ context.Context, id int64, rank int, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rankUpdates[id] = rank
	return nil
}

func (m *memStore) AuditSummary(_ context.Context, companyID int64, _, _ time.Time) (domain.AuditSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.summaryErr[companyID]; err != nil {
		return domain.AuditSummary{}, err
	}
	return m.auditSummaries[companyID], nil
}

func (m *memStore) RankingSummary(_ context.Context, companyID int64, _, _ time.Time) (domain.RankingSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rankingSummaries[companyID], nil
}

func (m *memStore) InsertReport(_ context.Context, r domain.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, r)
	return nil
}

func (m *memStore) InsertJobExecution(_ context.Context, e domain.JobExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.execErr != nil {
		return m.execErr
	}
	m.executions = append(m.executions, e)
	return nil
}

func (m *memStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *memStore) lastExecution() (domain.JobExecution, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.executions) == 0 {
		return domain.JobExecution{}, false
	}
	return m.executions[len(m.executions)-1], true
}

type auditFunc func(ctx context.Context, website string) (domain.PerformanceScores, error)

func (f auditFunc) Audit(ctx context.Context, website string) (domain.PerformanceScores, error) {
	return f(ctx, website)
}

type signalFunc func(ctx context.Context, website string) (domain.EEATScores, error)

func (f signalFunc) Analyze(ctx context.Context, website string) (domain.EEATScores, error) {
	return f(ctx, website)
}

type rankFunc func(ctx context.Context, kw domain.Keyword) (int, error)

func (f rankFunc) Rank(ctx context.Context, kw domain.Keyword) (int, error) { return f(ctx, kw) }

type mailFunc func(ctx context.Context, m Email) error

func (f mailFunc) Send(ctx context.Context, m Email) error { return f(ctx, m) }

type alertRecorder struct {
	mu     sync.Mutex
	alerts []RankAlert
}

func (a *alertRecorder) RankAlert(_ context.Context, alert RankAlert) error {
	a.mu.Lock()
	a.alerts = append(a.alerts, alert)
	a.mu.Unlock()
	return nil
}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func scores(perf, eeat float64) (domain.PerformanceScores, domain.EEATScores) {
	return domain.PerformanceScores{Performance: perf, Accessibility: perf, BestPractices: perf, SEO: perf},
		domain.EEATScores{Experience: eeat, Expertise: eeat, Authoritativeness: eeat, Trustworthiness: eeat}
}
