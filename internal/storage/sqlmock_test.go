package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seojobs/internal/domain"
	logx "seojobs/pkg/logx"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	st := New(db, logx.Nop())
	st.now = func() time.Time { return base }
	return st, mock
}

func TestInsertJobExecution_Sqlmock(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO job_executions").
		WithArgs("ranking-tracker", "2024-05-06T12:00:00.000Z", "2024-05-06T12:00:02.000Z", int64(2000), "success", `{"keywordsProcessed":1}`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := st.InsertJobExecution(context.Background(), domain.JobExecution{
		JobName:   "ranking-tracker",
		StartTime: base,
		EndTime:   base.Add(2 * time.Second),
		Status:    "success",
		Details:   map[string]int{"keywordsProcessed": 1},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertAudit_Sqlmock(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO audits").
		WithArgs(int64(7), "2024-05-06T12:00:00.000Z",
			`{"performance":50,"accessibility":90,"bestPractices":90,"seo":90}`,
			`{"experience":90,"expertise":90,"authoritativeness":90,"trustworthiness":90}`,
			`["Optimize page load speed and performance"]`, "low").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := st.InsertAudit(context.Background(), domain.Audit{
		CompanyID:       7,
		Performance:     domain.PerformanceScores{Performance: 50, Accessibility: 90, BestPractices: 90, SEO: 90},
		EEAT:            domain.EEATScores{Experience: 90, Expertise: 90, Authoritativeness: 90, Trustworthiness: 90},
		Recommendations: []string{"Optimize page load speed and performance"},
		Priority:        domain.PriorityLow,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestKeywordsForTrackingPriorityFilter_Sqlmock(t *testing.T) {
	st, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "company_id", "keyword", "location", "current_rank", "is_priority", "last_checked", "name", "website"}).
		AddRow(1, 2, "plumber austin", "Austin, TX", 12, 1, nil, "Acme", "https://acme.example")
	mock.ExpectQuery(`FROM keywords k\s+JOIN companies c ON k.company_id = c.id[\s\S]+AND k.is_priority = 1[\s\S]+LIMIT \?`).
		WithArgs(100).
		WillReturnRows(rows)

	got, err := st.KeywordsForTracking(context.Background(), true, 100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsPriority)
	assert.Equal(t, 12, got[0].CurrentRank)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompaniesForAuditQueryError_Sqlmock(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("FROM companies").WithArgs(50).WillReturnError(errors.New("connection reset"))

	_, err := st.CompaniesForAudit(context.Background(), 50)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query companies")
	assert.Contains(t, err.Error(), "connection reset")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateKeywordRankNotFound_Sqlmock(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("UPDATE keywords SET current_rank").
		WithArgs(5, "2024-05-06T12:00:00.000Z", int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := st.UpdateKeywordRank(context.Background(), 42, 5, time.Time{})
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
