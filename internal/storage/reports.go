package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"

	"seojobs/internal/domain"
)

// InsertReport persists one report row. The raw summaries go to the data column.
func (s *Store) InsertReport(ctx context.Context, r domain.Report) error {
	metrics, err := json.Marshal(r.Metrics)
	if err != nil {
		return errors.Wrap(err, "marshal report metrics")
	}
	recs := r.Recommendations
	if recs == nil {
		recs = []string{}
	}
	rb, err := json.Marshal(recs)
	if err != nil {
		return errors.Wrap(err, "marshal report recommendations")
	}
	data, err := json.Marshal(struct {
		Audits   domain.AuditSummary   `json:"auditsSummary"`
		Rankings domain.RankingSummary `json:"rankingsSummary"`
	}{r.Audits, r.Rankings})
	if err != nil {
		return errors.Wrap(err, "marshal report data")
	}
	typ := r.ReportType
	if typ == "" {
		typ = "weekly"
	}
	at := r.ReportDate
	if at.IsZero() {
		at = s.now()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports(company_id, report_type, report_date, date_range_start, date_range_end, metrics, recommendations, data)
		 VALUES(?,?,?,?,?,?,?,?)`,
		r.CompanyID, typ, formatTime(at), formatTime(r.WeekStart), formatTime(r.WeekEnd),
		string(metrics), string(rb), string(data),
	)
	return errors.Wrap(err, "insert report")
}

// AuditSummary aggregates a company's audits with audit_date in [from, to].
func (s *Store) AuditSummary(ctx context.Context, companyID int64, from, to time.Time) (domain.AuditSummary, error) {
	var out domain.AuditSummary
	err := s.db.QueryRowContext(ctx, `SELECT
		  COUNT(*),
		  COALESCE(AVG(json_extract(lighthouse_scores, '$.performance')), 0),
		  COALESCE(AVG(json_extract(lighthouse_scores, '$.accessibility')), 0),
		  COALESCE(AVG(json_extract(lighthouse_scores, '$.seo')), 0),
		  COALESCE(AVG(json_extract(eeat_scores, '$.experience')), 0),
		  COALESCE(AVG(json_extract(eeat_scores, '$.expertise')), 0),
		  COALESCE(AVG(json_extract(eeat_scores, '$.authoritativeness')), 0),
		  COALESCE(AVG(json_extract(eeat_scores, '$.trustworthiness')), 0),
		  COALESCE(SUM(CASE WHEN priority_level = 'critical' THEN 1 ELSE 0 END), 0)
		FROM audits
		WHERE company_id = ?
		  AND audit_date BETWEEN ? AND ?`,
		companyID, formatTime(from), formatTime(to),
	).Scan(&out.TotalAudits, &out.AvgPerformance, &out.AvgAccessibility, &out.AvgSEO,
		&out.AvgExperience, &out.AvgExpertise, &out.AvgAuthoritativeness, &out.AvgTrustworthiness,
		&out.CriticalIssues)
	if err != nil {
		return domain.AuditSummary{}, errors.Wrapf(err, "audit summary for company %d", companyID)
	}
	return out, nil
}

// RankingSummary aggregates rank observations of a company's keywords with
// checked_at in [from, to].
func (s *Store) RankingSummary(ctx context.Context, companyID int64, from, to time.Time) (domain.RankingSummary, error) {
	var out domain.RankingSummary
	err := s.db.QueryRowContext(ctx, `SELECT
		  COUNT(DISTINCT r.keyword_id),
		  COALESCE(AVG(r.rank), 0),
		  COALESCE(SUM(CASE WHEN r.rank_change < 0 THEN 1 ELSE 0 END), 0),
		  COALESCE(SUM(CASE WHEN r.rank_change > 0 THEN 1 ELSE 0 END), 0),
		  COALESCE(MIN(r.rank), 0),
		  COALESCE(MAX(r.rank), 0)
		FROM rankings r
		JOIN keywords k ON r.keyword_id = k.id
		WHERE k.company_id = ?
		  AND r.checked_at BETWEEN ? AND ?`,
		companyID, formatTime(from), formatTime(to),
	).Scan(&out.KeywordsTracked, &out.AvgRank, &out.Improvements, &out.Declines, &out.BestRank, &out.WorstRank)
	if err != nil {
		return domain.RankingSummary{}, errors.Wrapf(err, "ranking summary for company %d", companyID)
	}
	return out, nil
}
