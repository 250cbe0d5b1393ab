package storage

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/cockroachdb/errors"

	"seojobs/internal/domain"
)

const companyColumns = `id, name, COALESCE(website, ''), COALESCE(email, ''), metadata, updated_at`

// CompaniesForAudit returns companies opted into scheduled audits, least recently
// updated first.
func (s *Store) CompaniesForAudit(ctx context.Context, limit int) ([]domain.Company, error) {
	return s.queryCompanies(ctx, `SELECT `+companyColumns+`
		FROM companies
		WHERE website IS NOT NULL
		  AND website != ''
		  AND json_extract(metadata, '$.scheduled_audits') = 1
		ORDER BY updated_at ASC
		LIMIT ?`, limit)
}

// CompaniesForReports returns companies that have not opted out of weekly reports.
func (s *Store) CompaniesForReports(ctx context.Context, limit int) ([]domain.Company, error) {
	return s.queryCompanies(ctx, `SELECT `+companyColumns+`
		FROM companies
		WHERE website IS NOT NULL
		  AND website != ''
		  AND COALESCE(json_extract(metadata, '$.weekly_reports'), 1) = 1
		ORDER BY name ASC
		LIMIT ?`, limit)
}

func (s *Store) queryCompanies(ctx context.Context, q string, limit int) ([]domain.Company, error) {
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query companies")
	}
	defer rows.Close()

	var out []domain.Company
	for rows.Next() {
		var (
			c       domain.Company
			meta    string
			updated string
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Website, &c.Email, &meta, &updated); err != nil {
			return nil, errors.Wrap(err, "scan company")
		}
		applyCompanyMetadata(&c, meta)
		c.UpdatedAt = parseTime(updated)
		out = append(out, c)
	}
	return out, errors.Wrap(rows.Err(), "iterate companies")
}

type companyMetadata struct {
	ScheduledAudits bool  `json:"scheduled_audits"`
	WeeklyReports   *bool `json:"weekly_reports,omitempty"`
}

func applyCompanyMetadata(c *domain.Company, raw string) {
	var m companyMetadata
	if raw == "" || json.Unmarshal([]byte(raw), &m) != nil {
		return
	}
	c.ScheduledAudits = m.ScheduledAudits
	c.WeeklyReports = m.WeeklyReports
}

// UpsertCompany inserts c (ID 0) or updates the row with c.ID, returning the id.
func (s *Store) UpsertCompany(ctx context.Context, c domain.Company) (int64, error) {
	meta, err := json.Marshal(companyMetadata{ScheduledAudits: c.ScheduledAudits, WeeklyReports: c.WeeklyReports})
	if err != nil {
		return 0, errors.Wrap(err, "marshal company metadata")
	}
	updated := c.UpdatedAt
	if updated.IsZero() {
		updated = s.now()
	}
	if c.ID == 0 {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO companies(name, website, email, metadata, created_at, updated_at) VALUES(?,?,?,?,?,?)`,
			c.Name, nullStr(c.Website), nullStr(c.Email), string(meta), formatTime(updated), formatTime(updated),
		)
		if err != nil {
			return 0, errors.Wrap(err, "insert company")
		}
		return res.LastInsertId()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE companies SET name = ?, website = ?, email = ?, metadata = ?, updated_at = ? WHERE id = ?`,
		c.Name, nullStr(c.Website), nullStr(c.Email), string(meta), formatTime(updated), c.ID,
	)
	if err != nil {
		return 0, errors.Wrap(err, "update company")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, errors.Wrapf(ErrNotFound, "company %d", c.ID)
	}
	return c.ID, nil
}

// TouchCompany bumps updated_at so audit batches rotate through the population.
func (s *Store) TouchCompany(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE companies SET updated_at = ? WHERE id = ?`, formatTime(s.now()), id)
	if err != nil {
		return errors.Wrap(err, "touch company")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(ErrNotFound, "company %d", id)
	}
	return nil
}

func scanNullString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}
