package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"

	"seojobs/internal/domain"
)

// KeywordsForTracking returns keywords of companies with a website, never-checked
// and least recently checked first. priorityOnly restricts to is_priority rows.
func (s *Store) KeywordsForTracking(ctx context.Context, priorityOnly bool, limit int) ([]domain.Keyword, error) {
	q := `SELECT k.id, k.company_id, k.keyword, k.location, k.current_rank, k.is_priority, k.last_checked,
		       c.name, c.website
		FROM keywords k
		JOIN companies c ON k.company_id = c.id
		WHERE c.website IS NOT NULL
		  AND c.website != ''`
	if priorityOnly {
		q += `
		  AND k.is_priority = 1`
	}
	q += `
		ORDER BY k.last_checked ASC, k.id ASC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query keywords")
	}
	defer rows.Close()

	var out []domain.Keyword
	for rows.Next() {
		var (
			k        domain.Keyword
			priority int
			checked  sql.NullString
		)
		if err := rows.Scan(&k.ID, &k.CompanyID, &k.Keyword, &k.Location, &k.CurrentRank, &priority, &checked,
			&k.CompanyName, &k.CompanyWebsite); err != nil {
			return nil, errors.Wrap(err, "scan keyword")
		}
		k.IsPriority = priority != 0
		k.LastChecked = parseTime(scanNullString(checked))
		out = append(out, k)
	}
	return out, errors.Wrap(rows.Err(), "iterate keywords")
}

// UpsertKeyword inserts k (ID 0) or updates the row with k.ID, returning the id.
func (s *Store) UpsertKeyword(ctx context.Context, k domain.Keyword) (int64, error) {
	if k.ID == 0 {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO keywords(company_id, keyword, location, current_rank, is_priority, last_checked) VALUES(?,?,?,?,?,?)`,
			k.CompanyID, k.Keyword, k.Location, k.CurrentRank, boolInt(k.IsPriority), nullTime(k.LastChecked),
		)
		if err != nil {
			return 0, errors.Wrap(err, "insert keyword")
		}
		return res.LastInsertId()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE keywords SET keyword = ?, location = ?, current_rank = ?, is_priority = ?, last_checked = ? WHERE id = ?`,
		k.Keyword, k.Location, k.CurrentRank, boolInt(k.IsPriority), nullTime(k.LastChecked), k.ID,
	)
	if err != nil {
		return 0, errors.Wrap(err, "update keyword")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, errors.Wrapf(ErrNotFound, "keyword %d", k.ID)
	}
	return k.ID, nil
}

// UpdateKeywordRank refreshes the cached rank and last_checked of one keyword.
func (s *Store) UpdateKeywordRank(ctx context.Context, keywordID int64, rank int, checkedAt time.Time) error {
	if checkedAt.IsZero() {
		checkedAt = s.now()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE keywords SET current_rank = ?, last_checked = ? WHERE id = ?`, rank, formatTime(checkedAt), keywordID)
	if err != nil {
		return errors.Wrap(err, "update keyword rank")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(ErrNotFound, "keyword %d", keywordID)
	}
	return nil
}

type rankingMetadata struct {
	PreviousRank int    `json:"previousRank"`
	Location     string `json:"location,omitempty"`
}

// InsertRanking persists one rank observation.
func (s *Store) InsertRanking(ctx context.Context, r domain.Ranking) error {
	meta, err := json.Marshal(rankingMetadata{PreviousRank: r.PreviousRank, Location: r.Location})
	if err != nil {
		return errors.Wrap(err, "marshal ranking metadata")
	}
	at := r.CheckedAt
	if at.IsZero() {
		at = s.now()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rankings(keyword_id, rank, rank_change, checked_at, metadata) VALUES(?,?,?,?,?)`,
		r.KeywordID, r.Rank, r.RankChange, formatTime(at), string(meta),
	)
	return errors.Wrap(err, "insert ranking")
}
