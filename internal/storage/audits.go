package storage

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"

	"seojobs/internal/domain"
)

// InsertAudit persists one audit row.
func (s *Store) InsertAudit(ctx context.Context, a domain.Audit) error {
	perf, err := json.Marshal(a.Performance)
	if err != nil {
		return errors.Wrap(err, "marshal lighthouse scores")
	}
	eeat, err := json.Marshal(a.EEAT)
	if err != nil {
		return errors.Wrap(err, "marshal eeat scores")
	}
	recs := a.Recommendations
	if recs == nil {
		recs = []string{}
	}
	rb, err := json.Marshal(recs)
	if err != nil {
		return errors.Wrap(err, "marshal recommendations")
	}
	at := a.AuditDate
	if at.IsZero() {
		at = s.now()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audits(company_id, audit_date, lighthouse_scores, eeat_scores, recommendations, priority_level)
		 VALUES(?,?,?,?,?,?)`,
		a.CompanyID, formatTime(at), string(perf), string(eeat), string(rb), string(a.Priority),
	)
	return errors.Wrap(err, "insert audit")
}
