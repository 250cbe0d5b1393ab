package storage

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/cockroachdb/errors"

	"seojobs/internal/domain"
)

// InsertJobExecution writes one job_executions summary row.
func (s *Store) InsertJobExecution(ctx context.Context, e domain.JobExecution) error {
	var details any
	if e.Details != nil {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return errors.Wrap(err, "marshal job details")
		}
		details = string(b)
	}
	end := e.EndTime
	if end.IsZero() {
		end = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_executions(job_name, start_time, end_time, duration_ms, status, details)
		 VALUES(?,?,?,?,?,?)`,
		e.JobName, formatTime(e.StartTime), formatTime(end), end.Sub(e.StartTime).Milliseconds(), e.Status, details,
	)
	return errors.Wrap(err, "insert job execution")
}

// RecentJobExecutions returns the newest rows first. An empty jobName matches all jobs.
// Details come back as json.RawMessage.
func (s *Store) RecentJobExecutions(ctx context.Context, jobName string, limit int) ([]domain.JobExecution, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, job_name, start_time, end_time, status, details
		FROM job_executions
		WHERE (? = '' OR job_name = ?)
		ORDER BY start_time DESC, id DESC
		LIMIT ?`, jobName, jobName, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query job executions")
	}
	defer rows.Close()

	var out []domain.JobExecution
	for rows.Next() {
		var (
			e          domain.JobExecution
			start, end string
			details    sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.JobName, &start, &end, &e.Status, &details); err != nil {
			return nil, errors.Wrap(err, "scan job execution")
		}
		e.StartTime = parseTime(start)
		e.EndTime = parseTime(end)
		if details.Valid {
			e.Details = json.RawMessage(details.String)
		}
		out = append(out, e)
	}
	return out, errors.Wrap(rows.Err(), "iterate job executions")
}
