// Package storage is the relational store behind the job handlers.
//
// It owns the schema (embedded migrations.sql) and every query the handlers run:
//   - eligibility batches (companies to audit or report on, keywords to track)
//   - per-item writes (audits, rankings, reports, keyword rank cache)
//   - the job_executions audit trail
//   - weekly aggregate summaries for reports
package storage
