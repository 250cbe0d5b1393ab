// Package jobs implements the scheduled SEO handlers: AuditRunner,
// RankingTracker and ReportGenerator.
//
// All three share one shape. A run is guarded against reentrancy, fetches a
// bounded, staleness-ordered batch from its store and processes items one at a
// time with a pause between them. A failing item is recorded and skipped. The
// run ends with exactly one job_executions row, written best-effort.
//
// Top-level failures are asymmetric: AuditRunner returns them to the caller,
// RankingTracker and ReportGenerator log them and return nil.
package jobs
