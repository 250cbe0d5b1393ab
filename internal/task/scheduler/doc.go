// Package scheduler owns the job registry and the in-memory execution history.
//
// Jobs are named handlers bound to a five-field cron expression evaluated in one
// fixed timezone. Every firing, whether cron-triggered or manual (TriggerJob),
// goes through the same dispatch wrapper which:
//   - appends a running Execution to a bounded ring
//   - runs the handler under a per-invocation deadline
//   - finalizes the record in place by execution ID
//
// The scheduler performs no reentrancy control; handlers guard themselves.
package scheduler
