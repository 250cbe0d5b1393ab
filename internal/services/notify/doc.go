// Package notify delivers weekly report mail and rank-change alerts.
//
// Mailers implement jobs.Mailer and alert sinks implement jobs.AlertSink. The
// Forwarder decouples the ranking tracker from slow sinks by consuming
// ranking.alert events from the bus.
package notify
