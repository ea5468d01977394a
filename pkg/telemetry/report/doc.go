// Package report logs periodic ratelimit engine statistics.
//
// The Scheduler runs on a robfig/cron schedule taken from
// telemetry.report.schedule and writes one structured "engine stats"
// record per run, including counter deltas since the previous run.
//
// With WithStore each report is also saved to a history.Store, and
// WithRetention adds a second cron job that prunes old snapshots.
package report
