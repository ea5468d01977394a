// Package history stores engine stats snapshots taken by the report
// scheduler, so bucket churn and scheduler lag can be inspected after the
// fact with "ratecontrol history".
//
// Two backends are available:
//
//   - memory: a bounded in-process ring, lost on exit
//   - sqlite: a database file, written through either the pure Go
//     modernc.org/sqlite driver ("sqlite") or the cgo
//     github.com/mattn/go-sqlite3 driver ("sqlite3")
//
// Snapshots older than the configured retention are removed by Cleanup,
// which the report scheduler runs on its own cron schedule.
package history
