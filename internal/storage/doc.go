// Package storage is the durable Reminder Store.
//
// It records users and their one-shot reminders and knows nothing about
// timers. Two drivers share one SQL implementation:
//   - "sqlite": embedded database file (modernc.org/sqlite, no cgo)
//   - "postgres": server database through the pgx stdlib driver
//
// Fire moments are stored as a UTC (fire_date, fire_time) text pair in
// "2006-01-02" / "15:04:05" layouts, so lexical order equals chronological
// order on both drivers. Callers pass "now" explicitly for due checks.
package storage
