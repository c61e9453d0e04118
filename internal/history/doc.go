// Package history keeps a local log of status transitions in SQLite, so
// the last known state and recent activity survive restarts and are
// available without the time-series database.
package history
