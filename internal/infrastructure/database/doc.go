// Package database provides SQLite connectivity for the bridge's
// status history.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Schema migrations (up/down file pairs, applied in version order)
//   - Connection lifecycle and health checks
//
// The database file is created with 0600 permissions. All queries use
// parameterised statements.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.Files); err != nil {
//	    return err
//	}
package database
