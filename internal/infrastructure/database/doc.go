// Package database provides relational database connectivity for the BSSID registry.
//
// Two drivers are supported:
//   - sqlite3 (github.com/mattn/go-sqlite3): a single-file database with WAL
//     mode, a busy timeout and a single pooled connection
//   - postgres (github.com/lib/pq): a pooled connection from a URL
//
// Queries are written once with ? placeholders and passed through
// Dialect.Rebind before execution. IsUniqueViolation classifies constraint
// failures from either driver so callers can map them to domain conflicts.
//
// Security Considerations:
//   - All queries use parameterised statements
//   - SQLite database files are created with 0600 permissions
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{
//	    Driver:      "sqlite3",
//	    Path:        "./data/attendance.db",
//	    WALMode:     true,
//	    BusyTimeout: 5,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
package database
