// Package database provides the SQLite connection behind mqttgate's publish
// history.
//
// This package manages:
//   - Opening the database file with WAL mode and a busy timeout
//   - A single-connection pool (SQLite has one writer)
//   - Schema migrations read from an fs.FS (normally the embedded
//     migrations package)
//
// Usage:
//
//	db, err := database.Open(cfg.History)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql; only .up.sql files are applied.
package database
