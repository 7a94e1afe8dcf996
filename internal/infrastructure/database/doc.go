// Package database provides the horn node's local SQLite store.
//
// The store holds the actuation audit log. It is opened with WAL mode and
// a busy timeout, and the file is restricted to 0600.
//
// Usage:
//
//	db, err := database.Open(ctx, database.ConfigFrom(cfg.Database))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are YYYYMMDD_HHMMSS_description.up.sql files. A matching
// .down.sql file is a rollback script for operators and is never applied.
// Migrations are additive: new columns are nullable or carry a default.
package database
