// Package migration applies embedded golang-migrate scripts to named database connections
// when the application starts.
package migration

import (
	"context"
	"io/fs"
)

// Migration history tables.
const (
	FrameworkMigrationsTable = "batch_framework_migrations"
	AppMigrationsTable       = "batch_app_migrations"
)

// SourceGroup is the fx value group collecting every Source.
const SourceGroup = "migration_sources"

// Source is a set of migration scripts applied to one named connection. The scripts of a
// database type are read from the directory named after the type ("sqlite", "postgres",
// "mysql") unless Dir is set.
type Source struct {
	// Name identifies the source in logs.
	Name string
	// Database is the batch.databases key of the target connection.
	Database string
	FS       fs.FS
	Dir      string
	// Table records the applied versions.
	Table string
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Up applies all pending migrations found in path of migrationFS.
	Up(ctx context.Context, migrationFS fs.FS, path string, tableName string) error
	// Down rolls back all applied migrations.
	Down(ctx context.Context, migrationFS fs.FS, path string, tableName string) error
	// ReleasesConnection reports whether running a migration closed the pool of the connection,
	// which must then be reopened.
	ReleasesConnection() bool
}
