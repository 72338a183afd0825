// Package filesystem embeds the schema migrations of the job repository tables.
package filesystem

import (
	"embed"
	"io/fs"

	"github.com/ssyoni/hello-spring-batch/pkg/batch/adapter/database/migration"
	"github.com/ssyoni/hello-spring-batch/pkg/batch/support/util/logger"
)

//go:embed resource
var rawFrameworkMigrationFS embed.FS

// FrameworkMigrationsFS returns the embedded scripts, one directory per database type.
func FrameworkMigrationsFS() fs.FS {
	subFS, err := fs.Sub(rawFrameworkMigrationFS, "resource")
	if err != nil {
		logger.Fatalf("Failed to create subdirectory for framework migration FS: %v", err)
	}
	return subFS
}

// FrameworkSource is the migration source creating the job repository tables on database.
func FrameworkSource(database string) migration.Source {
	return migration.Source{
		Name:     "framework",
		Database: database,
		FS:       FrameworkMigrationsFS(),
		Table:    migration.FrameworkMigrationsTable,
	}
}
