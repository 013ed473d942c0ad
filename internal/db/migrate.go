// Package db holds schema migration and the LISTEN side of proposal event
// delivery. Migrations are goose-annotated SQL files embedded from
// internal/db/migrations.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver "pgx"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"github.com/splitlease/proposals/internal/dbpool"
)

// RunMigrations applies every pending migration in fsys. Goose only speaks
// database/sql, so a short-lived handle is opened on the pool's DSN.
func RunMigrations(ctx context.Context, pool *dbpool.Pool, log *logrus.Logger, fsys fs.FS) error {
	handle, err := sql.Open("pgx", pool.ConnString())
	if err != nil {
		return fmt.Errorf("opening migration handle: %w", err)
	}
	defer handle.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, handle, fsys)
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}

	before, err := provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("applying migrations from version %d: %w", before, err)
	}

	for _, r := range results {
		log.WithFields(logrus.Fields{
			"version":  r.Source.Version,
			"file":     r.Source.Path,
			"duration": r.Duration.String(),
		}).Info("migration applied")
	}

	log.WithFields(logrus.Fields{
		"from":    before,
		"applied": len(results),
		"bundled": SchemaVersion(),
	}).Debug("schema up to date")

	return nil
}
