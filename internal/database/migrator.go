package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	tern "github.com/jackc/tern/v2/migrate"
	"github.com/rs/zerolog"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

const (
	sqliteMigrationTable   = "schema_migrations"
	postgresMigrationTable = "schema_version"
)

// Migrate creates the jokes schema if it does not exist yet. It is safe to
// call on every start.
func Migrate(ctx context.Context, logger *zerolog.Logger, db *Database) error {
	switch db.Dialect {
	case DialectPostgres:
		return migratePostgres(ctx, logger, db)
	default:
		return migrateSQLite(ctx, logger, db.DB)
	}
}

// migrateSQLite applies every embedded file at most once, each in its own
// transaction, recording applied names in schema_migrations.
func migrateSQLite(ctx context.Context, logger *zerolog.Logger, sqlDB *sql.DB) error {
	subtree, err := fs.Sub(migrations, "migrations/sqlite")
	if err != nil {
		return fmt.Errorf("retrieving sqlite migrations subtree: %w", err)
	}

	entries, err := fs.ReadDir(subtree, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	_, err = sqlDB.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+sqliteMigrationTable+` (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`)
	if err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	applied := 0
	for _, file := range files {
		done, err := isApplied(ctx, sqlDB, file)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", file, err)
		}
		if done {
			continue
		}

		content, err := fs.ReadFile(subtree, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}

		tx, err := sqlDB.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", file, err)
		}
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO "+sqliteMigrationTable+" (name, applied_at) VALUES (?, ?)",
			file, time.Now().UTC().UnixMilli(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
		applied++
	}

	if applied == 0 {
		logger.Info().Msgf("database schema up to date, version %d", len(files))
	} else {
		logger.Info().Msgf("migrated database schema, from %d to %d", len(files)-applied, len(files))
	}
	return nil
}

func isApplied(ctx context.Context, sqlDB *sql.DB, name string) (bool, error) {
	var found int
	err := sqlDB.QueryRowContext(ctx, "SELECT 1 FROM "+sqliteMigrationTable+" WHERE name = ?", name).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// migratePostgres runs tern over the embedded postgres migrations on a
// connection borrowed from the pool.
func migratePostgres(ctx context.Context, logger *zerolog.Logger, db *Database) error {
	if db.Pool == nil {
		return fmt.Errorf("postgres migrations need a connection pool")
	}

	poolConn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire migration connection: %w", err)
	}
	defer poolConn.Release()

	return runTern(ctx, logger, poolConn.Conn())
}

func runTern(ctx context.Context, logger *zerolog.Logger, conn *pgx.Conn) error {
	m, err := tern.NewMigrator(ctx, conn, postgresMigrationTable)
	if err != nil {
		return fmt.Errorf("constructing database migrator: %w", err)
	}

	subtree, err := fs.Sub(migrations, "migrations/postgres")
	if err != nil {
		return fmt.Errorf("retrieving database migrations subtree: %w", err)
	}

	if err := m.LoadMigrations(subtree); err != nil {
		return fmt.Errorf("loading database migrations: %w", err)
	}

	from, err := m.GetCurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("retrieving current database migration version: %w", err)
	}

	if err := m.Migrate(ctx); err != nil {
		return err
	}

	if from == int32(len(m.Migrations)) {
		logger.Info().Msgf("database schema up to date, version %d", len(m.Migrations))
	} else {
		logger.Info().Msgf("migrated database schema, from %d to %d", from, len(m.Migrations))
	}
	return nil
}
