// Package database opens the joke store and keeps its schema current.
//
// Two backends share one *sql.DB based API:
//   - sqlite (default): a single local file through modernc.org/sqlite
//   - postgres: a pgx pool with New Relic and local SQL tracing, exposed
//     to database/sql through pgx's stdlib adapter
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/deppfellow/jokes-api/internal/config"
	loggerConfig "github.com/deppfellow/jokes-api/internal/logger"
)

// Dialect selects SQL placeholder style and migration strategy.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DatabasePingTimeout bounds the startup ping, in seconds.
const DatabasePingTimeout = 10

// Database wraps the store handle. Pool is only set for the postgres
// backend.
type Database struct {
	DB      *sql.DB
	Pool    *pgxpool.Pool
	Dialect Dialect
	log     *zerolog.Logger
}

// New opens the backend named by cfg.Database.Driver and pings it.
func New(cfg *config.Config, logger *zerolog.Logger, loggerService *loggerConfig.LoggerService) (*Database, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		return newPostgres(cfg, logger, loggerService)
	case config.DriverSQLite, "":
		return NewSQLite(cfg.Database.Path, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

// Builder returns a squirrel statement builder using the dialect's
// placeholder format.
func (db *Database) Builder() squirrel.StatementBuilderType {
	if db.Dialect == DialectPostgres {
		return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	}
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)
}

func (db *Database) Ping(ctx context.Context) error {
	return db.DB.PingContext(ctx)
}

// RunInTx runs fn inside one transaction. fn's error or a panic rolls the
// transaction back; otherwise it is committed.
func (db *Database) RunInTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %w (original error: %v)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (db *Database) Close() error {
	db.log.Info().Str("dialect", string(db.Dialect)).Msg("closing database connection")

	err := db.DB.Close()
	if db.Pool != nil {
		db.Pool.Close()
	}
	return err
}

func ping(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), DatabasePingTimeout*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}
