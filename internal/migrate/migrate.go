// Package migrate applies the metadata schema on startup.
package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
	"go.uber.org/zap"
)

// Migrations returns the schema migrations for the entries table.
// The table name is configurable, so migrations are Go functions rather than SQL files.
func Migrations(table string) []*goose.Migration {
	t := pgx.Identifier{table}.Sanitize()
	idx := pgx.Identifier{table + "_path_idx"}.Sanitize()

	createTable := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  user_id     TEXT        NOT NULL,
  path        TEXT        NOT NULL,
  read        BOOLEAN     NOT NULL DEFAULT false,
  write       BOOLEAN     NOT NULL DEFAULT false,
  users       TEXT[]      NOT NULL DEFAULT '{}',
  delete_time TIMESTAMPTZ NULL,
  PRIMARY KEY (user_id, path)
)`, t)
	createIndex := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (path)`, idx, t)

	return []*goose.Migration{
		goose.NewGoMigration(1,
			&goose.GoFunc{RunTx: execTx(createTable, createIndex)},
			&goose.GoFunc{RunTx: execTx(fmt.Sprintf(`DROP TABLE IF EXISTS %s`, t))},
		),
	}
}

func execTx(stmts ...string) func(ctx context.Context, tx *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		for _, s := range stmts {
			if _, err := tx.ExecContext(ctx, s); err != nil {
				return err
			}
		}
		return nil
	}
}

// VersionTable names the goose version table of table, so several entry
// tables can share one database.
func VersionTable(table string) string { return "goose_" + table + "_version" }

// Up runs all pending migrations for table.
func Up(ctx context.Context, dsn, table string, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	store, err := database.NewStore(database.DialectPostgres, VersionTable(table))
	if err != nil {
		return fmt.Errorf("goose store: %w", err)
	}
	provider, err := goose.NewProvider("", db, nil,
		goose.WithStore(store),
		goose.WithGoMigrations(Migrations(table)...),
	)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return err
	}
	for _, r := range results {
		log.Info("migration applied",
			zap.Int64("version", r.Source.Version),
			zap.Duration("dur", r.Duration),
		)
	}
	return nil
}
