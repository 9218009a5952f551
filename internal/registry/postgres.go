package registry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	sqlStore
}

// NewPostgresStore connects to PostgreSQL, retrying the ping while the server
// starts, and runs schema migrations.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, fmt.Errorf("postgres: ping: %w", ctx.Err())
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	ps := &PostgresStore{sqlStore{db: db, bind: dollarParams}}
	if err := ps.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return ps, nil
}

func (ps *PostgresStore) migrate(ctx context.Context) error {
	_, err := ps.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id                 UUID         PRIMARY KEY,
			dataset_path       TEXT         NOT NULL,
			reference_year     INTEGER      NOT NULL,
			schema_fingerprint VARCHAR(32)  NOT NULL,
			input_rows         INTEGER      NOT NULL,
			train_rows         INTEGER      NOT NULL,
			validation_rows    INTEGER      NOT NULL,
			unparsable_price   INTEGER      NOT NULL DEFAULT 0,
			below_min          INTEGER      NOT NULL DEFAULT 0,
			above_max          INTEGER      NOT NULL DEFAULT 0,
			imputed_rows       INTEGER      NOT NULL DEFAULT 0,
			validation_mae     DOUBLE PRECISION NOT NULL,
			best_iteration     INTEGER      NOT NULL,
			trees              INTEGER      NOT NULL,
			artifact_path      TEXT         NOT NULL,
			duration_ms        BIGINT       NOT NULL DEFAULT 0,
			created_at         TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);

		CREATE TABLE IF NOT EXISTS predictions (
			id            UUID         PRIMARY KEY,
			model_version TEXT         NOT NULL,
			brand         TEXT         NOT NULL DEFAULT '',
			model         TEXT         NOT NULL DEFAULT '',
			request       TEXT         NOT NULL DEFAULT '',
			estimate      DOUBLE PRECISION NOT NULL,
			created_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_predictions_model_version ON predictions(model_version);
	`)
	return err
}
