package registry

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	sqlStore
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{sqlStore{db: db, bind: questionMarks}}, nil
}

func initSQLiteSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		dataset_path TEXT NOT NULL,
		reference_year INTEGER NOT NULL,
		schema_fingerprint TEXT NOT NULL,
		input_rows INTEGER NOT NULL,
		train_rows INTEGER NOT NULL,
		validation_rows INTEGER NOT NULL,
		unparsable_price INTEGER NOT NULL DEFAULT 0,
		below_min INTEGER NOT NULL DEFAULT 0,
		above_max INTEGER NOT NULL DEFAULT 0,
		imputed_rows INTEGER NOT NULL DEFAULT 0,
		validation_mae REAL NOT NULL,
		best_iteration INTEGER NOT NULL,
		trees INTEGER NOT NULL,
		artifact_path TEXT NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);

	CREATE TABLE IF NOT EXISTS predictions (
		id TEXT PRIMARY KEY,
		model_version TEXT NOT NULL,
		brand TEXT,
		model TEXT,
		request TEXT,
		estimate REAL NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_predictions_model_version ON predictions(model_version);
	`
	_, err := db.Exec(schema)
	return err
}
