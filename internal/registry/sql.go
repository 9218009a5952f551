package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hyperjump/carprice/internal/models"
)

const runColumns = `id, dataset_path, reference_year, schema_fingerprint, input_rows,
	train_rows, validation_rows, unparsable_price, below_min, above_max, imputed_rows,
	validation_mae, best_iteration, trees, artifact_path, duration_ms, created_at`

// sqlStore holds the queries shared by the SQLite and Postgres backends.
// Queries are written with '?' placeholders and rewritten by bind.
type sqlStore struct {
	db   *sql.DB
	bind func(query string) string
}

func questionMarks(query string) string { return query }

// dollarParams rewrites '?' placeholders as $1, $2, ...
func dollarParams(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CreateRun inserts a run. An empty ID is replaced with a new UUID and a zero
// CreatedAt with the current time.
func (s *sqlStore) CreateRun(ctx context.Context, run *models.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, s.bind(`INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		run.ID, run.DatasetPath, run.ReferenceYear, run.SchemaFingerprint, run.InputRows,
		run.TrainRows, run.ValidationRows, run.UnparsablePrice, run.BelowMin, run.AboveMax, run.ImputedRows,
		run.ValidationMAE, run.BestIteration, run.Trees, run.ArtifactPath, run.DurationMS, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// GetRun returns a run by ID.
func (s *sqlStore) GetRun(ctx context.Context, id string) (*models.Run, error) {
	row := s.db.QueryRowContext(ctx, s.bind(`SELECT `+runColumns+` FROM runs WHERE id = ?`), id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// ListRuns returns runs newest first.
func (s *sqlStore) ListRuns(ctx context.Context, offset, limit int) ([]*models.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		s.bind(`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC LIMIT ? OFFSET ?`),
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LatestRun returns the most recent run, or ErrRunNotFound when none exist.
func (s *sqlStore) LatestRun(ctx context.Context) (*models.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC LIMIT 1`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	return run, err
}

// LogPrediction records a served estimate.
func (s *sqlStore) LogPrediction(ctx context.Context, p *models.Prediction) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, s.bind(`INSERT INTO predictions
		(id, model_version, brand, model, request, estimate, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		p.ID, p.ModelVersion, p.Brand, p.Model, p.Request, p.Estimate, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert prediction: %w", err)
	}
	return nil
}

// CountPredictions returns the total number of logged predictions.
func (s *sqlStore) CountPredictions(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM predictions`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *sqlStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*models.Run, error) {
	var r models.Run
	err := sc.Scan(&r.ID, &r.DatasetPath, &r.ReferenceYear, &r.SchemaFingerprint, &r.InputRows,
		&r.TrainRows, &r.ValidationRows, &r.UnparsablePrice, &r.BelowMin, &r.AboveMax, &r.ImputedRows,
		&r.ValidationMAE, &r.BestIteration, &r.Trees, &r.ArtifactPath, &r.DurationMS, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
