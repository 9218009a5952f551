// Package registry records training runs and served predictions.
package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/carprice/internal/models"
)

// ErrRunNotFound is returned when a run lookup matches nothing.
var ErrRunNotFound = errors.New("run not found")

// Store defines run and prediction persistence operations.
type Store interface {
	// Run operations
	CreateRun(ctx context.Context, run *models.Run) error
	GetRun(ctx context.Context, id string) (*models.Run, error)
	ListRuns(ctx context.Context, offset, limit int) ([]*models.Run, error)
	LatestRun(ctx context.Context) (*models.Run, error)

	// Prediction log
	LogPrediction(ctx context.Context, p *models.Prediction) error
	CountPredictions(ctx context.Context) (int64, error)

	Close() error
}

// Open returns the Store for driver: "sqlite" opens path, "postgres" connects
// to dsn.
func Open(ctx context.Context, driver, path, dsn string) (Store, error) {
	switch driver {
	case "", "sqlite":
		return NewSQLiteStore(path)
	case "postgres":
		return NewPostgresStore(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown registry driver %q", driver)
	}
}
