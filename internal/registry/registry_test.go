package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/carprice/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "db", "registry.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleRun(created time.Time) *models.Run {
	return &models.Run{
		DatasetPath:       "/data/used_cars.csv",
		ReferenceYear:     2026,
		SchemaFingerprint: "0123456789abcdef",
		InputRows:         4009,
		TrainRows:         3100,
		ValidationRows:    775,
		UnparsablePrice:   1,
		BelowMin:          20,
		AboveMax:          113,
		ImputedRows:       240,
		ValidationMAE:     6123.5,
		BestIteration:     1450,
		Trees:             1451,
		ArtifactPath:      "/data/models/car_price_model.gob",
		DurationMS:        8123,
		CreatedAt:         created,
	}
}

func TestSQLiteStore_Runs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.LatestRun(ctx); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("LatestRun on empty store: got %v, want ErrRunNotFound", err)
	}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	first := sampleRun(base)
	if err := store.CreateRun(ctx, first); err != nil {
		t.Fatal(err)
	}
	if first.ID == "" {
		t.Fatal("CreateRun should assign an ID")
	}
	second := sampleRun(base.Add(time.Hour))
	second.ValidationMAE = 5900
	if err := store.CreateRun(ctx, second); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetRun(ctx, first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ValidationMAE != 6123.5 || got.BestIteration != 1450 || got.Excluded() != 134 {
		t.Errorf("GetRun: got %+v", got)
	}
	if !got.CreatedAt.Equal(base) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, base)
	}

	latest, err := store.LatestRun(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if latest.ID != second.ID {
		t.Errorf("LatestRun = %s, want %s", latest.ID, second.ID)
	}

	list, err := store.ListRuns(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != second.ID {
		t.Errorf("ListRuns should be newest first, got %d runs", len(list))
	}
	page, err := store.ListRuns(ctx, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 || page[0].ID != first.ID {
		t.Errorf("ListRuns offset 1: got %d runs", len(page))
	}

	if _, err := store.GetRun(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun(missing) = %v, want ErrRunNotFound", err)
	}
}

func TestSQLiteStore_Predictions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p := &models.Prediction{
			ModelVersion: "v1",
			Brand:        "Ford",
			Model:        "F-150",
			Request:      `{"brand":"Ford"}`,
			Estimate:     31000,
		}
		if err := store.LogPrediction(ctx, p); err != nil {
			t.Fatal(err)
		}
		if p.ID == "" {
			t.Error("LogPrediction should assign an ID")
		}
	}
	n, err := store.CountPredictions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("CountPredictions = %d, want 3", n)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, "sqlite", filepath.Join(t.TempDir(), "r.db"), "")
	if err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	if _, err := Open(ctx, "mysql", "", ""); err == nil {
		t.Error("expected error for unknown driver")
	}
}

func TestDollarParams(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"SELECT 1", "SELECT 1"},
		{"WHERE id = ?", "WHERE id = $1"},
		{"VALUES (?, ?, ?)", "VALUES ($1, $2, $3)"},
	}
	for _, tt := range tests {
		if got := dollarParams(tt.in); got != tt.want {
			t.Errorf("dollarParams(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("CARPRICE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CARPRICE_TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	store, err := NewPostgresStore(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	run := sampleRun(time.Now().UTC())
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TrainRows != run.TrainRows {
		t.Errorf("TrainRows = %d, want %d", got.TrainRows, run.TrainRows)
	}
}
