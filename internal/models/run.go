package models

import "time"

// Run is one recorded training run.
type Run struct {
	ID                string    `json:"id" db:"id"`
	DatasetPath       string    `json:"dataset_path" db:"dataset_path"`
	ReferenceYear     int       `json:"reference_year" db:"reference_year"`
	SchemaFingerprint string    `json:"schema_fingerprint" db:"schema_fingerprint"`
	InputRows         int       `json:"input_rows" db:"input_rows"`
	TrainRows         int       `json:"train_rows" db:"train_rows"`
	ValidationRows    int       `json:"validation_rows" db:"validation_rows"`
	UnparsablePrice   int       `json:"unparsable_price" db:"unparsable_price"`
	BelowMin          int       `json:"below_min" db:"below_min"`
	AboveMax          int       `json:"above_max" db:"above_max"`
	ImputedRows       int       `json:"imputed_rows" db:"imputed_rows"`
	ValidationMAE     float64   `json:"validation_mae" db:"validation_mae"`
	BestIteration     int       `json:"best_iteration" db:"best_iteration"`
	Trees             int       `json:"trees" db:"trees"`
	ArtifactPath      string    `json:"artifact_path" db:"artifact_path"`
	DurationMS        int64     `json:"duration_ms" db:"duration_ms"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// Excluded is the number of listings dropped by the price filter.
func (r *Run) Excluded() int {
	return r.UnparsablePrice + r.BelowMin + r.AboveMax
}

// Prediction is one logged estimate.
type Prediction struct {
	ID           string    `json:"id" db:"id"`
	ModelVersion string    `json:"model_version" db:"model_version"`
	Brand        string    `json:"brand" db:"brand"`
	Model        string    `json:"model" db:"model"`
	Request      string    `json:"request" db:"request"`
	Estimate     float64   `json:"estimate" db:"estimate"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
