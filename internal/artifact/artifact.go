// Package artifact persists a trained price model together with everything
// the serving path needs to reproduce the training-time features: the
// schema, the categorical indices, the reference year and the frozen
// imputation medians.
package artifact

import (
	"bufio"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/hyperjump/carprice/internal/dataset"
	"github.com/hyperjump/carprice/internal/features"
	"github.com/hyperjump/carprice/internal/gbm"
)

// FormatVersion is bumped whenever the encoded layout changes.
const FormatVersion = 1

var (
	ErrCorrupt               = errors.New("model artifact is corrupt")
	ErrUnsupportedVersion    = errors.New("unsupported model artifact format version")
	ErrSchemaMismatch        = errors.New("model artifact feature schema differs from this build")
	ErrReferenceYearMismatch = errors.New("model artifact reference year differs from configuration")
)

// Artifact is the persisted training output.
type Artifact struct {
	FormatVersion      int
	Version            string
	CreatedAt          time.Time
	Fields             []features.Field
	CategoricalIndices []int
	SchemaFingerprint  string
	ReferenceYear      int
	Medians            dataset.Medians
	Bounds             dataset.Bounds
	ValidationMAE      float64
	BestIteration      int
	Params             gbm.Params
	Model              *gbm.Model
}

// New wraps a fitted model with the current schema.
func New(version string, model *gbm.Model, referenceYear int, medians dataset.Medians) *Artifact {
	return &Artifact{
		FormatVersion:      FormatVersion,
		Version:            version,
		CreatedAt:          time.Now().UTC(),
		Fields:             append([]features.Field(nil), features.Schema...),
		CategoricalIndices: features.CategoricalIndices(),
		SchemaFingerprint:  features.Fingerprint(),
		ReferenceYear:      referenceYear,
		Medians:            medians,
		Model:              model,
	}
}

// CheckSchema verifies that the artifact was trained on the field order and
// categorical indices this build assembles.
func (a *Artifact) CheckSchema() error {
	if a.SchemaFingerprint != features.Fingerprint() {
		return fmt.Errorf("%w: fingerprint %s, want %s", ErrSchemaMismatch, a.SchemaFingerprint, features.Fingerprint())
	}
	if !reflect.DeepEqual(a.Fields, features.Schema) {
		return fmt.Errorf("%w: field list differs", ErrSchemaMismatch)
	}
	if !reflect.DeepEqual(a.CategoricalIndices, features.CategoricalIndices()) {
		return fmt.Errorf("%w: categorical indices %v, want %v", ErrSchemaMismatch, a.CategoricalIndices, features.CategoricalIndices())
	}
	if !reflect.DeepEqual(a.Model.CategoricalIndices, a.CategoricalIndices) {
		return fmt.Errorf("%w: model was fitted with categorical indices %v", ErrSchemaMismatch, a.Model.CategoricalIndices)
	}
	return nil
}

// Save writes a to path atomically, creating parent directories.
func Save(path string, a *Artifact) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create artifact directory: %w", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".artifact-*")
	if err != nil {
		return fmt.Errorf("failed to create artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := gob.NewEncoder(w).Encode(a); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to encode artifact: %w", err)
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move artifact into place: %w", err)
	}
	return nil
}

// Read decodes the artifact at path. Decoding failures wrap ErrCorrupt;
// a missing file is returned as the underlying fs error.
func Read(path string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var a Artifact
	if err := gob.NewDecoder(bufio.NewReader(f)).Decode(&a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if a.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, a.FormatVersion)
	}
	if a.Model == nil || len(a.Model.Trees) == 0 {
		return nil, fmt.Errorf("%w: no trees", ErrCorrupt)
	}
	if a.Model.NumFeatures != len(a.Fields) {
		return nil, fmt.Errorf("%w: model has %d features, schema has %d", ErrCorrupt, a.Model.NumFeatures, len(a.Fields))
	}
	return &a, nil
}
