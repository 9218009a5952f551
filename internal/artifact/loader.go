package artifact

import (
	"errors"
	"io/fs"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status describes whether the serving process has a usable model.
type Status string

const (
	StatusNotLoaded             Status = "not_loaded"
	StatusLoaded                Status = "loaded"
	StatusUnavailable           Status = "unavailable"
	StatusCorrupt               Status = "corrupt"
	StatusSchemaMismatch        Status = "schema_mismatch"
	StatusReferenceYearMismatch Status = "reference_year_mismatch"
)

// StatusInfo is a snapshot of the loader state.
type StatusInfo struct {
	Status        Status    `json:"status"`
	Path          string    `json:"path"`
	Error         string    `json:"error,omitempty"`
	Version       string    `json:"version,omitempty"`
	ReferenceYear int       `json:"reference_year,omitempty"`
	ValidationMAE float64   `json:"validation_mae,omitempty"`
	TrainedAt     time.Time `json:"trained_at,omitempty"`
	LoadedAt      time.Time `json:"loaded_at,omitempty"`
}

// Loader loads the artifact at most once per process. A failed load leaves
// inference disabled with an explanatory status and may be retried; after a
// successful load further calls are no-ops and the artifact is shared
// read-only.
type Loader struct {
	path          string
	referenceYear int
	allowDrift    bool
	logger        *zap.Logger

	mu       sync.RWMutex
	artifact *Artifact
	status   Status
	err      error
	loadedAt time.Time
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLogger sets the logger used for load results.
func WithLogger(l *zap.Logger) LoaderOption {
	return func(ld *Loader) { ld.logger = l }
}

// WithReferenceYearDrift accepts artifacts trained with a different
// reference year. The mismatch is still logged.
func WithReferenceYearDrift(allow bool) LoaderOption {
	return func(ld *Loader) { ld.allowDrift = allow }
}

// NewLoader returns a loader for path that expects artifacts trained with
// referenceYear.
func NewLoader(path string, referenceYear int, opts ...LoaderOption) *Loader {
	l := &Loader{
		path:          path,
		referenceYear: referenceYear,
		logger:        zap.NewNop(),
		status:        StatusNotLoaded,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path returns the artifact path.
func (l *Loader) Path() string { return l.path }

// Load reads and validates the artifact. It never panics; the returned error
// is also kept for Status.
func (l *Loader) Load() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.artifact != nil {
		return nil
	}

	a, err := Read(l.path)
	if err == nil {
		err = a.CheckSchema()
	}
	if err == nil && a.ReferenceYear != l.referenceYear {
		if l.allowDrift {
			l.logger.Warn("model reference year differs from configuration; ages will be biased",
				zap.Int("artifact_reference_year", a.ReferenceYear),
				zap.Int("configured_reference_year", l.referenceYear))
		} else {
			err = ErrReferenceYearMismatch
		}
	}
	if err != nil {
		l.status = statusFor(err)
		l.err = err
		l.logger.Warn("model artifact not loaded; inference disabled",
			zap.String("path", l.path),
			zap.String("status", string(l.status)),
			zap.Error(err))
		return err
	}

	l.artifact = a
	l.status = StatusLoaded
	l.err = nil
	l.loadedAt = time.Now()
	l.logger.Info("model artifact loaded",
		zap.String("path", l.path),
		zap.String("version", a.Version),
		zap.Int("reference_year", a.ReferenceYear),
		zap.Int("trees", a.Model.NumTrees()),
		zap.Float64("validation_mae", a.ValidationMAE))
	return nil
}

// Artifact returns the loaded artifact, or false when inference is disabled.
func (l *Loader) Artifact() (*Artifact, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.artifact, l.artifact != nil
}

// Status returns a snapshot of the loader state.
func (l *Loader) Status() StatusInfo {
	l.mu.RLock()
	defer l.mu.RUnlock()
	info := StatusInfo{Status: l.status, Path: l.path, ReferenceYear: l.referenceYear}
	if l.err != nil {
		info.Error = l.err.Error()
	}
	if a := l.artifact; a != nil {
		info.Version = a.Version
		info.ReferenceYear = a.ReferenceYear
		info.ValidationMAE = a.ValidationMAE
		info.TrainedAt = a.CreatedAt
		info.LoadedAt = l.loadedAt
	}
	return info
}

func statusFor(err error) Status {
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		return StatusUnavailable
	case errors.Is(err, ErrSchemaMismatch):
		return StatusSchemaMismatch
	case errors.Is(err, ErrReferenceYearMismatch):
		return StatusReferenceYearMismatch
	case errors.Is(err, ErrCorrupt), errors.Is(err, ErrUnsupportedVersion):
		return StatusCorrupt
	}
	return StatusUnavailable
}
