// Package gbm implements a gradient-boosted regression tree learner with
// absolute-error loss and positional categorical columns.
//
// Categorical columns are replaced by ordered target statistics during
// training and by smoothed per-category target means at prediction time.
// Numeric columns are quantile-binned. Missing numeric values (NaN) always
// fall into the left branch of a split.
package gbm

import "errors"

// Fit errors.
var (
	ErrEmptyTrainingSet  = errors.New("gbm: training set is empty")
	ErrLengthMismatch    = errors.New("gbm: features and target lengths differ")
	ErrRaggedRows        = errors.New("gbm: rows have different widths")
	ErrCategoricalIndex  = errors.New("gbm: categorical index out of range")
	ErrInvalidParameters = errors.New("gbm: invalid parameters")
	ErrNonFiniteTarget   = errors.New("gbm: target is NaN or infinite")
)

// Params controls tree growth and boosting.
type Params struct {
	Iterations          int     `yaml:"iterations"`
	LearningRate        float64 `yaml:"learning_rate"`
	Depth               int     `yaml:"depth"`
	MinSamplesLeaf      int     `yaml:"min_samples_leaf"`
	L2                  float64 `yaml:"l2_leaf_reg"`
	MaxBins             int     `yaml:"max_bins"`
	// EarlyStoppingRounds stops after this many rounds without an eval
	// improvement. 0 runs every iteration; the best one is kept either way.
	EarlyStoppingRounds int `yaml:"early_stopping_rounds"`
	// CategoricalPrior is the weight of the global target mean when smoothing
	// per-category target statistics.
	CategoricalPrior float64 `yaml:"categorical_prior"`
	Seed             int64   `yaml:"seed"`
}

// DefaultParams returns the parameters the price model is trained with.
func DefaultParams() Params {
	return Params{
		Iterations:          2000,
		LearningRate:        0.05,
		Depth:               8,
		MinSamplesLeaf:      5,
		L2:                  3,
		MaxBins:             64,
		EarlyStoppingRounds: 0,
		CategoricalPrior:    10,
		Seed:                42,
	}
}

// Validate reports whether p can drive a fit.
func (p Params) Validate() error {
	switch {
	case p.Iterations < 1:
		return errors.Join(ErrInvalidParameters, errors.New("iterations must be at least 1"))
	case p.LearningRate <= 0 || p.LearningRate > 1:
		return errors.Join(ErrInvalidParameters, errors.New("learning_rate must be in (0, 1]"))
	case p.Depth < 1 || p.Depth > 16:
		return errors.Join(ErrInvalidParameters, errors.New("depth must be in [1, 16]"))
	case p.MinSamplesLeaf < 1:
		return errors.Join(ErrInvalidParameters, errors.New("min_samples_leaf must be at least 1"))
	case p.L2 < 0:
		return errors.Join(ErrInvalidParameters, errors.New("l2_leaf_reg must be non-negative"))
	case p.MaxBins < 2 || p.MaxBins > 255:
		return errors.Join(ErrInvalidParameters, errors.New("max_bins must be in [2, 255]"))
	case p.EarlyStoppingRounds < 0:
		return errors.Join(ErrInvalidParameters, errors.New("early_stopping_rounds must be non-negative"))
	case p.CategoricalPrior < 0:
		return errors.Join(ErrInvalidParameters, errors.New("categorical_prior must be non-negative"))
	}
	return nil
}
