// Package training turns a listings dataset into a saved price model.
package training

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/carprice/internal/artifact"
	"github.com/hyperjump/carprice/internal/comparables"
	"github.com/hyperjump/carprice/internal/dataset"
	"github.com/hyperjump/carprice/internal/features"
	"github.com/hyperjump/carprice/internal/gbm"
	"github.com/hyperjump/carprice/internal/models"
	"github.com/hyperjump/carprice/internal/registry"
	"github.com/hyperjump/carprice/pkg/utils"
)

// ErrMissingArtifactPath is returned when no artifact destination is set.
var ErrMissingArtifactPath = errors.New("training: artifact path is required")

// Options are the settings of one training run.
type Options struct {
	ReferenceYear int
	Bounds        dataset.Bounds
	TestFraction  float64
	Seed          int64
	Params        gbm.Params
	// VerboseEvery logs progress every N boosting rounds; 0 disables it.
	VerboseEvery int
	ArtifactPath string
	// ComparablesPath is where the listing index is built; empty skips it.
	ComparablesPath string
}

// Result summarizes a finished run.
type Result struct {
	Run                *models.Run
	Artifact           *artifact.Artifact
	Stats              dataset.Stats
	ComparablesIndexed int
}

// Pipeline runs load, condition, fit, evaluate and save.
type Pipeline struct {
	opts   Options
	store  registry.Store
	logger *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithRegistry records each successful run in store.
func WithRegistry(store registry.Store) Option {
	return func(p *Pipeline) { p.store = store }
}

// NewPipeline returns a pipeline for opts.
func NewPipeline(opts Options, options ...Option) *Pipeline {
	p := &Pipeline{opts: opts, logger: zap.NewNop()}
	for _, o := range options {
		o(p)
	}
	return p
}

// Run trains on the dataset at datasetPath and saves the artifact.
func (p *Pipeline) Run(ctx context.Context, datasetPath string) (*Result, error) {
	started := time.Now()
	if p.opts.ArtifactPath == "" {
		return nil, ErrMissingArtifactPath
	}

	table, err := dataset.Load(datasetPath)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	p.logger.Info("dataset loaded", zap.String("path", datasetPath), zap.Int("rows", len(table.Listings)))

	cond, err := dataset.Condition(table, dataset.Options{
		Bounds:        p.opts.Bounds,
		TestFraction:  p.opts.TestFraction,
		Seed:          p.opts.Seed,
		ReferenceYear: p.opts.ReferenceYear,
	})
	if err != nil {
		return nil, fmt.Errorf("condition dataset: %w", err)
	}
	st := cond.Stats
	p.logger.Info("dataset conditioned",
		zap.Int("kept", st.Kept),
		zap.Int("unparsable_price", st.Unparsable),
		zap.Int("below_min", st.BelowMin),
		zap.Int("above_max", st.AboveMax),
		zap.Int("train", st.Train),
		zap.Int("validation", st.Validation),
		zap.Int("imputed_rows", st.ImputedRows))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trainX := features.Rows(dataset.Records(cond.Train))
	valX := features.Rows(dataset.Records(cond.Validation))
	fitOpts := []gbm.FitOption{gbm.WithProgress(p.progress)}
	if len(valX) > 0 {
		fitOpts = append(fitOpts, gbm.WithEvalSet(valX, cond.ValidationTarget))
	}
	model, err := gbm.Fit(trainX, cond.TrainTarget, features.CategoricalIndices(), p.opts.Params, fitOpts...)
	if err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var mae float64
	if len(valX) > 0 {
		mae = currencyMAE(model, valX, cond.ValidationTarget)
	} else {
		p.logger.Warn("no validation rows; reporting training MAE")
		mae = currencyMAE(model, trainX, cond.TrainTarget)
	}

	version := uuid.New().String()
	art := artifact.New(version, model, p.opts.ReferenceYear, cond.Medians)
	art.Bounds = p.opts.Bounds
	art.Params = p.opts.Params
	art.ValidationMAE = mae
	art.BestIteration = model.BestIteration
	if err := artifact.Save(p.opts.ArtifactPath, art); err != nil {
		return nil, fmt.Errorf("save artifact: %w", err)
	}
	p.logger.Info("model saved",
		zap.String("path", p.opts.ArtifactPath),
		zap.String("version", version),
		zap.Int("trees", model.NumTrees()),
		zap.Int("best_iteration", model.BestIteration),
		zap.Float64("validation_mae", mae))

	res := &Result{Artifact: art, Stats: st}
	if p.opts.ComparablesPath != "" {
		n, err := p.indexComparables(ctx, table.Source, cond)
		if err != nil {
			return nil, fmt.Errorf("index comparables: %w", err)
		}
		res.ComparablesIndexed = n
	}

	res.Run = &models.Run{
		ID:                version,
		DatasetPath:       datasetPath,
		ReferenceYear:     p.opts.ReferenceYear,
		SchemaFingerprint: art.SchemaFingerprint,
		InputRows:         st.Input,
		TrainRows:         st.Train,
		ValidationRows:    st.Validation,
		UnparsablePrice:   st.Unparsable,
		BelowMin:          st.BelowMin,
		AboveMax:          st.AboveMax,
		ImputedRows:       st.ImputedRows,
		ValidationMAE:     mae,
		BestIteration:     model.BestIteration,
		Trees:             model.NumTrees(),
		ArtifactPath:      p.opts.ArtifactPath,
		DurationMS:        time.Since(started).Milliseconds(),
		CreatedAt:         art.CreatedAt,
	}
	if p.store != nil {
		if err := p.store.CreateRun(ctx, res.Run); err != nil {
			return nil, fmt.Errorf("record run: %w", err)
		}
	}
	return res, nil
}

func (p *Pipeline) progress(it gbm.Iteration) {
	if p.opts.VerboseEvery <= 0 {
		return
	}
	round := it.Index + 1
	if round != 1 && round%p.opts.VerboseEvery != 0 {
		return
	}
	p.logger.Info("boosting",
		zap.Int("iteration", round),
		zap.Float64("train_mae_log", it.TrainMAE),
		zap.Float64("eval_mae_log", it.EvalMAE),
		zap.Int("best", it.Best+1))
}

func (p *Pipeline) indexComparables(ctx context.Context, source string, cond *dataset.Conditioned) (int, error) {
	listings := make([]comparables.Listing, 0, len(cond.Train)+len(cond.Validation))
	for _, ex := range cond.Train {
		listings = append(listings, comparables.FromExample(source, ex))
	}
	for _, ex := range cond.Validation {
		listings = append(listings, comparables.FromExample(source, ex))
	}
	idx, err := comparables.Build(ctx, p.opts.ComparablesPath, listings)
	if err != nil {
		return 0, err
	}
	if err := idx.Close(); err != nil {
		return 0, err
	}
	p.logger.Info("comparables indexed", zap.String("path", p.opts.ComparablesPath), zap.Int("listings", len(listings)))
	return len(listings), nil
}

// currencyMAE is the mean absolute error in price units of a model trained on
// log1p prices.
func currencyMAE(model *gbm.Model, x []gbm.Row, logTarget []float64) float64 {
	pred := model.Predict(x)
	prices := make([]float64, len(pred))
	actual := make([]float64, len(pred))
	for i := range pred {
		prices[i] = dataset.InverseTarget(pred[i])
		actual[i] = dataset.InverseTarget(logTarget[i])
	}
	return utils.MeanAbsoluteError(prices, actual)
}
