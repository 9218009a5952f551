package config

import (
	"github.com/hyperjump/carprice/internal/dataset"
	"github.com/hyperjump/carprice/internal/gbm"
)

// DefaultReferenceYear is the reference year used when none is configured.
// Trainer and server read the same value from the same config file.
const DefaultReferenceYear = 2026

// DefaultTestFraction is the validation share when test_fraction is unset.
const DefaultTestFraction = 0.2

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Features.ReferenceYear == 0 {
		cfg.Features.ReferenceYear = DefaultReferenceYear
	}
	if cfg.Dataset.Path == "" {
		cfg.Dataset.Path = "./data/used_cars.csv"
	}
	if cfg.Dataset.TestFraction == nil {
		f := DefaultTestFraction
		cfg.Dataset.TestFraction = &f
	}
	if cfg.Dataset.Seed == 0 {
		cfg.Dataset.Seed = 42
	}
	if cfg.Dataset.PriceBounds == (dataset.Bounds{}) {
		cfg.Dataset.PriceBounds = dataset.DefaultBounds()
	}
	applyParamDefaults(&cfg.Training.Params)
	if cfg.Training.VerboseEvery == 0 {
		cfg.Training.VerboseEvery = 200
	}
	if cfg.Model.ArtifactPath == "" {
		cfg.Model.ArtifactPath = "./data/models/car_price_model.gob"
	}
	if cfg.Inference.DisplayMargin == 0 {
		cfg.Inference.DisplayMargin = 0.05
	}
	if cfg.Inference.Currency == "" {
		cfg.Inference.Currency = "USD"
	}
	if cfg.Registry.Driver == "" {
		cfg.Registry.Driver = "sqlite"
	}
	if cfg.Registry.DatabasePath == "" {
		cfg.Registry.DatabasePath = "./data/db/carprice.db"
	}
	if cfg.Comparables.IndexPath == "" {
		cfg.Comparables.IndexPath = "./data/indices/listings"
	}
	if cfg.Comparables.Limit == 0 {
		cfg.Comparables.Limit = 5
	}
}

func applyParamDefaults(p *gbm.Params) {
	d := gbm.DefaultParams()
	if p.Iterations == 0 {
		p.Iterations = d.Iterations
	}
	if p.LearningRate == 0 {
		p.LearningRate = d.LearningRate
	}
	if p.Depth == 0 {
		p.Depth = d.Depth
	}
	if p.MinSamplesLeaf == 0 {
		p.MinSamplesLeaf = d.MinSamplesLeaf
	}
	if p.L2 == 0 {
		p.L2 = d.L2
	}
	if p.MaxBins == 0 {
		p.MaxBins = d.MaxBins
	}
	if p.CategoricalPrior == 0 {
		p.CategoricalPrior = d.CategoricalPrior
	}
	if p.Seed == 0 {
		p.Seed = d.Seed
	}
}
