// Package inference turns estimate requests into prices using the loaded
// model artifact.
package inference

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/carprice/internal/artifact"
	"github.com/hyperjump/carprice/internal/comparables"
	"github.com/hyperjump/carprice/internal/dataset"
	"github.com/hyperjump/carprice/internal/features"
	"github.com/hyperjump/carprice/internal/gbm"
	"github.com/hyperjump/carprice/internal/models"
	"github.com/hyperjump/carprice/internal/textparse"
	"github.com/hyperjump/carprice/pkg/utils"
)

// Estimate errors.
var (
	ErrModelUnavailable  = errors.New("model unavailable")
	ErrInvalidPrediction = errors.New("model produced an invalid prediction")
	ErrInvalidRequest    = errors.New("invalid estimate request")
)

// UnavailableError reports why no model is loaded.
type UnavailableError struct {
	Status artifact.StatusInfo
}

func (e *UnavailableError) Error() string {
	if e.Status.Error != "" {
		return fmt.Sprintf("model unavailable (%s): %s", e.Status.Status, e.Status.Error)
	}
	return fmt.Sprintf("model unavailable (%s)", e.Status.Status)
}

func (e *UnavailableError) Unwrap() error { return ErrModelUnavailable }

// ComparableSearcher finds listings similar to a request.
type ComparableSearcher interface {
	Search(ctx context.Context, brand, model string, limit int, opts ...comparables.SearchOption) ([]*models.Comparable, error)
}

// Adapter serves estimates from the artifact held by a Loader. It is safe for
// concurrent use.
type Adapter struct {
	loader        *artifact.Loader
	referenceYear int
	margin        float64
	currency      string
	comparables   ComparableSearcher
	limit         int
	logger        *zap.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the adapter logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// WithCurrency sets the currency code reported with estimates.
func WithCurrency(code string) Option {
	return func(a *Adapter) { a.currency = code }
}

// WithComparables attaches up to limit similar listings to each estimate.
func WithComparables(s ComparableSearcher, limit int) Option {
	return func(a *Adapter) {
		a.comparables = s
		a.limit = limit
	}
}

// NewAdapter returns an adapter that assembles features with referenceYear
// and reports a display band of ±margin around each estimate.
func NewAdapter(loader *artifact.Loader, referenceYear int, margin float64, opts ...Option) *Adapter {
	a := &Adapter{
		loader:        loader,
		referenceYear: referenceYear,
		margin:        margin,
		currency:      "USD",
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Estimate predicts the price for req.
func (a *Adapter) Estimate(ctx context.Context, req models.EstimateRequest) (*models.Estimate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	art, ok := a.loader.Artifact()
	if !ok {
		return nil, &UnavailableError{Status: a.loader.Status()}
	}

	rec := features.Assemble(ToRawRecord(req), a.referenceYear)
	rec.FillMissing(art.Medians)
	logPrice := art.Model.Predict([]gbm.Row{rec.Row()})[0]
	price := dataset.InverseTarget(logPrice)
	if !utils.IsFinite(price) || price <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrediction, price)
	}

	est := &models.Estimate{
		Estimate:      price,
		Low:           price * (1 - a.margin),
		High:          price * (1 + a.margin),
		Margin:        a.margin,
		Currency:      a.currency,
		ModelVersion:  art.Version,
		ReferenceYear: a.referenceYear,
	}
	if a.comparables != nil {
		var opts []comparables.SearchOption
		if req.ModelYear != nil {
			opts = append(opts, comparables.NearYear(*req.ModelYear))
		}
		similar, err := a.comparables.Search(ctx, req.Brand, req.Model, a.limit, opts...)
		if err != nil {
			a.logger.Warn("comparables search failed", zap.Error(err))
		} else {
			est.Comparables = similar
		}
	}
	return est, nil
}

// ToRawRecord maps a request onto the raw record the feature assembler reads.
// Free engine text wins over the structured engine fields. The hybrid flag is
// also set when the fuel type mentions a hybrid.
func ToRawRecord(req models.EstimateRequest) features.RawRecord {
	raw := features.RawRecord{
		Brand:        req.Brand,
		Model:        req.Model,
		ModelYear:    req.ModelYear,
		Engine:       req.Engine,
		Transmission: req.Transmission,
		FuelType:     req.FuelType,
		ExtColor:     req.ExtCol,
		IntColor:     req.IntCol,
		CleanTitle:   req.CleanTitle,
		Accident:     req.Accident,
	}
	if req.Mileage != nil {
		raw.Mileage = strconv.FormatFloat(*req.Mileage, 'f', -1, 64)
	}

	var engine textparse.Engine
	if strings.TrimSpace(req.Engine) != "" {
		engine = textparse.ParseEngine(req.Engine)
	} else {
		engine = textparse.MissingEngine()
		engine.Horsepower = valueOrNaN(req.HP)
		engine.Liters = valueOrNaN(req.Liters)
		engine.Cylinders = valueOrNaN(req.Cylinders)
		engine.Turbo = req.IsTurbo
	}
	if strings.Contains(strings.ToUpper(req.FuelType), "HYBRID") {
		engine.Hybrid = true
	}
	raw.ParsedEngine = &engine
	return raw
}

func valueOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
