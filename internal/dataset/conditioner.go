package dataset

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/hyperjump/carprice/internal/features"
	"github.com/hyperjump/carprice/internal/textparse"
	"github.com/hyperjump/carprice/pkg/utils"
)

var (
	// ErrNoAdmissibleRows is returned when price filtering leaves nothing to train on.
	ErrNoAdmissibleRows = errors.New("no listings inside the admissible price range")
	// ErrInvalidBounds is returned when Min exceeds Max.
	ErrInvalidBounds = errors.New("price bounds: min exceeds max")
	// ErrInvalidSplit is returned for a test fraction outside [0, 1).
	ErrInvalidSplit = errors.New("test fraction must be in [0, 1)")
)

// Bounds is the admissible price range, inclusive on both ends.
type Bounds struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// DefaultBounds excludes near-free and exotic listings.
func DefaultBounds() Bounds {
	return Bounds{Min: 2000, Max: 150000}
}

// Contains reports whether price is admissible.
func (b Bounds) Contains(price float64) bool {
	return price >= b.Min && price <= b.Max
}

// Stats counts what conditioning kept and dropped.
type Stats struct {
	Input       int `json:"input"`
	Unparsable  int `json:"unparsable_price"`
	BelowMin    int `json:"below_min"`
	AboveMax    int `json:"above_max"`
	Kept        int `json:"kept"`
	Train       int `json:"train"`
	Validation  int `json:"validation"`
	ImputedRows int `json:"imputed_rows"`
}

// Excluded is the number of listings dropped by the price filter.
func (s Stats) Excluded() int {
	return s.Unparsable + s.BelowMin + s.AboveMax
}

// Medians holds per-column imputation values, keyed by numeric field name.
type Medians map[string]float64

// Example is an admissible listing with its assembled features.
type Example struct {
	Listing Listing
	Record  features.Record
	Price   float64
}

// FilterPrice keeps listings whose parsed price lies inside b. Listings with
// an unparsable price are dropped too. Nothing is clipped.
func FilterPrice(listings []Listing, b Bounds) ([]Listing, []float64, Stats) {
	st := Stats{Input: len(listings)}
	kept := make([]Listing, 0, len(listings))
	prices := make([]float64, 0, len(listings))
	for _, l := range listings {
		p, ok := textparse.ParseCurrency(l.Price)
		switch {
		case !ok:
			st.Unparsable++
		case p < b.Min:
			st.BelowMin++
		case p > b.Max:
			st.AboveMax++
		default:
			kept = append(kept, l)
			prices = append(prices, p)
		}
	}
	st.Kept = len(kept)
	return kept, prices, st
}

// ComputeMedians returns, for each numeric field, the median of its non-NaN
// values across records. Fields with no values are left out.
func ComputeMedians(records []features.Record) Medians {
	m := make(Medians)
	for _, name := range features.NumericFields() {
		vals := make([]float64, 0, len(records))
		for i := range records {
			v, _ := records[i].Numeric(name)
			if !math.IsNaN(v) {
				vals = append(vals, v)
			}
		}
		if len(vals) > 0 {
			m[name] = utils.Median(vals)
		}
	}
	return m
}

// Impute computes medians over records and fills their missing values in
// place. It returns the medians and how many records needed a fill.
func Impute(records []features.Record) (Medians, int) {
	m := ComputeMedians(records)
	return m, Apply(records, m)
}

// Apply fills NaN numeric values in records from m and returns how many
// records were touched.
func Apply(records []features.Record, m Medians) int {
	touched := 0
	for i := range records {
		if hasMissing(&records[i]) {
			touched++
			records[i].FillMissing(m)
		}
	}
	return touched
}

func hasMissing(r *features.Record) bool {
	for _, name := range features.NumericFields() {
		if v, _ := r.Numeric(name); math.IsNaN(v) {
			return true
		}
	}
	return false
}

// TransformTarget maps a price to the log-scale regression target.
func TransformTarget(price float64) float64 { return math.Log1p(price) }

// InverseTarget maps a log-scale prediction back to a price.
func InverseTarget(v float64) float64 { return math.Expm1(v) }

// Split shuffles 0..n-1 with a seeded generator and returns the train and
// validation index sets. The validation set holds ceil(n*testFraction) rows
// but never all of them.
func Split(n int, testFraction float64, seed int64) ([]int, []int, error) {
	if testFraction < 0 || testFraction >= 1 {
		return nil, nil, ErrInvalidSplit
	}
	nVal := int(math.Ceil(float64(n) * testFraction))
	if nVal >= n {
		nVal = n - 1
	}
	if nVal < 0 {
		nVal = 0
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	val := append([]int(nil), perm[:nVal]...)
	train := append([]int(nil), perm[nVal:]...)
	return train, val, nil
}

// Options configures Condition.
type Options struct {
	Bounds        Bounds
	TestFraction  float64
	Seed          int64
	ReferenceYear int
}

// Conditioned is a training-ready batch.
type Conditioned struct {
	Train            []Example
	Validation       []Example
	TrainTarget      []float64
	ValidationTarget []float64
	Medians          Medians
	Stats            Stats
}

// Condition filters t by price, assembles features with the given reference
// year, splits, imputes missing numerics with medians of the training split
// (applied to both splits) and log-transforms the target.
func Condition(t *Table, opts Options) (*Conditioned, error) {
	if opts.Bounds.Min > opts.Bounds.Max {
		return nil, ErrInvalidBounds
	}
	kept, prices, st := FilterPrice(t.Listings, opts.Bounds)
	if len(kept) == 0 {
		return nil, fmt.Errorf("%s: %w (%d excluded)", t.Source, ErrNoAdmissibleRows, st.Excluded())
	}

	trainIdx, valIdx, err := Split(len(kept), opts.TestFraction, opts.Seed)
	if err != nil {
		return nil, err
	}
	build := func(idx []int) ([]Example, []features.Record, []float64) {
		ex := make([]Example, len(idx))
		recs := make([]features.Record, len(idx))
		target := make([]float64, len(idx))
		for k, i := range idx {
			recs[k] = features.Assemble(kept[i].Raw, opts.ReferenceYear)
			ex[k] = Example{Listing: kept[i], Price: prices[i]}
			target[k] = TransformTarget(prices[i])
		}
		return ex, recs, target
	}
	train, trainRecs, trainTarget := build(trainIdx)
	val, valRecs, valTarget := build(valIdx)

	medians, touched := Impute(trainRecs)
	touched += Apply(valRecs, medians)
	for k := range train {
		train[k].Record = trainRecs[k]
	}
	for k := range val {
		val[k].Record = valRecs[k]
	}

	st.Train = len(train)
	st.Validation = len(val)
	st.ImputedRows = touched
	return &Conditioned{
		Train:            train,
		Validation:       val,
		TrainTarget:      trainTarget,
		ValidationTarget: valTarget,
		Medians:          medians,
		Stats:            st,
	}, nil
}

// Records returns the feature records of examples.
func Records(examples []Example) []features.Record {
	out := make([]features.Record, len(examples))
	for i := range examples {
		out[i] = examples[i].Record
	}
	return out
}
