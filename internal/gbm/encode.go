package gbm

import (
	"math"
	"math/rand"
	"sort"
)

// fitEncoders builds the prediction-time encoders for the categorical columns
// and returns the training column with ordered target statistics: each row is
// encoded from the rows before it in a seeded permutation, so a row never sees
// its own target.
func fitEncoders(rows []Row, y []float64, catIdx []int, prior float64, seed int64) (map[int]CategoryEncoder, map[int][]float64) {
	mean := 0.0
	for _, v := range y {
		mean += v
	}
	mean /= float64(len(y))

	perm := rand.New(rand.NewSource(seed)).Perm(len(rows))
	encoders := make(map[int]CategoryEncoder, len(catIdx))
	ordered := make(map[int][]float64, len(catIdx))

	for _, f := range catIdx {
		sums := make(map[string]float64)
		counts := make(map[string]float64)
		col := make([]float64, len(rows))
		for _, i := range perm {
			label := rows[i].cell(f).Cat
			col[i] = (sums[label] + prior*mean) / (counts[label] + prior)
			sums[label] += y[i]
			counts[label]++
		}
		means := make(map[string]float64, len(sums))
		for label, s := range sums {
			means[label] = (s + prior*mean) / (counts[label] + prior)
		}
		encoders[f] = CategoryEncoder{Means: means, Prior: mean}
		ordered[f] = col
	}
	return encoders, ordered
}

func (r Row) cell(f int) Value {
	if f < len(r) {
		return r[f]
	}
	return Value{Num: math.NaN()}
}

// binner holds per-feature split thresholds. Bin 0 is reserved for NaN; a
// value v lands in bin 1 + #{t : t < v}.
type binner struct {
	thresholds [][]float64
}

func newBinner(cols [][]float64, maxBins int) *binner {
	b := &binner{thresholds: make([][]float64, len(cols))}
	for f, col := range cols {
		b.thresholds[f] = thresholds(col, maxBins)
	}
	return b
}

func thresholds(col []float64, maxBins int) []float64 {
	vals := make([]float64, 0, len(col))
	for _, v := range col {
		if !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return nil
	}
	sort.Float64s(vals)
	uniq := vals[:1]
	for _, v := range vals[1:] {
		if v != uniq[len(uniq)-1] {
			uniq = append(uniq, v)
		}
	}
	// one bin goes to NaN, and the last value bin needs no threshold
	limit := maxBins - 2
	if limit < 1 {
		limit = 1
	}
	if len(uniq)-1 <= limit {
		out := make([]float64, 0, len(uniq)-1)
		for i := 0; i+1 < len(uniq); i++ {
			out = append(out, (uniq[i]+uniq[i+1])/2)
		}
		return out
	}
	out := make([]float64, 0, limit)
	for q := 1; q <= limit; q++ {
		pos := q * len(vals) / (limit + 1)
		t := vals[pos]
		if len(out) == 0 || t > out[len(out)-1] {
			if t < uniq[len(uniq)-1] {
				out = append(out, t)
			}
		}
	}
	return out
}

func (b *binner) numBins(f int) int { return len(b.thresholds[f]) + 2 }

func (b *binner) bin(f int, v float64) uint8 {
	if math.IsNaN(v) {
		return 0
	}
	return uint8(1 + sort.SearchFloat64s(b.thresholds[f], v))
}

// threshold returns the split value for "bin <= split".
func (b *binner) threshold(f, split int) float64 {
	if split == 0 {
		return math.Inf(-1)
	}
	return b.thresholds[f][split-1]
}
