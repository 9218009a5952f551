package gbm

import (
	"fmt"
	"math"
	"sort"
)

// Iteration reports the error after one boosting round. EvalMAE is NaN when
// no evaluation set was given.
type Iteration struct {
	Index    int
	TrainMAE float64
	EvalMAE  float64
	Best     int
}

// FitOption configures Fit.
type FitOption func(*fitConfig)

type fitConfig struct {
	evalX    []Row
	evalY    []float64
	progress func(Iteration)
}

// WithEvalSet sets the validation rows used to pick the best iteration and
// drive early stopping.
func WithEvalSet(x []Row, y []float64) FitOption {
	return func(c *fitConfig) {
		c.evalX = x
		c.evalY = y
	}
}

// WithProgress registers a callback invoked after every boosting round.
func WithProgress(fn func(Iteration)) FitOption {
	return func(c *fitConfig) { c.progress = fn }
}

// Fit trains a regressor on x and y using absolute-error loss. catIndices
// lists the positions of categorical columns in each row.
func Fit(x []Row, y []float64, catIndices []int, params Params, opts ...FitOption) (*Model, error) {
	var cfg fitConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	width, err := checkShape(x, y, catIndices)
	if err != nil {
		return nil, err
	}
	if cfg.evalX != nil {
		if len(cfg.evalX) != len(cfg.evalY) {
			return nil, fmt.Errorf("eval set: %w", ErrLengthMismatch)
		}
		for _, r := range cfg.evalX {
			if len(r) != width {
				return nil, fmt.Errorf("eval set: %w", ErrRaggedRows)
			}
		}
		if err := checkTargets(cfg.evalY); err != nil {
			return nil, fmt.Errorf("eval set: %w", err)
		}
	}

	n := len(x)
	encoders, ordered := fitEncoders(x, y, catIndices, params.CategoricalPrior, params.Seed)
	model := &Model{
		NumFeatures:        width,
		CategoricalIndices: append([]int(nil), catIndices...),
		Encoders:           encoders,
		Base:               median(append([]float64(nil), y...)),
	}

	cols := make([][]float64, width)
	for f := 0; f < width; f++ {
		if enc, ok := ordered[f]; ok {
			cols[f] = enc
			continue
		}
		col := make([]float64, n)
		for i := range x {
			col[i] = x[i][f].Num
		}
		cols[f] = col
	}
	bins := newBinner(cols, params.MaxBins)
	binned := make([][]uint8, width)
	for f := range cols {
		bf := make([]uint8, n)
		for i, v := range cols[f] {
			bf[i] = bins.bin(f, v)
		}
		binned[f] = bf
	}

	var evalRows [][]float64
	for _, r := range cfg.evalX {
		row := make([]float64, width)
		model.encodeInto(r, row)
		evalRows = append(evalRows, row)
	}

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = model.Base
	}
	evalPred := make([]float64, len(evalRows))
	for i := range evalPred {
		evalPred[i] = model.Base
	}

	b := &builder{
		params:   params,
		bins:     bins,
		binned:   binned,
		grad:     make([]float64, n),
		residual: make([]float64, n),
		leafOf:   make([]int32, n),
	}
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	best, bestScore := -1, math.Inf(1)
	for it := 0; it < params.Iterations; it++ {
		for i := range y {
			r := y[i] - pred[i]
			b.residual[i] = r
			b.grad[i] = sign(r)
		}
		tree := b.build(all)
		model.Trees = append(model.Trees, tree)

		for i := range pred {
			pred[i] += tree.Nodes[b.leafOf[i]].Value
		}
		for i, row := range evalRows {
			evalPred[i] += tree.predict(row)
		}

		trainMAE := mae(pred, y)
		evalMAE := math.NaN()
		score := trainMAE
		if len(evalRows) > 0 {
			evalMAE = mae(evalPred, cfg.evalY)
			score = evalMAE
		}
		if score < bestScore {
			best, bestScore = it, score
		}
		if cfg.progress != nil {
			cfg.progress(Iteration{Index: it, TrainMAE: trainMAE, EvalMAE: evalMAE, Best: best})
		}
		if len(evalRows) > 0 && params.EarlyStoppingRounds > 0 && it-best >= params.EarlyStoppingRounds {
			break
		}
	}

	model.Trees = model.Trees[:best+1]
	model.BestIteration = best
	model.BestScore = bestScore
	return model, nil
}

func checkShape(x []Row, y []float64, catIndices []int) (int, error) {
	if len(x) == 0 {
		return 0, ErrEmptyTrainingSet
	}
	if len(x) != len(y) {
		return 0, fmt.Errorf("%w: %d rows, %d targets", ErrLengthMismatch, len(x), len(y))
	}
	width := len(x[0])
	for i, r := range x {
		if len(r) != width {
			return 0, fmt.Errorf("%w: row %d has %d columns, want %d", ErrRaggedRows, i, len(r), width)
		}
	}
	if err := checkTargets(y); err != nil {
		return 0, err
	}
	seen := make(map[int]bool, len(catIndices))
	for _, f := range catIndices {
		if f < 0 || f >= width || seen[f] {
			return 0, fmt.Errorf("%w: %d", ErrCategoricalIndex, f)
		}
		seen[f] = true
	}
	return width, nil
}

func checkTargets(y []float64) error {
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: index %d is %v", ErrNonFiniteTarget, i, v)
		}
	}
	return nil
}

// builder grows one tree on the current gradients.
type builder struct {
	params   Params
	bins     *binner
	binned   [][]uint8
	grad     []float64
	residual []float64
	leafOf   []int32
	nodes    []Node
}

type split struct {
	feature int
	bin     int
	gain    float64
}

func (b *builder) build(idx []int) Tree {
	b.nodes = nil
	b.grow(idx, 0)
	return Tree{Nodes: b.nodes}
}

func (b *builder) grow(idx []int, depth int) int32 {
	id := int32(len(b.nodes))
	b.nodes = append(b.nodes, Node{})

	s, ok := b.bestSplit(idx, depth)
	if !ok {
		b.nodes[id] = Node{Leaf: true, Value: b.leafValue(idx)}
		for _, i := range idx {
			b.leafOf[i] = id
		}
		return id
	}

	col := b.binned[s.feature]
	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if int(col[i]) <= s.bin {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id] = Node{
		Feature:   s.feature,
		Threshold: b.bins.threshold(s.feature, s.bin),
		Left:      l,
		Right:     r,
	}
	return id
}

func (b *builder) bestSplit(idx []int, depth int) (split, bool) {
	minLeaf := b.params.MinSamplesLeaf
	if depth >= b.params.Depth || len(idx) < 2*minLeaf {
		return split{}, false
	}
	lambda := b.params.L2
	var total float64
	for _, i := range idx {
		total += b.grad[i]
	}
	n := float64(len(idx))
	parent := total * total / (n + lambda)

	best := split{gain: 1e-12}
	found := false
	for f := range b.binned {
		nb := b.bins.numBins(f)
		sums := make([]float64, nb)
		counts := make([]int, nb)
		col := b.binned[f]
		for _, i := range idx {
			sums[col[i]] += b.grad[i]
			counts[col[i]]++
		}
		var gl float64
		var nl int
		for bin := 0; bin < nb-1; bin++ {
			gl += sums[bin]
			nl += counts[bin]
			nr := len(idx) - nl
			if nl < minLeaf {
				continue
			}
			if nr < minLeaf {
				break
			}
			gr := total - gl
			gain := gl*gl/(float64(nl)+lambda) + gr*gr/(float64(nr)+lambda) - parent
			if gain > best.gain {
				best = split{feature: f, bin: bin, gain: gain}
				found = true
			}
		}
	}
	return best, found
}

// leafValue is the shrunken median residual, the optimal constant step for
// absolute error.
func (b *builder) leafValue(idx []int) float64 {
	r := make([]float64, len(idx))
	for k, i := range idx {
		r[k] = b.residual[i]
	}
	return b.params.LearningRate * median(r)
}

// median sorts v in place.
func median(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sort.Float64s(v)
	m := len(v) / 2
	if len(v)%2 == 1 {
		return v[m]
	}
	return (v[m-1] + v[m]) / 2
}

func mae(pred, y []float64) float64 {
	if len(y) == 0 {
		return math.NaN()
	}
	var s float64
	for i := range y {
		s += math.Abs(pred[i] - y[i])
	}
	return s / float64(len(y))
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
