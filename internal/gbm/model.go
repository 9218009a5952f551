package gbm

import "math"

// Value is one cell of a feature row. Numeric columns read Num (NaN when
// missing); categorical columns read Cat.
type Value struct {
	Num float64
	Cat string
}

// Num returns a numeric cell.
func Num(v float64) Value { return Value{Num: v} }

// Cat returns a categorical cell.
func Cat(s string) Value { return Value{Cat: s} }

// Row is one feature vector in column order.
type Row []Value

// CategoryEncoder maps category labels to smoothed target means.
type CategoryEncoder struct {
	Means map[string]float64
	Prior float64
}

// Encode returns the statistic for label, or the prior for unseen labels.
func (e CategoryEncoder) Encode(label string) float64 {
	if v, ok := e.Means[label]; ok {
		return v
	}
	return e.Prior
}

// Node is a tree node. Leaves carry Value; inner nodes send NaN and values
// <= Threshold to Left.
type Node struct {
	Feature   int
	Threshold float64
	Left      int32
	Right     int32
	Leaf      bool
	Value     float64
}

// Tree is a flat array of nodes rooted at index 0.
type Tree struct {
	Nodes []Node
}

func (t *Tree) predict(x []float64) float64 {
	i := int32(0)
	for {
		n := &t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		v := x[n.Feature]
		if math.IsNaN(v) || v <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Model is a fitted ensemble. It is never mutated after Fit returns, so
// Predict is safe for concurrent use.
type Model struct {
	NumFeatures        int
	CategoricalIndices []int
	Encoders           map[int]CategoryEncoder
	Base               float64
	Trees              []Tree
	// BestIteration is the zero-based iteration with the lowest validation
	// error; trees after it were discarded.
	BestIteration int
	BestScore     float64
}

// NumTrees returns the number of trees kept in the ensemble.
func (m *Model) NumTrees() int { return len(m.Trees) }

// Predict scores each row. Rows must have the width the model was fitted on;
// narrower rows are padded with missing values.
func (m *Model) Predict(rows []Row) []float64 {
	out := make([]float64, len(rows))
	x := make([]float64, m.NumFeatures)
	for i, r := range rows {
		m.encodeInto(r, x)
		out[i] = m.score(x)
	}
	return out
}

func (m *Model) score(x []float64) float64 {
	s := m.Base
	for t := range m.Trees {
		s += m.Trees[t].predict(x)
	}
	return s
}

func (m *Model) encodeInto(r Row, x []float64) {
	for f := 0; f < m.NumFeatures; f++ {
		if f >= len(r) {
			x[f] = math.NaN()
			continue
		}
		if enc, ok := m.Encoders[f]; ok {
			x[f] = enc.Encode(r[f].Cat)
			continue
		}
		x[f] = r[f].Num
	}
}
