package utils

import (
	"math"
	"testing"
)

func TestMedian(t *testing.T) {
	tests := []struct {
		in   []float64
		want float64
	}{
		{[]float64{3, 1, 2}, 2},
		{[]float64{4, 1, 3, 2}, 2.5},
		{[]float64{7}, 7},
	}
	for _, tt := range tests {
		if got := Median(tt.in); got != tt.want {
			t.Errorf("Median(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if !math.IsNaN(Median(nil)) {
		t.Error("Median(nil) should be NaN")
	}

	in := []float64{3, 1, 2}
	_ = Median(in)
	if in[0] != 3 || in[1] != 1 {
		t.Errorf("Median modified its input: %v", in)
	}
}

func TestMeanAbsoluteError(t *testing.T) {
	got := MeanAbsoluteError([]float64{10, 20, 30}, []float64{12, 20, 27})
	if math.Abs(got-5.0/3) > 1e-12 {
		t.Errorf("MeanAbsoluteError = %v, want %v", got, 5.0/3)
	}
	if !math.IsNaN(MeanAbsoluteError(nil, nil)) {
		t.Error("empty MAE should be NaN")
	}
}

func TestIsFinite(t *testing.T) {
	if !IsFinite(1.5) || IsFinite(math.NaN()) || IsFinite(math.Inf(1)) || IsFinite(math.Inf(-1)) {
		t.Error("IsFinite misclassified a value")
	}
}
