package models

import (
	"testing"
)

func TestEstimateRequest_Validate(t *testing.T) {
	year := func(v int) *int { return &v }
	num := func(v float64) *float64 { return &v }
	tests := []struct {
		name    string
		req     *EstimateRequest
		wantErr bool
	}{
		{"empty request", &EstimateRequest{}, false},
		{"full request", &EstimateRequest{Brand: "Ford", Model: "F-150", ModelYear: year(2020), Mileage: num(50000), HP: num(250)}, false},
		{"negative mileage", &EstimateRequest{Mileage: num(-1)}, true},
		{"year too old", &EstimateRequest{ModelYear: year(1850)}, true},
		{"negative hp", &EstimateRequest{HP: num(-5)}, true},
		{"negative cylinders", &EstimateRequest{Cylinders: num(-6)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRun_Excluded(t *testing.T) {
	r := &Run{UnparsablePrice: 2, BelowMin: 3, AboveMax: 1}
	if got := r.Excluded(); got != 6 {
		t.Errorf("Excluded() = %d, want 6", got)
	}
}
