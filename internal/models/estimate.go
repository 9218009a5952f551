// Package models defines the request, response and record types shared by the
// trainer, the registry and the HTTP server.
package models

import "fmt"

// EstimateRequest is the input for a price estimate. Omitted fields are
// treated as missing: categoricals become "Unknown" and numerics are filled
// with the model's training medians.
type EstimateRequest struct {
	Brand        string   `json:"brand"`
	Model        string   `json:"model"`
	ModelYear    *int     `json:"model_year,omitempty"`
	Mileage      *float64 `json:"mileage,omitempty"`
	FuelType     string   `json:"fuel_type,omitempty"`
	ExtCol       string   `json:"ext_col,omitempty"`
	IntCol       string   `json:"int_col,omitempty"`
	CleanTitle   string   `json:"clean_title,omitempty"`
	Accident     string   `json:"accident,omitempty"`
	Transmission string   `json:"transmission,omitempty"`
	HP           *float64 `json:"hp,omitempty"`
	Liters       *float64 `json:"liters,omitempty"`
	Cylinders    *float64 `json:"cylinders,omitempty"`
	IsTurbo      bool     `json:"is_turbo,omitempty"`
	// Engine is free engine text ("3.5L V6 Twin Turbo"). When set it is
	// parsed and the structured engine fields are ignored.
	Engine string `json:"engine,omitempty"`
}

// Validate rejects values no listing can have.
func (r *EstimateRequest) Validate() error {
	if r.Mileage != nil && *r.Mileage < 0 {
		return fmt.Errorf("mileage cannot be negative")
	}
	if r.ModelYear != nil && (*r.ModelYear < 1900 || *r.ModelYear > 2200) {
		return fmt.Errorf("model_year %d out of range", *r.ModelYear)
	}
	for name, v := range map[string]*float64{"hp": r.HP, "liters": r.Liters, "cylinders": r.Cylinders} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s cannot be negative", name)
		}
	}
	return nil
}

// Estimate is a point estimate with a symmetric display band.
// Low and High are Estimate scaled by 1-Margin and 1+Margin; they are not a
// statistical confidence interval.
type Estimate struct {
	Estimate      float64       `json:"estimate"`
	Low           float64       `json:"low"`
	High          float64       `json:"high"`
	Margin        float64       `json:"margin"`
	Currency      string        `json:"currency"`
	ModelVersion  string        `json:"model_version"`
	ReferenceYear int           `json:"reference_year"`
	Comparables   []*Comparable `json:"comparables,omitempty"`
}
