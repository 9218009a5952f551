package textparse

import (
	"math"
	"testing"
)

func TestParseEngine_Horsepower(t *testing.T) {
	for _, tt := range []struct {
		raw  string
		want float64
	}{
		{"250HP", 250},
		{"300.0HP 3.7L V6 Cylinder Engine Flex Fuel Capability", 300},
		{"180 hp 2.0l", 180},
	} {
		got := ParseEngine(tt.raw)
		if got.Horsepower != tt.want {
			t.Errorf("ParseEngine(%q).Horsepower = %v; want %v", tt.raw, got.Horsepower, tt.want)
		}
	}
}

func TestParseEngine_Liters(t *testing.T) {
	got := ParseEngine("3.5L")
	if got.Liters != 3.5 {
		t.Errorf("liters = %v; want 3.5", got.Liters)
	}
	got = ParseEngine("3.5 Liter DOHC")
	if !math.IsNaN(got.Liters) {
		t.Errorf("liters should be missing when L is part of a word, got %v", got.Liters)
	}
}

func TestParseEngine_Cylinders(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"V8", 8},
		{"6 CYL", 6},
		{"4 Cylinder Engine", 4},
		{"5.0L V8 32V", 8},
		{"12 Cylinder Engine V12", 12},
		// explicit CYL wins over the V layout
		{"V8 6 Cyl", 6},
	}
	for _, tt := range tests {
		got := ParseEngine(tt.raw)
		if got.Cylinders != tt.want {
			t.Errorf("ParseEngine(%q).Cylinders = %v; want %v", tt.raw, got.Cylinders, tt.want)
		}
	}
	if got := ParseEngine("Electric Motor"); !math.IsNaN(got.Cylinders) {
		t.Errorf("cylinders should be missing, got %v", got.Cylinders)
	}
}

func TestParseEngine_Flags(t *testing.T) {
	got := ParseEngine("2.4L Turbo")
	if got.TurboFlag() != 1 {
		t.Error("2.4L Turbo should set the turbo flag")
	}
	if got.HybridFlag() != 0 {
		t.Error("hybrid flag should be 0")
	}
	got = ParseEngine("2.5L I4 Gas/Electric Hybrid")
	if got.TurboFlag() != 0 || got.HybridFlag() != 1 {
		t.Errorf("turbo=%v hybrid=%v; want 0 and 1", got.TurboFlag(), got.HybridFlag())
	}
}

func TestParseEngine_IndependentFields(t *testing.T) {
	got := ParseEngine("250HP")
	if got.Horsepower != 250 {
		t.Errorf("horsepower = %v", got.Horsepower)
	}
	if !math.IsNaN(got.Liters) || !math.IsNaN(got.Cylinders) {
		t.Errorf("liters and cylinders should be missing: %+v", got)
	}
}

func TestParseEngine_Empty(t *testing.T) {
	got := ParseEngine("")
	if !math.IsNaN(got.Horsepower) || !math.IsNaN(got.Liters) || !math.IsNaN(got.Cylinders) {
		t.Errorf("all numeric fields should be missing: %+v", got)
	}
	if got.Turbo || got.Hybrid {
		t.Error("flags should default to false")
	}
}
