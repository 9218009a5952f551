package features

import (
	"math"
	"strings"

	"github.com/hyperjump/carprice/internal/textparse"
)

// Assemble builds the feature record for raw. It is pure: the same raw record
// and reference year always produce the same record, which is what lets the
// training and serving paths share it.
func Assemble(raw RawRecord, referenceYear int) Record {
	engine := textparse.ParseEngine(raw.Engine)
	if raw.ParsedEngine != nil {
		engine = *raw.ParsedEngine
	}

	age := math.NaN()
	if raw.ModelYear != nil {
		age = float64(referenceYear - *raw.ModelYear)
	}
	mileage := math.NaN()
	if v, ok := textparse.ParseCurrency(raw.Mileage); ok {
		mileage = v
	}

	return Record{
		Brand:            category(raw.Brand),
		Model:            category(raw.Model),
		FuelType:         category(raw.FuelType),
		ExtColor:         category(raw.ExtColor),
		IntColor:         category(raw.IntColor),
		CleanTitle:       category(raw.CleanTitle),
		Accident:         category(raw.Accident),
		TransmissionType: textparse.ClassifyTransmission(raw.Transmission),

		Age:        age,
		Mileage:    mileage,
		Horsepower: engine.Horsepower,
		Liters:     engine.Liters,
		Cylinders:  engine.Cylinders,
		Turbo:      engine.TurboFlag(),
		Hybrid:     engine.HybridFlag(),
	}
}

func category(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return Unknown
	}
	return s
}
