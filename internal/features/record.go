package features

import (
	"fmt"
	"math"

	"github.com/hyperjump/carprice/internal/gbm"
	"github.com/hyperjump/carprice/internal/textparse"
)

// Unknown replaces missing categorical values.
const Unknown = "Unknown"

// RawRecord is one listing as it arrives from a dataset row or a request.
// Empty strings mean missing.
type RawRecord struct {
	Brand        string
	Model        string
	ModelYear    *int
	Mileage      string
	Engine       string
	Transmission string
	FuelType     string
	ExtColor     string
	IntColor     string
	CleanTitle   string
	Accident     string
	// ParsedEngine, when set, is used instead of parsing Engine. Callers that
	// already hold structured engine values (the estimate API) use it.
	ParsedEngine *textparse.Engine
}

// Record is the assembled feature record. Missing numeric values are NaN.
type Record struct {
	Brand            string
	Model            string
	FuelType         string
	ExtColor         string
	IntColor         string
	CleanTitle       string
	Accident         string
	TransmissionType string

	Age        float64
	Mileage    float64
	Horsepower float64
	Liters     float64
	Cylinders  float64
	Turbo      float64
	Hybrid     float64
}

// Categorical returns the value of a categorical column by name.
func (r *Record) Categorical(name string) (string, error) {
	switch name {
	case FieldBrand:
		return r.Brand, nil
	case FieldModel:
		return r.Model, nil
	case FieldFuelType:
		return r.FuelType, nil
	case FieldExtColor:
		return r.ExtColor, nil
	case FieldIntColor:
		return r.IntColor, nil
	case FieldCleanTitle:
		return r.CleanTitle, nil
	case FieldAccident:
		return r.Accident, nil
	case FieldTransmission:
		return r.TransmissionType, nil
	}
	return "", fmt.Errorf("%q is not a categorical field", name)
}

// numeric returns a pointer to a numeric column so imputation can fill it.
func (r *Record) numeric(name string) (*float64, error) {
	switch name {
	case FieldAge:
		return &r.Age, nil
	case FieldMileage:
		return &r.Mileage, nil
	case FieldHorsepower:
		return &r.Horsepower, nil
	case FieldLiters:
		return &r.Liters, nil
	case FieldCylinders:
		return &r.Cylinders, nil
	case FieldTurbo:
		return &r.Turbo, nil
	case FieldHybrid:
		return &r.Hybrid, nil
	}
	return nil, fmt.Errorf("%q is not a numeric field", name)
}

// Numeric returns the value of a numeric column by name.
func (r *Record) Numeric(name string) (float64, error) {
	p, err := r.numeric(name)
	if err != nil {
		return 0, err
	}
	return *p, nil
}

// SetNumeric overwrites a numeric column by name.
func (r *Record) SetNumeric(name string, v float64) error {
	p, err := r.numeric(name)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// FillMissing replaces NaN numeric columns with the value stored for that
// column in fill. Columns without an entry stay NaN.
func (r *Record) FillMissing(fill map[string]float64) {
	for _, name := range NumericFields() {
		p, _ := r.numeric(name)
		if !math.IsNaN(*p) {
			continue
		}
		if v, ok := fill[name]; ok {
			*p = v
		}
	}
}

// Row emits the record as a learner row in Schema order.
func (r *Record) Row() gbm.Row {
	row := make(gbm.Row, len(Schema))
	for i, f := range Schema {
		if f.Kind == Categorical {
			v, _ := r.Categorical(f.Name)
			row[i] = gbm.Cat(v)
			continue
		}
		v, _ := r.Numeric(f.Name)
		row[i] = gbm.Num(v)
	}
	return row
}

// Rows converts a batch of records.
func Rows(records []Record) []gbm.Row {
	rows := make([]gbm.Row, len(records))
	for i := range records {
		rows[i] = records[i].Row()
	}
	return rows
}
