// Package features turns raw listing fields into the fixed-schema feature
// record consumed by the price model. The same Assemble call serves training
// and inference.
package features

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Kind tells the learner how to treat a column.
type Kind string

const (
	Categorical Kind = "categorical"
	Numeric     Kind = "numeric"
)

// Field is one named column of the feature record.
type Field struct {
	Name string
	Kind Kind
}

// Column names. They match the headers of the listings dataset.
const (
	FieldBrand        = "brand"
	FieldModel        = "model"
	FieldFuelType     = "fuel_type"
	FieldExtColor     = "ext_col"
	FieldIntColor     = "int_col"
	FieldCleanTitle   = "clean_title"
	FieldAccident     = "accident"
	FieldTransmission = "transmission_type"
	FieldAge          = "age"
	FieldMileage      = "milage_num"
	FieldHorsepower   = "hp"
	FieldLiters       = "liters"
	FieldCylinders    = "cylinders"
	FieldTurbo        = "is_turbo"
	FieldHybrid       = "is_hybrid"
)

// Schema is the single declaration of column order. Categorical indices,
// the fingerprint stored with every model and Record.Row all derive from it.
var Schema = []Field{
	{FieldBrand, Categorical},
	{FieldModel, Categorical},
	{FieldFuelType, Categorical},
	{FieldExtColor, Categorical},
	{FieldIntColor, Categorical},
	{FieldCleanTitle, Categorical},
	{FieldAccident, Categorical},
	{FieldTransmission, Categorical},
	{FieldAge, Numeric},
	{FieldMileage, Numeric},
	{FieldHorsepower, Numeric},
	{FieldLiters, Numeric},
	{FieldCylinders, Numeric},
	{FieldTurbo, Numeric},
	{FieldHybrid, Numeric},
}

// FieldNames returns the column names in schema order.
func FieldNames() []string {
	names := make([]string, len(Schema))
	for i, f := range Schema {
		names[i] = f.Name
	}
	return names
}

// CategoricalIndices returns the positions of the categorical columns.
func CategoricalIndices() []int {
	var idx []int
	for i, f := range Schema {
		if f.Kind == Categorical {
			idx = append(idx, i)
		}
	}
	return idx
}

// NumericFields returns the names of the numeric columns in schema order.
func NumericFields() []string {
	var names []string
	for _, f := range Schema {
		if f.Kind == Numeric {
			names = append(names, f.Name)
		}
	}
	return names
}

// Fingerprint hashes the ordered names and kinds of the schema.
func Fingerprint() string {
	return FingerprintOf(Schema)
}

// FingerprintOf hashes an arbitrary field list the same way as Fingerprint.
func FingerprintOf(fields []Field) string {
	var b strings.Builder
	for _, f := range fields {
		b.WriteString(f.Name)
		b.WriteByte(':')
		b.WriteString(string(f.Kind))
		b.WriteByte('\n')
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:8])
}
