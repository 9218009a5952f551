package features

import (
	"reflect"
	"testing"
)

func TestCategoricalIndices(t *testing.T) {
	want := []int{0, 1, 2, 3, 4, 5, 6, 7}
	if got := CategoricalIndices(); !reflect.DeepEqual(got, want) {
		t.Errorf("CategoricalIndices() = %v, want %v", got, want)
	}
	// derived twice, as the training and serving paths each do
	if !reflect.DeepEqual(CategoricalIndices(), CategoricalIndices()) {
		t.Error("categorical indices are not stable")
	}
}

func TestFieldNames(t *testing.T) {
	want := []string{
		"brand", "model", "fuel_type", "ext_col", "int_col", "clean_title", "accident",
		"transmission_type", "age", "milage_num", "hp", "liters", "cylinders", "is_turbo", "is_hybrid",
	}
	if got := FieldNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("FieldNames() = %v", got)
	}
	if n := len(NumericFields()); n != 7 {
		t.Errorf("numeric fields = %d, want 7", n)
	}
}

func TestFingerprint(t *testing.T) {
	if Fingerprint() != FingerprintOf(Schema) {
		t.Fatal("Fingerprint must hash Schema")
	}
	reordered := append([]Field(nil), Schema...)
	reordered[0], reordered[1] = reordered[1], reordered[0]
	if FingerprintOf(reordered) == Fingerprint() {
		t.Error("reordering fields must change the fingerprint")
	}
	rekinded := append([]Field(nil), Schema...)
	rekinded[8].Kind = Categorical
	if FingerprintOf(rekinded) == Fingerprint() {
		t.Error("changing a field kind must change the fingerprint")
	}
	if FingerprintOf(Schema[:len(Schema)-1]) == Fingerprint() {
		t.Error("dropping a field must change the fingerprint")
	}
}
