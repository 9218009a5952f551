package dataset

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"testing"

	"github.com/hyperjump/carprice/internal/features"
)

func listing(price string, year int, engine string) Listing {
	y := year
	return Listing{Price: price, Raw: features.RawRecord{Brand: "Ford", ModelYear: &y, Mileage: "10,000", Engine: engine}}
}

func TestFilterPrice(t *testing.T) {
	in := []Listing{
		listing("$1,500", 2020, ""),
		listing("$2,000", 2020, ""),
		listing("$150,000", 2020, ""),
		listing("$150,001", 2020, ""),
		listing("call", 2020, ""),
		listing("$30,000", 2020, ""),
	}
	kept, prices, st := FilterPrice(in, DefaultBounds())
	if len(kept) != 3 {
		t.Fatalf("kept = %d, want 3 (bounds are inclusive)", len(kept))
	}
	if !reflect.DeepEqual(prices, []float64{2000, 150000, 30000}) {
		t.Errorf("prices = %v", prices)
	}
	if st.BelowMin != 1 || st.AboveMax != 1 || st.Unparsable != 1 || st.Excluded() != 3 {
		t.Errorf("stats = %+v", st)
	}
}

func TestImpute_UsesBatchMedian(t *testing.T) {
	recs := []features.Record{
		features.Assemble(features.RawRecord{Engine: "100HP"}, 2026),
		features.Assemble(features.RawRecord{Engine: "200HP"}, 2026),
		features.Assemble(features.RawRecord{Engine: "400HP"}, 2026),
		features.Assemble(features.RawRecord{Engine: "3.0L"}, 2026),
	}
	m, touched := Impute(recs)
	if m[features.FieldHorsepower] != 200 {
		t.Errorf("hp median = %v, want 200", m[features.FieldHorsepower])
	}
	if recs[3].Horsepower != 200 {
		t.Errorf("missing hp filled with %v, want 200", recs[3].Horsepower)
	}
	if m[features.FieldLiters] != 3.0 || recs[0].Liters != 3.0 {
		t.Errorf("liters median = %v, filled %v", m[features.FieldLiters], recs[0].Liters)
	}
	if _, ok := m[features.FieldAge]; ok {
		t.Error("age has no values and must have no median")
	}
	if touched != 4 {
		t.Errorf("touched = %d, want 4", touched)
	}

	// a different batch yields a different median
	other := []features.Record{features.Assemble(features.RawRecord{Engine: "500HP"}, 2026)}
	m2, _ := Impute(other)
	if m2[features.FieldHorsepower] != 500 {
		t.Errorf("median must follow the batch, got %v", m2[features.FieldHorsepower])
	}
}

func TestTargetRoundTrip(t *testing.T) {
	for _, p := range []float64{0, 1, 2000, 31500.55, 150000, 1e7} {
		got := InverseTarget(TransformTarget(p))
		if math.Abs(got-p) > 1e-9*math.Max(1, p) {
			t.Errorf("round trip of %v = %v", p, got)
		}
	}
}

func TestSplit(t *testing.T) {
	train, val, err := Split(100, 0.2, 42)
	if err != nil {
		t.Fatal(err)
	}
	if len(train) != 80 || len(val) != 20 {
		t.Fatalf("split sizes = %d/%d", len(train), len(val))
	}
	seen := make(map[int]bool)
	for _, i := range append(append([]int(nil), train...), val...) {
		if seen[i] {
			t.Fatalf("index %d appears twice", i)
		}
		seen[i] = true
	}
	train2, val2, _ := Split(100, 0.2, 42)
	if !reflect.DeepEqual(train, train2) || !reflect.DeepEqual(val, val2) {
		t.Error("same seed must give the same split")
	}
	_, val3, _ := Split(100, 0.2, 7)
	if reflect.DeepEqual(val, val3) {
		t.Error("different seeds should give different splits")
	}
	if _, _, err := Split(10, 1, 1); !errors.Is(err, ErrInvalidSplit) {
		t.Errorf("err = %v, want ErrInvalidSplit", err)
	}
	tr, v, _ := Split(1, 0.2, 1)
	if len(tr) != 1 || len(v) != 0 {
		t.Errorf("single row must stay in train: %v/%v", tr, v)
	}
}

func TestCondition(t *testing.T) {
	tbl := &Table{Source: "test"}
	for i := 0; i < 50; i++ {
		engine := fmt.Sprintf("%dHP 2.0L", 150+i)
		if i%10 == 0 {
			engine = "Electric"
		}
		tbl.Listings = append(tbl.Listings, listing(fmt.Sprintf("$%d", 10000+i*100), 2016+i%8, engine))
	}
	tbl.Listings = append(tbl.Listings, listing("$500", 2020, ""), listing("$900,000", 2020, ""))

	c, err := Condition(tbl, Options{Bounds: DefaultBounds(), TestFraction: 0.2, Seed: 42, ReferenceYear: 2026})
	if err != nil {
		t.Fatal(err)
	}
	if c.Stats.Excluded() != 2 || c.Stats.Kept != 50 {
		t.Errorf("stats = %+v", c.Stats)
	}
	if c.Stats.Train != 40 || c.Stats.Validation != 10 {
		t.Errorf("split = %d/%d", c.Stats.Train, c.Stats.Validation)
	}
	for _, ex := range append(append([]Example(nil), c.Train...), c.Validation...) {
		for _, name := range []string{features.FieldHorsepower, features.FieldLiters, features.FieldAge, features.FieldMileage} {
			if v, _ := ex.Record.Numeric(name); math.IsNaN(v) {
				t.Fatalf("%s still missing after imputation", name)
			}
		}
	}
	for i, ex := range c.Train {
		if c.TrainTarget[i] != TransformTarget(ex.Price) {
			t.Fatalf("target %d is not log1p(price)", i)
		}
	}
	if _, ok := c.Medians[features.FieldHorsepower]; !ok {
		t.Error("medians must be returned for persistence")
	}
}

func TestCondition_NoAdmissibleRows(t *testing.T) {
	tbl := &Table{Source: "test", Listings: []Listing{listing("$1", 2020, "")}}
	_, err := Condition(tbl, Options{Bounds: DefaultBounds(), TestFraction: 0.2})
	if !errors.Is(err, ErrNoAdmissibleRows) {
		t.Errorf("err = %v, want ErrNoAdmissibleRows", err)
	}
	_, err = Condition(tbl, Options{Bounds: Bounds{Min: 10, Max: 1}})
	if !errors.Is(err, ErrInvalidBounds) {
		t.Errorf("err = %v, want ErrInvalidBounds", err)
	}
}
