package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

const sampleCSV = `brand,model,model_year,milage,fuel_type,engine,transmission,ext_col,int_col,accident,clean_title,price
Ford,Utility Police Interceptor Base,2013,"51,000 mi.",E85 Flex Fuel,300.0HP 3.7L V6 Cylinder Engine Flex Fuel Capability,6-Speed A/T,Black,Black,At least 1 accident or damage reported,Yes,"$10,300"
Hyundai,Palisade SEL,2021,"34,742 mi.",Gasoline,3.8L V6 24V GDI DOHC,8-Speed Automatic,Moonlight Cloud,Gray,At least 1 accident or damage reported,Yes,"$38,005"
Lexus,RX 350 RX 350,2022,"22,372 mi.",Gasoline,3.5 Liter DOHC,Automatic,Blue,Black,None reported,,"$54,598"
`

func TestLoadCSV(t *testing.T) {
	tbl, err := LoadCSV(strings.NewReader(sampleCSV), "sample.csv")
	if err != nil {
		t.Fatal(err)
	}
	if len(tbl.Listings) != 3 {
		t.Fatalf("listings = %d, want 3", len(tbl.Listings))
	}
	first := tbl.Listings[0]
	if first.Price != "$10,300" || first.Raw.Brand != "Ford" || first.Raw.Mileage != "51,000 mi." {
		t.Errorf("first listing = %+v", first)
	}
	if first.Raw.ModelYear == nil || *first.Raw.ModelYear != 2013 {
		t.Errorf("model year = %v", first.Raw.ModelYear)
	}
	if first.Line != 2 {
		t.Errorf("line = %d, want 2", first.Line)
	}
	if tbl.Listings[2].Raw.CleanTitle != "" {
		t.Errorf("empty clean_title should stay empty, got %q", tbl.Listings[2].Raw.CleanTitle)
	}
}

func TestLoadCSV_MissingColumn(t *testing.T) {
	csv := strings.Replace(sampleCSV, "engine,", "motor,", 1)
	_, err := LoadCSV(strings.NewReader(csv), "broken.csv")
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("err = %v, want ErrMissingColumn", err)
	}
	var se *SchemaError
	if !errors.As(err, &se) || se.Column != ColEngine {
		t.Errorf("schema error = %+v, want column %q", se, ColEngine)
	}
}

func TestLoadCSV_Aliases(t *testing.T) {
	csv := strings.Replace(sampleCSV, "milage", "Mileage", 1)
	tbl, err := LoadCSV(strings.NewReader(csv), "alias.csv")
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Listings[1].Raw.Mileage != "34,742 mi." {
		t.Errorf("mileage via alias = %q", tbl.Listings[1].Raw.Mileage)
	}
}

func TestLoadCSV_HeaderOnly(t *testing.T) {
	header := strings.SplitN(sampleCSV, "\n", 2)[0]
	_, err := LoadCSV(strings.NewReader(header+"\n"), "empty.csv")
	if !errors.Is(err, ErrEmptyDataset) {
		t.Errorf("err = %v, want ErrEmptyDataset", err)
	}
}

func TestLoad_XLSX(t *testing.T) {
	rows, err := LoadCSV(strings.NewReader(sampleCSV), "src")
	if err != nil {
		t.Fatal(err)
	}
	f := excelize.NewFile()
	defer f.Close()
	header := []interface{}{"brand", "model", "model_year", "milage", "fuel_type", "engine",
		"transmission", "ext_col", "int_col", "accident", "clean_title", "price"}
	if err := f.SetSheetRow("Sheet1", "A1", &header); err != nil {
		t.Fatal(err)
	}
	for i, l := range rows.Listings {
		row := []interface{}{l.Raw.Brand, l.Raw.Model, "2020.0", l.Raw.Mileage, l.Raw.FuelType, l.Raw.Engine,
			l.Raw.Transmission, l.Raw.ExtColor, l.Raw.IntColor, l.Raw.Accident, l.Raw.CleanTitle, l.Price}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	path := filepath.Join(t.TempDir(), "cars.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}

	tbl, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(tbl.Listings) != 3 {
		t.Fatalf("listings = %d, want 3", len(tbl.Listings))
	}
	if y := tbl.Listings[0].Raw.ModelYear; y == nil || *y != 2020 {
		t.Errorf("model year from 2020.0 = %v", y)
	}
	if tbl.Listings[1].Price != "$38,005" {
		t.Errorf("price = %q", tbl.Listings[1].Price)
	}
}

func TestLoad_UnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cars.json")
	if err := os.WriteFile(path, []byte("{}"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestParseYear(t *testing.T) {
	tests := []struct {
		raw  string
		want int
		ok   bool
	}{
		{"2019", 2019, true},
		{"2019.0", 2019, true},
		{"2019.5", 0, false},
		{"", 0, false},
		{"n/a", 0, false},
	}
	for _, tt := range tests {
		got := parseYear(tt.raw)
		if (got != nil) != tt.ok || (got != nil && *got != tt.want) {
			t.Errorf("parseYear(%q) = %v, want %d ok=%v", tt.raw, got, tt.want, tt.ok)
		}
	}
}
