// Package dataset loads listing tables and conditions them for training:
// schema checks, price filtering, median imputation, log-target transform and
// the train/validation split.
package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/carprice/internal/features"
)

// Column names of the training table.
const (
	ColPrice        = "price"
	ColMileage      = "milage"
	ColModelYear    = "model_year"
	ColEngine       = "engine"
	ColTransmission = "transmission"
	ColBrand        = "brand"
	ColModel        = "model"
	ColFuelType     = "fuel_type"
	ColExtColor     = "ext_col"
	ColIntColor     = "int_col"
	ColCleanTitle   = "clean_title"
	ColAccident     = "accident"
)

// RequiredColumns lists every column training reads.
var RequiredColumns = []string{
	ColPrice, ColMileage, ColModelYear, ColEngine, ColTransmission, ColBrand,
	ColModel, ColFuelType, ColExtColor, ColIntColor, ColCleanTitle, ColAccident,
}

// columnAliases maps alternative header spellings to the canonical name.
var columnAliases = map[string]string{
	"mileage":         ColMileage,
	"exterior_color":  ColExtColor,
	"interior_color":  ColIntColor,
	"accident_status": ColAccident,
}

var (
	// ErrMissingColumn is wrapped by SchemaError.
	ErrMissingColumn = errors.New("required column missing")
	// ErrUnsupportedFormat is returned for files that are neither CSV nor XLSX.
	ErrUnsupportedFormat = errors.New("unsupported dataset format")
	// ErrEmptyDataset is returned when the table has a header and no rows.
	ErrEmptyDataset = errors.New("dataset has no rows")
)

// SchemaError reports a required column absent from a dataset.
type SchemaError struct {
	Source string
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: %s: %q", e.Source, ErrMissingColumn, e.Column)
}

func (e *SchemaError) Unwrap() error { return ErrMissingColumn }

// Listing is one dataset row: the raw price text plus the raw feature fields.
type Listing struct {
	Line  int
	Price string
	Raw   features.RawRecord
}

// Table is a loaded dataset.
type Table struct {
	Source   string
	Listings []Listing
}

// Load reads a CSV or XLSX dataset, chosen by file extension.
func Load(path string) (*Table, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt", "":
		return LoadCSV(bytes.NewReader(content), path)
	case ".xlsx":
		return LoadXLSX(bytes.NewReader(content), path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// LoadCSV parses a CSV table with a header row.
func LoadCSV(r io.Reader, source string) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse CSV %s: %w", source, err)
	}
	return fromRows(rows, source)
}

// LoadXLSX parses the first sheet of a workbook; its first row is the header.
func LoadXLSX(r io.Reader, source string) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open Excel %s: %w", source, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s: %w", source, ErrEmptyDataset)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", sheets[0], err)
	}
	return fromRows(rows, source)
}

func fromRows(rows [][]string, source string) (*Table, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", source, ErrEmptyDataset)
	}
	index := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if canon, ok := columnAliases[name]; ok {
			name = canon
		}
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			return nil, &SchemaError{Source: source, Column: col}
		}
	}
	if len(rows) == 1 {
		return nil, fmt.Errorf("%s: %w", source, ErrEmptyDataset)
	}

	t := &Table{Source: source, Listings: make([]Listing, 0, len(rows)-1)}
	for n, row := range rows[1:] {
		get := func(col string) string {
			i := index[col]
			if i < len(row) {
				return strings.TrimSpace(row[i])
			}
			return ""
		}
		if isBlank(row) {
			continue
		}
		t.Listings = append(t.Listings, Listing{
			Line:  n + 2,
			Price: get(ColPrice),
			Raw: features.RawRecord{
				Brand:        get(ColBrand),
				Model:        get(ColModel),
				ModelYear:    parseYear(get(ColModelYear)),
				Mileage:      get(ColMileage),
				Engine:       get(ColEngine),
				Transmission: get(ColTransmission),
				FuelType:     get(ColFuelType),
				ExtColor:     get(ColExtColor),
				IntColor:     get(ColIntColor),
				CleanTitle:   get(ColCleanTitle),
				Accident:     get(ColAccident),
			},
		})
	}
	return t, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// parseYear accepts "2019" and spreadsheet-style "2019.0"; anything else is
// missing.
func parseYear(s string) *int {
	if s == "" {
		return nil
	}
	if y, err := strconv.Atoi(s); err == nil {
		return &y
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return nil
	}
	y := int(f)
	return &y
}
