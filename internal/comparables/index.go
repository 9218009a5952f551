// Package comparables indexes admissible training listings with Bleve so an
// estimate can be shown next to similar cars that actually sold.
package comparables

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/carprice/internal/dataset"
	"github.com/hyperjump/carprice/internal/models"
	"github.com/hyperjump/carprice/internal/textparse"
)

// ErrIndexNotFound is returned by Open when no index exists at the path.
var ErrIndexNotFound = errors.New("comparables index not found")

const batchSize = 500

// Listing is one admissible listing as stored in the index.
type Listing struct {
	ID           string
	Brand        string
	Model        string
	ModelYear    int // 0 when unknown
	Mileage      float64
	Price        float64
	Engine       string
	Transmission string
	FuelType     string
}

// ListingID returns a stable ID for the listing at line of source.
func ListingID(source string, line int) string {
	hash := sha256.Sum256([]byte(source + ":" + strconv.Itoa(line)))
	return "listing:" + hex.EncodeToString(hash[:12])
}

// FromExample converts a conditioned training example. Mileage is taken from
// the listing text, not the imputed record.
func FromExample(source string, ex dataset.Example) Listing {
	l := Listing{
		ID:           ListingID(source, ex.Listing.Line),
		Brand:        strings.TrimSpace(ex.Listing.Raw.Brand),
		Model:        strings.TrimSpace(ex.Listing.Raw.Model),
		Mileage:      math.NaN(),
		Price:        ex.Price,
		Engine:       strings.TrimSpace(ex.Listing.Raw.Engine),
		Transmission: ex.Record.TransmissionType,
		FuelType:     ex.Record.FuelType,
	}
	if ex.Listing.Raw.ModelYear != nil {
		l.ModelYear = *ex.Listing.Raw.ModelYear
	}
	if v, ok := textparse.ParseCurrency(ex.Listing.Raw.Mileage); ok {
		l.Mileage = v
	}
	return l
}

// fields is the indexed form; missing numerics are omitted.
func (l Listing) fields() map[string]interface{} {
	doc := map[string]interface{}{
		"brand":        l.Brand,
		"brand_key":    strings.ToLower(l.Brand),
		"model":        l.Model,
		"price":        l.Price,
		"engine":       l.Engine,
		"transmission": l.Transmission,
		"fuel_type":    l.FuelType,
	}
	if l.ModelYear > 0 {
		doc["model_year"] = float64(l.ModelYear)
	}
	if !math.IsNaN(l.Mileage) {
		doc["mileage"] = l.Mileage
	}
	return doc
}

// Index is a Bleve-backed listing index.
type Index struct {
	index bleve.Index
}

func listingMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	doc := bleve.NewDocumentMapping()
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	doc.AddFieldMappingsAt("brand", text)
	doc.AddFieldMappingsAt("model", text)
	doc.AddFieldMappingsAt("engine", text)

	exact := bleve.NewTextFieldMapping()
	exact.Analyzer = keyword.Name
	doc.AddFieldMappingsAt("brand_key", exact)
	doc.AddFieldMappingsAt("transmission", exact)
	doc.AddFieldMappingsAt("fuel_type", exact)

	num := bleve.NewNumericFieldMapping()
	doc.AddFieldMappingsAt("model_year", num)
	doc.AddFieldMappingsAt("mileage", num)
	doc.AddFieldMappingsAt("price", num)

	im.AddDocumentMapping("listing", doc)
	im.DefaultType = "listing"
	im.DefaultMapping = doc
	return im
}

// Build replaces any index at path with one holding listings.
func Build(ctx context.Context, path string, listings []Listing) (*Index, error) {
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("failed to remove old index: %w", err)
	}
	index, err := bleve.New(path, listingMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	idx := &Index{index: index}

	batch := index.NewBatch()
	for _, l := range listings {
		if err := ctx.Err(); err != nil {
			_ = idx.Close()
			return nil, err
		}
		if err := batch.Index(l.ID, l.fields()); err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("failed to index listing %s: %w", l.ID, err)
		}
		if batch.Size() >= batchSize {
			if err := index.Batch(batch); err != nil {
				_ = idx.Close()
				return nil, fmt.Errorf("failed to write batch: %w", err)
			}
			batch.Reset()
		}
	}
	if batch.Size() > 0 {
		if err := index.Batch(batch); err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("failed to write batch: %w", err)
		}
	}
	return idx, nil
}

// Open opens an existing index read-only.
func Open(path string) (*Index, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, path)
		}
		return nil, err
	}
	index, err := bleve.OpenUsing(path, map[string]interface{}{"read_only": true})
	if err != nil {
		return nil, fmt.Errorf("failed to open Bleve index: %w", err)
	}
	return &Index{index: index}, nil
}

// SearchOption narrows or re-ranks a search.
type SearchOption func(*searchOptions)

type searchOptions struct {
	modelYear int
}

// NearYear boosts listings within two model years of year.
func NearYear(year int) SearchOption {
	return func(o *searchOptions) { o.modelYear = year }
}

// Search returns up to limit listings of brand whose model matches model,
// best match first. An empty brand matches every brand.
func (x *Index) Search(ctx context.Context, brand, model string, limit int, opts ...SearchOption) ([]*models.Comparable, error) {
	var o searchOptions
	for _, opt := range opts {
		opt(&o)
	}
	if limit <= 0 {
		limit = 5
	}

	q := bleve.NewBooleanQuery()
	musts := 0
	if b := strings.ToLower(strings.TrimSpace(brand)); b != "" {
		bq := bleve.NewTermQuery(b)
		bq.SetField("brand_key")
		q.AddMust(bq)
		musts++
	}
	if m := strings.TrimSpace(model); m != "" {
		mq := bleve.NewMatchQuery(m)
		mq.SetField("model")
		q.AddMust(mq)
		musts++

		phrase := bleve.NewMatchPhraseQuery(m)
		phrase.SetField("model")
		phrase.SetBoost(2)
		q.AddShould(phrase)
	}
	if o.modelYear > 0 {
		lo, hi := float64(o.modelYear-2), float64(o.modelYear+2)
		inclusive := true
		yq := bleve.NewNumericRangeInclusiveQuery(&lo, &hi, &inclusive, &inclusive)
		yq.SetField("model_year")
		q.AddShould(yq)
	}

	var query blevequery.Query = q
	if musts == 0 {
		query = bleve.NewMatchAllQuery()
	}

	req := bleve.NewSearchRequest(query)
	req.Size = limit
	req.Fields = []string{"*"}
	res, err := x.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	out := make([]*models.Comparable, 0, len(res.Hits))
	for _, hit := range res.Hits {
		c := &models.Comparable{
			ID:           hit.ID,
			Brand:        stringField(hit.Fields, "brand"),
			Model:        stringField(hit.Fields, "model"),
			ModelYear:    int(numberField(hit.Fields, "model_year")),
			Mileage:      numberField(hit.Fields, "mileage"),
			Price:        numberField(hit.Fields, "price"),
			Engine:       stringField(hit.Fields, "engine"),
			Transmission: stringField(hit.Fields, "transmission"),
			FuelType:     stringField(hit.Fields, "fuel_type"),
			Score:        hit.Score,
		}
		out = append(out, c)
	}
	return out, nil
}

func stringField(fields map[string]interface{}, name string) string {
	s, _ := fields[name].(string)
	return s
}

func numberField(fields map[string]interface{}, name string) float64 {
	f, _ := fields[name].(float64)
	return f
}

// DocCount returns the number of indexed listings.
func (x *Index) DocCount() (uint64, error) {
	return x.index.DocCount()
}

// Close closes the Bleve index.
func (x *Index) Close() error {
	return x.index.Close()
}
