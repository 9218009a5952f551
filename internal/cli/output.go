// Package cli provides output helpers for the carprice command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/hyperjump/carprice/internal/artifact"
	"github.com/hyperjump/carprice/internal/models"
	"github.com/hyperjump/carprice/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputJSON:
		return OutputFormat(s), nil
	}
	return "", fmt.Errorf("unknown output format %q; use text or json", s)
}

// Status is the shape of the GET /api/v1/status response.
type Status struct {
	Model            artifact.StatusInfo `json:"model"`
	InferenceEnabled bool                `json:"inference_enabled"`
	ReferenceYear    int                 `json:"reference_year"`
	DisplayMargin    float64             `json:"display_margin"`
	Comparables      bool                `json:"comparables_enabled"`
	Predictions      *int64              `json:"predictions,omitempty"`
	LatestRun        *models.Run         `json:"latest_run,omitempty"`
	DiskUsageBytes   *int64              `json:"disk_usage_bytes,omitempty"`
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// FormatMoney renders v rounded to whole units with thousands separators.
func FormatMoney(v float64, currency string) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	neg := v < 0
	digits := fmt.Sprintf("%.0f", math.Abs(v))
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	s := b.String()
	switch currency {
	case "", "USD":
		s = "$" + s
	default:
		s = s + " " + currency
	}
	if neg {
		s = "-" + s
	}
	return s
}

// WriteEstimate writes an estimate and any attached comparables.
func WriteEstimate(w io.Writer, est *models.Estimate, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, est)
	}
	fmt.Fprintf(w, "Estimated price: %s\n", FormatMoney(est.Estimate, est.Currency))
	fmt.Fprintf(w, "Range (±%.0f%%):   %s - %s\n", est.Margin*100,
		FormatMoney(est.Low, est.Currency), FormatMoney(est.High, est.Currency))
	fmt.Fprintf(w, "Model %s, reference year %d\n", est.ModelVersion, est.ReferenceYear)
	if len(est.Comparables) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Comparable listings:")
		WriteComparablesTable(w, est.Comparables, est.Currency)
	}
	return nil
}

// WriteComparablesTable writes comparables as an aligned table.
func WriteComparablesTable(w io.Writer, cs []*models.Comparable, currency string) {
	t := newTable("BRAND", "MODEL", "YEAR", "MILEAGE", "PRICE", "ENGINE")
	t.alignRight(2, 3, 4)
	for _, c := range cs {
		year, miles := "", ""
		if c.ModelYear > 0 {
			year = fmt.Sprint(c.ModelYear)
		}
		if c.Mileage > 0 {
			miles = strings.TrimPrefix(FormatMoney(c.Mileage, "USD"), "$")
		}
		t.add(c.Brand, utils.Truncate(c.Model, 28), year, miles, FormatMoney(c.Price, currency), utils.Truncate(c.Engine, 32))
	}
	t.write(w)
}

// WriteRuns writes training runs, newest first.
func WriteRuns(w io.Writer, runs []*models.Run, format OutputFormat) error {
	if format == OutputJSON {
		if runs == nil {
			runs = []*models.Run{}
		}
		return writeJSON(w, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No training runs recorded.")
		return nil
	}
	t := newTable("ID", "CREATED", "ROWS", "EXCLUDED", "VAL MAE", "TREES", "YEAR")
	t.alignRight(2, 3, 4, 5, 6)
	for _, r := range runs {
		t.add(
			utils.Truncate(r.ID, 11),
			r.CreatedAt.Local().Format(time.DateTime),
			fmt.Sprint(r.TrainRows+r.ValidationRows),
			fmt.Sprint(r.Excluded()),
			FormatMoney(r.ValidationMAE, "USD"),
			fmt.Sprint(r.Trees),
			fmt.Sprint(r.ReferenceYear),
		)
	}
	t.write(w)
	return nil
}

// WriteTrainingReport writes the summary printed after `carprice train`.
func WriteTrainingReport(w io.Writer, run *models.Run, comparables int, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, run)
	}
	t := newTable("", "")
	t.add("run", run.ID)
	t.add("dataset", run.DatasetPath)
	t.add("reference year", fmt.Sprint(run.ReferenceYear))
	t.add("rows read", fmt.Sprint(run.InputRows))
	t.add("excluded", fmt.Sprintf("%d (unparsable %d, below min %d, above max %d)",
		run.Excluded(), run.UnparsablePrice, run.BelowMin, run.AboveMax))
	t.add("train / validation", fmt.Sprintf("%d / %d", run.TrainRows, run.ValidationRows))
	t.add("imputed rows", fmt.Sprint(run.ImputedRows))
	t.add("best iteration", fmt.Sprint(run.BestIteration+1))
	t.add("trees", fmt.Sprint(run.Trees))
	if comparables > 0 {
		t.add("comparables", fmt.Sprint(comparables))
	}
	t.add("duration", (time.Duration(run.DurationMS) * time.Millisecond).String())
	t.writeBody(w)
	fmt.Fprintf(w, "\nFinal Model MAE: %s\n", FormatMoney(run.ValidationMAE, "USD"))
	fmt.Fprintf(w, "Model saved to %s\n", run.ArtifactPath)
	return nil
}

// WriteStatus writes a status snapshot.
func WriteStatus(w io.Writer, st *Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	t := newTable("", "")
	t.add("model", string(st.Model.Status))
	t.add("inference", map[bool]string{true: "enabled", false: "disabled"}[st.InferenceEnabled])
	if st.Model.Error != "" {
		t.add("error", utils.Truncate(st.Model.Error, 80))
	}
	t.add("artifact", st.Model.Path)
	if st.Model.Version != "" {
		t.add("version", st.Model.Version)
		t.add("trained", st.Model.TrainedAt.Local().Format(time.DateTime))
		t.add("validation MAE", FormatMoney(st.Model.ValidationMAE, "USD"))
	}
	t.add("reference year", fmt.Sprint(st.ReferenceYear))
	t.add("display margin", fmt.Sprintf("±%.0f%%", st.DisplayMargin*100))
	t.add("comparables", map[bool]string{true: "enabled", false: "disabled"}[st.Comparables])
	if st.Predictions != nil {
		t.add("predictions", fmt.Sprint(*st.Predictions))
	}
	if st.LatestRun != nil {
		t.add("latest run", st.LatestRun.ID)
	}
	if st.DiskUsageBytes != nil {
		t.add("disk usage", fmt.Sprintf("%d bytes", *st.DiskUsageBytes))
	}
	t.writeBody(w)
	return nil
}
