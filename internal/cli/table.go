package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/carprice/pkg/utils"
)

// table lays out columns by terminal cell width so wide runes stay aligned.
type table struct {
	headers []string
	rows    [][]string
	right   map[int]bool
}

func newTable(headers ...string) *table {
	return &table{headers: headers, right: map[int]bool{}}
}

func (t *table) alignRight(cols ...int) {
	for _, c := range cols {
		t.right[c] = true
	}
}

func (t *table) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) widths() []int {
	w := make([]int, len(t.headers))
	for i, h := range t.headers {
		w[i] = utils.Width(h)
	}
	for _, row := range t.rows {
		for i, c := range row {
			if i < len(w) && utils.Width(c) > w[i] {
				w[i] = utils.Width(c)
			}
		}
	}
	return w
}

func (t *table) line(w io.Writer, cells []string, widths []int) {
	parts := make([]string, len(widths))
	for i := range widths {
		var c string
		if i < len(cells) {
			c = cells[i]
		}
		if t.right[i] {
			parts[i] = utils.PadLeft(c, widths[i])
		} else {
			parts[i] = utils.PadRight(c, widths[i])
		}
	}
	fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
}

// write renders headers and rows.
func (t *table) write(w io.Writer) {
	widths := t.widths()
	t.line(w, t.headers, widths)
	for _, row := range t.rows {
		t.line(w, row, widths)
	}
}

// writeBody renders rows only; used for key/value listings.
func (t *table) writeBody(w io.Writer) {
	widths := t.widths()
	for _, row := range t.rows {
		t.line(w, row, widths)
	}
}
