package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// TextTable writes an ASCII table with a header row.
type TextTable struct {
	w       io.Writer
	headers []string
	rows    [][]string
}

// NewTextTable creates a table writing to w.
func NewTextTable(w io.Writer) *TextTable {
	return &TextTable{w: w}
}

// Header sets the header cells.
func (t *TextTable) Header(headers []string) {
	t.headers = headers
}

// Append adds rows.
func (t *TextTable) Append(rows ...[]string) {
	t.rows = append(t.rows, rows...)
}

// Render writes the table. A table without headers and rows writes nothing.
func (t *TextTable) Render() error {
	if len(t.headers) == 0 && len(t.rows) == 0 {
		return nil
	}

	widths := t.widths()
	sep := separator(widths)

	lines := []string{sep}
	if len(t.headers) > 0 {
		lines = append(lines, formatRow(t.headers, widths), sep)
	}
	for _, r := range t.rows {
		lines = append(lines, formatRow(r, widths))
	}
	lines = append(lines, sep)

	_, err := fmt.Fprintln(t.w, strings.Join(lines, "\n"))
	return err
}

func (t *TextTable) widths() []int {
	n := len(t.headers)
	for _, r := range t.rows {
		n = max(n, len(r))
	}

	widths := make([]int, n)
	for i := range widths {
		widths[i] = 1
	}
	measure := func(row []string) {
		for i, c := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(flatten(c)))
		}
	}
	measure(t.headers)
	for _, r := range t.rows {
		measure(r)
	}
	return widths
}

func separator(widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = strings.Repeat("-", w+2)
	}
	return "+" + strings.Join(parts, "+") + "+"
}

func formatRow(row []string, widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		cell := ""
		if i < len(row) {
			cell = flatten(row[i])
		}
		parts[i] = " " + runewidth.FillRight(cell, w) + " "
	}
	return "|" + strings.Join(parts, "|") + "|"
}

// flatten keeps multi-line values on one table line.
func flatten(s string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\t", " ").Replace(s)
}
