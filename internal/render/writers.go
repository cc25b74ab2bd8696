package render

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/seantiz/duckview/internal/engine"
)

// Output formats of WriteResult.
const (
	FormatText  = "text"
	FormatCSV   = "csv"
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
)

// WriteResult writes res to w in the given format.
func WriteResult(w io.Writer, format string, res engine.Result) error {
	switch format {
	case FormatText, "":
		t := NewTextTable(w)
		t.Header(res.Columns)
		t.Append(Grid(res.Columns, res.Rows)...)
		return t.Render()
	case FormatCSV:
		return writeCSV(w, res)
	case FormatJSON:
		return writeJSON(w, res, false)
	case FormatJSONL:
		return writeJSON(w, res, true)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func writeCSV(w io.Writer, res engine.Result) error {
	cw := csv.NewWriter(w)
	if len(res.Columns) > 0 {
		if err := cw.Write(res.Columns); err != nil {
			return err
		}
	}
	for _, r := range res.Rows {
		if err := cw.Write(Cells(res.Columns, r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// OrderedRow encodes a row as a JSON object whose keys follow columns.
func OrderedRow(columns []string, row engine.Row) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(row[c])
		if err != nil {
			return nil, fmt.Errorf("encode column %q: %w", c, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeJSON(w io.Writer, res engine.Result, lines bool) error {
	var buf bytes.Buffer
	if !lines {
		buf.WriteByte('[')
	}
	for i, r := range res.Rows {
		b, err := OrderedRow(res.Columns, r)
		if err != nil {
			return err
		}
		switch {
		case lines:
			buf.Write(b)
			buf.WriteByte('\n')
		case i > 0:
			buf.WriteByte(',')
			buf.Write(b)
		default:
			buf.Write(b)
		}
	}
	if !lines {
		buf.WriteString("]\n")
	}
	_, err := w.Write(buf.Bytes())
	return err
}
