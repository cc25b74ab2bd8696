// Package render turns query results into cells for display: the HTML table,
// the plain text table and the CSV and JSON writers of the query tool.
package render

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/seantiz/duckview/internal/engine"
)

// Cells maps row through columns. Keys missing from row give empty cells.
func Cells(columns []string, row engine.Row) []string {
	cells := make([]string, len(columns))
	for i, c := range columns {
		v, ok := row[c]
		if !ok {
			continue
		}
		cells[i] = FormatValue(v)
	}
	return cells
}

// Grid maps every row through columns.
func Grid(columns []string, rows []engine.Row) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = Cells(columns, r)
	}
	return out
}

// FormatValue renders one value as cell text. NULL is empty and nested
// values are shown as compact JSON.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case []any, map[string]any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}
