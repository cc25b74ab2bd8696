package engine

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"reflect"
	"time"
	"unicode/utf8"
)

// Row is one result record keyed by column name.
type Row map[string]any

// Result is the outcome of one query. Columns follow the key order of the
// first row; an empty result has no columns and no rows.
type Result struct {
	Columns  []string      `json:"columns"`
	Rows     []Row         `json:"rows"`
	Duration time.Duration `json:"duration"`
}

// scanRows converts a result set into records. Repeated column names collapse
// into one key that keeps its first position and takes the last value.
func scanRows(rows *sql.Rows) ([]string, []Row, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("read columns: %w", err)
	}

	out := []Row{}
	for rows.Next() {
		vals := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("scan row: %w", err)
		}

		row := make(Row, len(names))
		for i, name := range names {
			row[name] = normalizeValue(vals[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	return deriveColumns(names, len(out)), out, nil
}

// deriveColumns returns the first row's keys in order. With no rows there is
// no first row, so the column list is empty.
func deriveColumns(names []string, rowCount int) []string {
	if rowCount == 0 {
		return []string{}
	}
	seen := make(map[string]bool, len(names))
	cols := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			cols = append(cols, n)
		}
	}
	return cols
}

// normalizeValue turns driver values into plain values that encode as JSON:
// byte slices become text, and nested maps get string keys.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case nil, bool, string, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, float32, float64, time.Time:
		return t
	case []byte:
		if utf8.Valid(t) {
			return string(t)
		}
		return hex.EncodeToString(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalizeValue(e)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Map {
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = normalizeValue(iter.Value().Interface())
		}
		return out
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return v
}
