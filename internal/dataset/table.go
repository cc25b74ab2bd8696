package dataset

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// scalarColumn names the single column produced for arrays of non-objects.
const scalarColumn = "json"

// Table is a virtual file flattened to rows, for engines that cannot read
// JSON or CSV files themselves.
type Table struct {
	Columns []string
	Rows    [][]any
}

// Tabulate flattens a virtual file. For JSON, the top-level value may be an
// array of objects or a single object; columns are the union of member names
// in first-seen order and nested values are kept as compact JSON text. For
// CSV, the header row names the columns and every value is text.
func Tabulate(f VirtualFile) (*Table, error) {
	switch f.Format {
	case FormatJSON, "":
		return tabulateJSON(f.Content)
	case FormatCSV:
		return tabulateCSV(f.Content)
	default:
		return nil, fmt.Errorf("unsupported dataset format %q", f.Format)
	}
}

func tabulateJSON(content []byte) (*Table, error) {
	var elems []json.RawMessage
	switch firstByte(content) {
	case '[':
		if err := json.Unmarshal(content, &elems); err != nil {
			return nil, fmt.Errorf("decode JSON array: %w", err)
		}
	case '{':
		elems = []json.RawMessage{content}
	default:
		return nil, errors.New("JSON dataset must be an array or an object")
	}

	t := &Table{}
	index := make(map[string]int)
	records := make([]map[string]any, 0, len(elems))

	for _, elem := range elems {
		var (
			keys []string
			vals map[string]any
			err  error
		)
		if firstByte(elem) == '{' {
			keys, vals, err = decodeObject(elem)
		} else {
			var v any
			v, err = scalarValue(elem)
			keys, vals = []string{scalarColumn}, map[string]any{scalarColumn: v}
		}
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			if _, ok := index[k]; !ok {
				index[k] = len(t.Columns)
				t.Columns = append(t.Columns, k)
			}
		}
		records = append(records, vals)
	}

	t.Rows = make([][]any, len(records))
	for i, rec := range records {
		row := make([]any, len(t.Columns))
		for k, v := range rec {
			row[index[k]] = v
		}
		t.Rows[i] = row
	}
	return t, nil
}

// decodeObject reads one JSON object, keeping member order.
func decodeObject(raw json.RawMessage) ([]string, map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, nil, fmt.Errorf("decode object: %w", err)
	}

	var keys []string
	vals := make(map[string]any)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("decode object key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected object key %v", tok)
		}
		var member json.RawMessage
		if err := dec.Decode(&member); err != nil {
			return nil, nil, fmt.Errorf("decode member %q: %w", key, err)
		}
		v, err := scalarValue(member)
		if err != nil {
			return nil, nil, err
		}
		if _, seen := vals[key]; !seen {
			keys = append(keys, key)
		}
		vals[key] = v
	}
	return keys, vals, nil
}

// scalarValue converts a JSON value to a Go value a SQL driver accepts.
func scalarValue(raw json.RawMessage) (any, error) {
	switch firstByte(raw) {
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return nil, err
		}
		return buf.String(), nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return n.String(), nil
		}
		return f, nil
	}
	return v, nil
}

// csvDelimiters are the separators SniffDelimiter chooses from.
var csvDelimiters = []rune{',', '|', ';', '\t'}

// SniffDelimiter picks the separator that occurs most often, outside quotes,
// in the first line of content. Ties and lines without any favour a comma.
func SniffDelimiter(content []byte) rune {
	counts := make(map[rune]int, len(csvDelimiters))
	quoted := false
	for _, r := range string(content) {
		if r == '"' {
			quoted = !quoted
			continue
		}
		if !quoted && (r == '\n' || r == '\r') {
			break
		}
		if !quoted {
			counts[r]++
		}
	}

	best := ','
	for _, d := range csvDelimiters {
		if counts[d] > counts[best] {
			best = d
		}
	}
	return best
}

func newCSVReader(content []byte) *csv.Reader {
	r := csv.NewReader(bytes.NewReader(content))
	r.Comma = SniffDelimiter(content)
	r.FieldsPerRecord = -1
	return r
}

func tabulateCSV(content []byte) (*Table, error) {
	r := newCSVReader(content)

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}

	t := &Table{Columns: make([]string, len(header))}
	seen := make(map[string]bool)
	for i, h := range header {
		name := h
		if name == "" || seen[name] {
			name = fmt.Sprintf("column%d", i)
		}
		seen[name] = true
		t.Columns[i] = name
	}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV row: %w", err)
		}
		row := make([]any, len(t.Columns))
		for i := range row {
			if i < len(rec) {
				row[i] = rec[i]
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
