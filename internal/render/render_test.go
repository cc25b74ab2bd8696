package render

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/seantiz/duckview/internal/engine"
)

func TestCellsMissingKeysAreEmpty(t *testing.T) {
	cols := []string{"id", "name", "email"}
	row := engine.Row{"id": int64(7), "name": "Ann", "extra": "ignored"}

	got := Cells(cols, row)
	want := []string{"7", "Ann", ""}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Cells = %q, want %q", got, want)
	}
}

func TestFormatValue(t *testing.T) {
	ts := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"text", "text"},
		{true, "true"},
		{int64(-3), "-3"},
		{42, "42"},
		{1.5, "1.5"},
		{float64(1e21), "1000000000000000000000"},
		{ts, "2026-03-04T05:06:07Z"},
		{[]any{int64(1), "a"}, `[1,"a"]`},
		{map[string]any{"city": "Rome"}, `{"city":"Rome"}`},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.in); got != tt.want {
			t.Errorf("FormatValue(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTextTable(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTextTable(&buf)
	tbl.Header([]string{"id", "name"})
	tbl.Append([]string{"1", "Ann"}, []string{"22", "multi\nline"})
	if err := tbl.Render(); err != nil {
		t.Fatalf("Render: %v", err)
	}

	want := strings.Join([]string{
		"+----+------------+",
		"| id | name       |",
		"+----+------------+",
		"| 1  | Ann        |",
		"| 22 | multi line |",
		"+----+------------+",
	}, "\n") + "\n"
	if buf.String() != want {
		t.Errorf("table =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestTextTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := NewTextTable(&buf).Render(); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Errorf("empty table wrote %q", buf.String())
	}
}

func TestWriteResult(t *testing.T) {
	res := engine.Result{
		Columns: []string{"b", "a"},
		Rows: []engine.Row{
			{"a": int64(1), "b": "x,y"},
			{"a": nil, "b": "z"},
		},
	}

	tests := []struct {
		format string
		want   string
	}{
		{FormatCSV, "b,a\n\"x,y\",1\nz,\n"},
		{FormatJSON, `[{"b":"x,y","a":1},{"b":"z","a":null}]` + "\n"},
		{FormatJSONL, `{"b":"x,y","a":1}` + "\n" + `{"b":"z","a":null}` + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteResult(&buf, tt.format, res); err != nil {
				t.Fatalf("WriteResult: %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("got %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestWriteResultEmptyJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteResult(&buf, FormatJSON, engine.Result{Columns: []string{}, Rows: []engine.Row{}}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "[]\n" {
		t.Errorf("got %q, want []", buf.String())
	}
}

func TestWriteResultUnknownFormat(t *testing.T) {
	if err := WriteResult(&bytes.Buffer{}, "xml", engine.Result{}); err == nil {
		t.Error("expected error for unknown format")
	}
}
