package dataset

import (
	"encoding/json"
	"testing"
)

func TestSelectPath(t *testing.T) {
	doc := json.RawMessage(`{"total":2,"data":{"users":[{"z":1,"a":2},{"z":3}],"tags":["x","y"]}}`)

	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{"", string(doc), false},
		{"total", `2`, false},
		{"data.users", `[{"z":1,"a":2},{"z":3}]`, false},
		{".data.users.0", `{"z":1,"a":2}`, false},
		{"data.tags.1", `"y"`, false},
		{"data.missing", "", true},
		{"data.tags.5", "", true},
		{"data.tags.x", "", true},
		{"total.x", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := SelectPath(tt.path)(doc)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && string(got) != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestChain(t *testing.T) {
	p := Chain(SelectPath("a"), nil, SelectPath("b"))
	got, err := p(json.RawMessage(`{"a":{"b":[1]}}`))
	if err != nil {
		t.Fatalf("Chain: %v", err)
	}
	if string(got) != `[1]` {
		t.Errorf("got %s, want [1]", got)
	}

	if _, err := Chain(SelectPath("nope"))(json.RawMessage(`{}`)); err == nil {
		t.Error("expected error from failing step")
	}
}
