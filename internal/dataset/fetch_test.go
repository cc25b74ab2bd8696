package dataset

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFetchHTTP(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"users":[]}`))
	}))
	defer ts.Close()

	f := NewFetcher(FetcherConfig{})

	got, err := f.Fetch(context.Background(), ts.URL+"/users")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(got) != `{"users":[]}` {
		t.Errorf("body = %q", got)
	}

	_, err = f.Fetch(context.Background(), ts.URL+"/missing")
	if err == nil || !strings.Contains(err.Error(), "status 404") {
		t.Errorf("Fetch missing: err = %v, want status 404", err)
	}
}

func TestFetchUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	f := NewFetcher(FetcherConfig{})
	if _, err := f.Fetch(context.Background(), url+"/users"); err == nil {
		t.Error("expected error for closed server")
	}
}

func TestFetchTooLarge(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer ts.Close()

	f := NewFetcher(FetcherConfig{MaxBytes: 10})
	_, err := f.Fetch(context.Background(), ts.URL)
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("err = %v, want ErrTooLarge", err)
	}

	f = NewFetcher(FetcherConfig{MaxBytes: 100})
	if _, err := f.Fetch(context.Background(), ts.URL); err != nil {
		t.Errorf("exact size: %v", err)
	}
}

func TestFetchFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte(`[1,2]`), 0o600); err != nil {
		t.Fatal(err)
	}

	f := NewFetcher(FetcherConfig{})
	for _, u := range []string{path, "file://" + path} {
		got, err := f.Fetch(context.Background(), u)
		if err != nil {
			t.Fatalf("Fetch(%q): %v", u, err)
		}
		if string(got) != `[1,2]` {
			t.Errorf("Fetch(%q) = %q", u, got)
		}
	}

	if _, err := f.Fetch(context.Background(), filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFetchRejectsUnknownScheme(t *testing.T) {
	f := NewFetcher(FetcherConfig{})
	_, err := f.Fetch(context.Background(), "gopher://example.com/x")
	if err == nil || !strings.Contains(err.Error(), "unsupported dataset scheme") {
		t.Errorf("err = %v, want unsupported scheme", err)
	}
	if _, err := f.Fetch(context.Background(), ""); err == nil {
		t.Error("expected error for empty url")
	}
}

func TestFetchS3(t *testing.T) {
	var gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte("a,b\n1,2\n"))
	}))
	defer ts.Close()

	f := NewFetcher(FetcherConfig{S3: S3Config{
		Endpoint:  ts.URL,
		Region:    "us-east-1",
		AccessKey: "test",
		SecretKey: "test",
	}})

	got, err := f.Fetch(context.Background(), "s3://datasets/cities/all.csv")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(got) != "a,b\n1,2\n" {
		t.Errorf("body = %q", got)
	}
	if gotPath != "/datasets/cities/all.csv" {
		t.Errorf("path = %q, want path-style bucket/key", gotPath)
	}
}

func TestParseS3URL(t *testing.T) {
	tests := []struct {
		in          string
		bucket, key string
		wantErr     bool
	}{
		{"s3://bucket/key.json", "bucket", "key.json", false},
		{"s3://bucket/a/b/c.csv", "bucket", "a/b/c.csv", false},
		{"s3://bucket", "", "", true},
		{"s3://bucket/", "", "", true},
		{"s3:///key", "", "", true},
	}

	for _, tt := range tests {
		bucket, key, err := ParseS3URL(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseS3URL(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if bucket != tt.bucket || key != tt.key {
			t.Errorf("ParseS3URL(%q) = %q, %q; want %q, %q", tt.in, bucket, key, tt.bucket, tt.key)
		}
	}
}
