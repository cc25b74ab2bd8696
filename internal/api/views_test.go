package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/seantiz/duckview/internal/model"
)

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

// mountView mounts profile over HTTP and waits until initialization finishes.
func mountView(t *testing.T, ts *httptest.Server, profile string) snapshotResponse {
	t.Helper()
	resp := postJSON(t, ts.URL+"/v1/views", `{"profile":"`+profile+`"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("mount status = %d, want 202", resp.StatusCode)
	}
	var snap snapshotResponse
	decodeBody(t, resp, &snap)
	if snap.State != model.StateInitializing {
		t.Errorf("state after mount = %q, want initializing", snap.State)
	}

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		r, err := http.Get(ts.URL + "/v1/views/" + snap.ID)
		if err != nil {
			t.Fatalf("GET view: %v", err)
		}
		var got viewResponse
		decodeBody(t, r, &got)
		if got.Live != nil && got.Live.State != model.StateInitializing {
			return *got.Live
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("view did not finish initializing")
	return snapshotResponse{}
}

func TestMountViewValidation(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing profile", `{}`},
		{"unknown profile", `{"profile":"nope"}`},
		{"file dataset override", `{"profile":"users","dataset_url":"file:///etc/passwd"}`},
		{"bare path dataset override", `{"profile":"users","dataset_url":"/etc/passwd"}`},
		{"s3 dataset override", `{"profile":"users","dataset_url":"s3://bucket/users.json"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/v1/views", tt.body)
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
	if n := srv.views.Len(); n != 0 {
		t.Errorf("mounted views = %d, want 0", n)
	}
}

func TestViewLifecycle(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	snap := mountView(t, ts, "users")
	if snap.State != model.StateReady {
		t.Fatalf("state = %q (%s), want ready", snap.State, snap.Message)
	}

	resp := postJSON(t, ts.URL+"/v1/views/"+snap.ID+"/query", `{"sql":"SELECT 1"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("query status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	var result snapshotResponse
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Query != "SELECT * FROM 'res.json'" {
		t.Errorf("query = %q, want the fixed profile query", result.Query)
	}
	if strings.Join(result.Columns, ",") != "id,firstName,age" {
		t.Errorf("columns = %v", result.Columns)
	}
	if !bytes.Contains(body, []byte(`{"id":1,"firstName":"Ann","age":31}`)) {
		t.Errorf("rows do not keep column order: %s", body)
	}

	histResp, err := http.Get(ts.URL + "/v1/views/" + snap.ID + "/queries")
	if err != nil {
		t.Fatalf("GET queries: %v", err)
	}
	var hist queryHistoryResponse
	decodeBody(t, histResp, &hist)
	if len(hist.Queries) != 1 || hist.Queries[0].Status != model.QueryStatusSucceeded || hist.Queries[0].RowCount != 2 {
		t.Errorf("history = %+v", hist.Queries)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/v1/views/"+snap.ID, nil)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	var rec model.View
	decodeBody(t, delResp, &rec)
	if delResp.StatusCode != http.StatusOK || rec.State != model.StateUnmounted || rec.UnmountedAt == nil {
		t.Errorf("DELETE = %d %+v", delResp.StatusCode, rec)
	}

	again, _ := http.DefaultClient.Do(req)
	again.Body.Close()
	if again.StatusCode != http.StatusNotFound {
		t.Errorf("second DELETE status = %d, want 404", again.StatusCode)
	}

	getResp, err := http.Get(ts.URL + "/v1/views/" + snap.ID)
	if err != nil {
		t.Fatalf("GET view: %v", err)
	}
	var got viewResponse
	decodeBody(t, getResp, &got)
	if got.Live != nil || got.View.State != model.StateUnmounted || got.View.Bundle != "sqlite" {
		t.Errorf("unmounted view = %+v live=%v", got.View, got.Live)
	}

	q := postJSON(t, ts.URL+"/v1/views/"+snap.ID+"/query", `{"sql":""}`)
	q.Body.Close()
	if q.StatusCode != http.StatusNotFound {
		t.Errorf("query on unmounted view status = %d, want 404", q.StatusCode)
	}
}

func TestEditableQueryError(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	snap := mountView(t, ts, "editor")

	resp := postJSON(t, ts.URL+"/v1/views/"+snap.ID+"/query", `{"sql":"SELECT * FROM missing_table"}`)
	var result snapshotResponse
	decodeBody(t, resp, &result)
	if result.State != model.StateError {
		t.Fatalf("state = %q, want error", result.State)
	}
	if !strings.HasPrefix(result.Message, "Query error: ") {
		t.Errorf("message = %q", result.Message)
	}
}

func TestInitErrorReported(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	snap := mountView(t, ts, "broken")
	if snap.State != model.StateError {
		t.Fatalf("state = %q, want error", snap.State)
	}
	if !strings.HasPrefix(snap.Message, "Error initializing engine: fetch: ") {
		t.Errorf("message = %q", snap.Message)
	}
}

func TestGetViewNotFound(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	for _, path := range []string{"/v1/views/nope", "/v1/views/nope/queries", "/v1/views/nope/events"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, resp.StatusCode)
		}
	}
}

func TestListViews(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	for range 3 {
		mountView(t, ts, "users")
	}

	resp, err := http.Get(ts.URL + "/v1/views?limit=2")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	var list listViewsResponse
	decodeBody(t, resp, &list)
	if list.Total != 3 || len(list.Views) != 2 || list.Limit != 2 {
		t.Errorf("list = total %d, len %d, limit %d", list.Total, len(list.Views), list.Limit)
	}

	resp, err = http.Get(ts.URL + "/v1/views?limit=-1&offset=-5")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	decodeBody(t, resp, &list)
	if list.Limit != defaultListLimit || list.Offset != 0 || len(list.Views) != 3 {
		t.Errorf("defaults not applied: limit %d offset %d len %d", list.Limit, list.Offset, len(list.Views))
	}
}

func TestListBundlesAndProfiles(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/bundles")
	if err != nil {
		t.Fatalf("GET bundles: %v", err)
	}
	var bundles []struct {
		Name      string `json:"name"`
		Available bool   `json:"available"`
	}
	decodeBody(t, resp, &bundles)
	if len(bundles) != 1 || bundles[0].Name != "sqlite" || !bundles[0].Available {
		t.Errorf("bundles = %+v", bundles)
	}

	resp, err = http.Get(ts.URL + "/v1/profiles")
	if err != nil {
		t.Fatalf("GET profiles: %v", err)
	}
	var profiles []struct {
		Name     string `json:"name"`
		Editable bool   `json:"editable"`
	}
	decodeBody(t, resp, &profiles)
	if len(profiles) != 3 || profiles[0].Name != "broken" || !profiles[1].Editable {
		t.Errorf("profiles = %+v", profiles)
	}
}
