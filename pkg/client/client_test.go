package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kshoda-lgtm/vexum-management/pkg/models"
)

func TestNew(t *testing.T) {
	c := New("http://localhost:3548/", "")
	if c.BaseURL != "http://localhost:3548" || c.APIKey != "" || c.HTTPClient != nil {
		t.Errorf("New: %+v", c)
	}
	hc := &http.Client{}
	if c := New("http://x", "secret", WithHTTPClient(hc)); c.APIKey != "secret" || c.HTTPClient != hc {
		t.Errorf("WithHTTPClient: %+v", c)
	}
	if c := New("http://x", "", WithTimeout(3*time.Second)); c.HTTPClient == nil || c.HTTPClient.Timeout != 3*time.Second {
		t.Errorf("WithTimeout: %+v", c)
	}
}

func TestAPIError_plainTextBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").LoadAll(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Message != "gateway exploded" || !apiErr.Retryable() {
		t.Errorf("APIError: %+v retryable=%v", apiErr, apiErr.Retryable())
	}
	if got := apiErr.Error(); got != "GET /data: 502 gateway exploded" {
		t.Errorf("Error() = %q", got)
	}
	if (&APIError{StatusCode: http.StatusBadRequest}).Retryable() {
		t.Error("400 must not be retryable")
	}
}

func TestClient_userAgentAndContentType(t *testing.T) {
	var ua, ctGet, ctPut string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		if r.Method == http.MethodGet {
			ctGet = r.Header.Get("Content-Type")
			w.Write([]byte(`{}`))
			return
		}
		ctPut = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	if _, err := c.LoadAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := c.SaveCollection(context.Background(), models.KindMemos, json.RawMessage(`[]`)); err != nil {
		t.Fatal(err)
	}
	if ua != "vexum-client" || ctGet != "" || ctPut != "application/json" {
		t.Errorf("headers: ua=%q get=%q put=%q", ua, ctGet, ctPut)
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	ok, err := New(srv.URL, "").Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if !ok {
		t.Fatal("Health: expected ok true")
	}
}

func TestHealth_error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"down"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").Health(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusServiceUnavailable || apiErr.Message != "down" {
		t.Errorf("APIError: %+v", apiErr)
	}
}

func TestClient_setsAPIKeyHeader(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	_, _ = New(srv.URL, "mykey").Health(context.Background())
	if gotKey != "mykey" {
		t.Errorf("X-API-Key: got %q", gotKey)
	}
}

func TestLoadAll_normalizesMissingCollections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/data" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"staff":[{"id":"s1","name":"Aoi"}]}`))
	}))
	defer srv.Close()

	snap, err := New(srv.URL, "").LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(snap.Staff) != 1 || snap.Staff[0].Name != "Aoi" {
		t.Errorf("staff: %+v", snap.Staff)
	}
	if snap.Tasks == nil || snap.Memos == nil {
		t.Error("missing collections should decode as empty slices")
	}
}

func TestSaveCollection_sendsRawArray(t *testing.T) {
	var gotBody string
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := New(srv.URL, "").SaveCollection(context.Background(), models.KindTasks, json.RawMessage(`[{"id":"t1"}]`))
	if err != nil {
		t.Fatalf("SaveCollection: %v", err)
	}
	if gotPath != "PUT /data/tasks" {
		t.Errorf("request: %s", gotPath)
	}
	if gotBody != `[{"id":"t1"}]` {
		t.Errorf("body: %s", gotBody)
	}
}

func TestEntityRoutes(t *testing.T) {
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Method+" "+r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			if r.URL.Path == "/staff" {
				w.Write([]byte(`[{"id":"s1","name":"Aoi"}]`))
				return
			}
			w.Write([]byte(`{"id":"s1","name":"Aoi"}`))
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			body["id"] = "s1"
			_ = json.NewEncoder(w).Encode(body)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	ctx := context.Background()
	list, err := c.ListStaff(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListStaff: %v %+v", err, list)
	}
	created, err := c.CreateStaff(ctx, models.Staff{Name: "Ren"})
	if err != nil || created.ID != "s1" || created.Name != "Ren" {
		t.Fatalf("CreateStaff: %v %+v", err, created)
	}
	name := "Ren K"
	updated, err := c.UpdateStaff(ctx, "s1", models.StaffPatch{Name: &name})
	if err != nil || updated.Name != "Ren K" {
		t.Fatalf("UpdateStaff: %v %+v", err, updated)
	}
	if _, err := c.GetStaff(ctx, "s1"); err != nil {
		t.Fatalf("GetStaff: %v", err)
	}
	if err := c.DeleteStaff(ctx, "s1"); err != nil {
		t.Fatalf("DeleteStaff: %v", err)
	}
	want := []string{"GET /staff", "POST /staff", "PATCH /staff/s1", "GET /staff/s1", "DELETE /staff/s1"}
	if len(got) != len(want) {
		t.Fatalf("requests: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("request %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestDeleteTask_notFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"tasks \"t9\" not found"}`))
	}))
	defer srv.Close()

	err := New(srv.URL, "").DeleteTask(context.Background(), "t9")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 APIError, got %v", err)
	}
	if apiErr.Path != "/tasks/t9" {
		t.Errorf("path: %s", apiErr.Path)
	}
}

func TestCreateShifts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/shifts/bulk" {
			t.Errorf("path: %s", r.URL.Path)
		}
		var req models.ShiftBulkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		out := make([]models.Shift, len(req.Dates))
		for i, d := range req.Dates {
			out[i] = req.Shift
			out[i].Date = d
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	d1 := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)
	shifts, err := New(srv.URL, "").CreateShifts(context.Background(), models.ShiftBulkRequest{
		Shift: models.Shift{StaffID: "s1", StartTime: "09:00", EndTime: "18:00"},
		Dates: []time.Time{d1, d2},
	})
	if err != nil {
		t.Fatalf("CreateShifts: %v", err)
	}
	if len(shifts) != 2 || !shifts[1].Date.Equal(d2) {
		t.Errorf("shifts: %+v", shifts)
	}
}

func TestExportImport(t *testing.T) {
	const doc = `{"staff":[],"tasks":[],"meetings":[],"reports":[]}`
	var imported string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/export":
			w.Write([]byte(doc))
		case "/import":
			b, _ := io.ReadAll(r.Body)
			imported = string(b)
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	ctx := context.Background()
	b, err := c.Export(ctx)
	if err != nil || string(b) != doc {
		t.Fatalf("Export: %v %q", err, b)
	}
	if err := c.Import(ctx, b); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if imported != doc {
		t.Errorf("imported: %q", imported)
	}
}

func TestStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quotaExceeded":true,"lastError":"quota exceeded","versions":{"tasks":3},"counts":{"tasks":2}}`))
	}))
	defer srv.Close()

	st, err := New(srv.URL, "").Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.QuotaExceeded || st.Versions[models.KindTasks] != 3 || st.Counts[models.KindTasks] != 2 {
		t.Errorf("status: %+v", st)
	}
}
