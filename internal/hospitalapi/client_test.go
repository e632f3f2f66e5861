package hospitalapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCreateHospital_Success(t *testing.T) {
	var got map[string]any
	var gotMethod, gotPath, gotContentType string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": 101, "name": "General Hospital"}`))
	}))
	defer server.Close()

	client := New(server.URL+"/", time.Second)
	resp, err := client.CreateHospital(context.Background(), NewHospital{
		Name:            "General Hospital",
		Address:         "123 Main St",
		CreationBatchID: "batch-1",
	})
	if err != nil {
		t.Fatalf("CreateHospital() error = %v", err)
	}

	if gotMethod != http.MethodPost || gotPath != "/hospitals/" {
		t.Errorf("request = %s %s, want POST /hospitals/", gotMethod, gotPath)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotContentType)
	}
	if got["creationBatchId"] != "batch-1" {
		t.Errorf("creationBatchId = %v, want batch-1", got["creationBatchId"])
	}
	if _, ok := got["phone"]; ok {
		t.Error("empty phone should be omitted from payload")
	}

	if !resp.OK || resp.StatusCode != http.StatusCreated {
		t.Errorf("resp OK=%v status=%d, want OK 201", resp.OK, resp.StatusCode)
	}
	id, err := resp.ID()
	if err != nil {
		t.Fatalf("ID() error = %v", err)
	}
	if string(id) != "101" {
		t.Errorf("ID() = %s, want 101", id)
	}
}

func TestCreateHospital_SendsPhoneWhenPresent(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": "h-7"}`))
	}))
	defer server.Close()

	resp, err := New(server.URL, time.Second).CreateHospital(context.Background(), NewHospital{
		Name: "A", Address: "B", CreationBatchID: "c", Phone: "555-1234",
	})
	if err != nil {
		t.Fatalf("CreateHospital() error = %v", err)
	}
	if got["phone"] != "555-1234" {
		t.Errorf("phone = %v, want 555-1234", got["phone"])
	}
	id, err := resp.ID()
	if err != nil {
		t.Fatalf("ID() error = %v", err)
	}
	if string(id) != `"h-7"` {
		t.Errorf("ID() = %s, want \"h-7\"", id)
	}
}

func TestCreateHospital_NonOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("  bad request\n"))
	}))
	defer server.Close()

	resp, err := New(server.URL, time.Second).CreateHospital(context.Background(), NewHospital{Name: "A", Address: "B"})
	if err != nil {
		t.Fatalf("CreateHospital() error = %v, non-2xx should not be an error", err)
	}
	if resp.OK {
		t.Error("resp.OK = true for 400")
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", resp.StatusCode)
	}
	if resp.TrimmedText() != "bad request" {
		t.Errorf("TrimmedText() = %q, want %q", resp.TrimmedText(), "bad request")
	}
}

func TestResponseID_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"id": `},
		{"missing id", `{"name": "x"}`},
		{"null id", `{"id": null}`},
		{"array body", `[1, 2]`},
		{"empty body", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusCreated)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			resp, err := New(server.URL, time.Second).CreateHospital(context.Background(), NewHospital{})
			if err != nil {
				t.Fatalf("CreateHospital() error = %v", err)
			}
			if _, err := resp.ID(); err == nil {
				t.Error("ID() expected error")
			}
		})
	}
}

func TestActivateBatch(t *testing.T) {
	var gotMethod, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	resp, err := New(server.URL, time.Second).ActivateBatch(context.Background(), "3f2b6c1e-batch")
	if err != nil {
		t.Fatalf("ActivateBatch() error = %v", err)
	}
	if gotMethod != http.MethodPatch {
		t.Errorf("method = %s, want PATCH", gotMethod)
	}
	if gotPath != "/hospitals/batch/3f2b6c1e-batch/activate" {
		t.Errorf("path = %s", gotPath)
	}
	if !resp.OK {
		t.Errorf("resp.OK = false for %d", resp.StatusCode)
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	_, err := New(server.URL, 50*time.Millisecond).ActivateBatch(context.Background(), "b")
	if err == nil {
		t.Fatal("ActivateBatch() expected timeout error")
	}
	if !errors.Is(err, context.DeadlineExceeded) && !strings.Contains(err.Error(), "deadline exceeded") {
		t.Errorf("error = %v, want deadline exceeded", err)
	}
}

func TestClient_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	if _, err := New(url, time.Second).CreateHospital(context.Background(), NewHospital{}); err == nil {
		t.Fatal("CreateHospital() expected error against closed server")
	}
}
