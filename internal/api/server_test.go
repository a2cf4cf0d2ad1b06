package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"agenthub/internal/logging"
	"agenthub/internal/registry"
	"agenthub/internal/session"
	"agenthub/pkg/interfaces"
	"agenthub/pkg/types"
)

// fakeTransport is a minimal interfaces.Transport for registering a device
// directly into the registry without a live WebSocket.
type fakeTransport struct{ sent []*types.Message }

func (f *fakeTransport) Send(_ context.Context, msg *types.Message) error {
	f.sent = append(f.sent, msg)
	return nil
}
func (f *fakeTransport) Receive(ctx context.Context) (*types.Message, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (f *fakeTransport) Close() error { return nil }

func newTestServer() (*Server, interfaces.Registry) {
	log := logging.Nop()
	reg := registry.New(log)
	sessions := session.NewManager(log, 0)
	return NewServer(reg, sessions, "linux", log), reg
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func TestHandleDispatchRejectsEmptyRequest(t *testing.T) {
	s, _ := newTestServer()
	w := doJSON(t, s, "POST", "/api/dispatch", map[string]string{"client_id": "dev-A", "request": ""})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var out map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out["detail"] != "Empty task content" {
		t.Fatalf("unexpected detail: %s", out["detail"])
	}
}

func TestHandleDispatchRejectsOfflineClient(t *testing.T) {
	s, _ := newTestServer()
	w := doJSON(t, s, "POST", "/api/dispatch", map[string]string{"client_id": "nobody", "request": "foo"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestHandleDispatchDispatchesToOnlineDevice(t *testing.T) {
	s, reg := newTestServer()
	reg.Add(&types.Client{ID: "dev-A", Kind: types.ClientKindDevice, Platform: "linux", ConnectedAt: time.Now()}, &fakeTransport{})

	w := doJSON(t, s, "POST", "/api/dispatch", map[string]string{"client_id": "dev-A", "request": "ls /tmp", "task_name": "t1"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out["status"] != "dispatched" {
		t.Fatalf("expected dispatched, got %v", out["status"])
	}
	if out["task_name"] != "t1" {
		t.Fatalf("expected task_name t1, got %v", out["task_name"])
	}
}

func TestHandleTaskResultUnknownTaskIsPending(t *testing.T) {
	s, _ := newTestServer()
	w := doJSON(t, s, "GET", "/api/task_result/unknown-task", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var out map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out["status"] != "pending" {
		t.Fatalf("expected pending, got %s", out["status"])
	}
}

func TestHandleListClients(t *testing.T) {
	s, reg := newTestServer()
	reg.Add(&types.Client{ID: "dev-A", Kind: types.ClientKindDevice, ConnectedAt: time.Now()}, &fakeTransport{})

	w := doJSON(t, s, "GET", "/api/clients", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var out map[string][]string
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out["online_clients"]) != 1 || out["online_clients"][0] != "dev-A" {
		t.Fatalf("expected [dev-A], got %v", out["online_clients"])
	}
}

func TestHandleClientInfoUnknownClientReturnsEmptyInfo(t *testing.T) {
	s, _ := newTestServer()
	w := doJSON(t, s, "GET", "/api/clients/ghost/info", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	info, ok := out["system_info"].(map[string]interface{})
	if !ok || len(info) != 0 {
		t.Fatalf("expected empty system_info, got %v", out["system_info"])
	}
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer()
	w := doJSON(t, s, "GET", "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
