package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/localmcp/mcp-hub/daemon/jsonrpc"
	"github.com/localmcp/mcp-hub/daemon/mcphub"
)

// fakeBackend answers initialize and echoes tools/list with a fixed tool
// list, issuing a session id on the initialize response, and acknowledges
// the bodiless session DELETE that Close sends.
func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusOK)
			return
		}

		var req jsonrpc.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		switch req.Method {
		case "initialize":
			w.Header().Set(sessionHeader, "sess-1")
			resp, _ := jsonrpc.NewResult(req.ID, map[string]any{"protocolVersion": "2025-03-26"})
			_ = json.NewEncoder(w).Encode(resp)
		case "notifications/initialized":
			w.WriteHeader(http.StatusAccepted)
		case "tools/list":
			resp, _ := jsonrpc.NewResult(req.ID, map[string]any{
				"tools": []map[string]string{{"name": "echo"}},
			})
			_ = json.NewEncoder(w).Encode(resp)
		default:
			resp := jsonrpc.NewError(req.ID, -32601, "method not found")
			_ = json.NewEncoder(w).Encode(resp)
		}
	}))
}

func TestStreamableHTTP_OpenAndRequest(t *testing.T) {
	srv := fakeBackend(t)
	defer srv.Close()

	cfg := mcphub.BackendConfig{ID: "x", Name: "X", Transport: mcphub.TransportStreamableHTTP, URL: srv.URL}
	a := NewStreamableHTTP(cfg, 5*time.Second, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}

	result, err := a.Request(ctx, "tools/list", map[string]any{})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	var parsed struct {
		Tools []struct{ Name string } `json:"tools"`
	}
	if err := json.Unmarshal(result, &parsed); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if len(parsed.Tools) != 1 || parsed.Tools[0].Name != "echo" {
		t.Fatalf("unexpected tools: %+v", parsed.Tools)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestStreamableHTTP_UnknownMethod(t *testing.T) {
	srv := fakeBackend(t)
	defer srv.Close()

	cfg := mcphub.BackendConfig{ID: "x", Name: "X", Transport: mcphub.TransportStreamableHTTP, URL: srv.URL}
	a := NewStreamableHTTP(cfg, 5*time.Second, nil)
	ctx := context.Background()

	if err := a.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer a.Close()

	if _, err := a.Request(ctx, "nope/zzz", nil); err == nil {
		t.Fatal("expected error for unknown method")
	}
}
