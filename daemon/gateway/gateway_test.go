package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/localmcp/mcp-hub/daemon/manager"
	"github.com/localmcp/mcp-hub/daemon/mcphub"
	"github.com/localmcp/mcp-hub/daemon/supervisor"
	"github.com/localmcp/mcp-hub/daemon/transport"
)

// fakeAdapter is a scripted transport.Adapter stand-in, substituted via
// supervisor.NewAdapter so gateway tests never spawn a process or dial a
// socket, mirroring supervisor_test.go's fakeAdapter.
type fakeAdapter struct {
	requests map[string]json.RawMessage
}

func (f *fakeAdapter) Open(ctx context.Context) error { return nil }

func (f *fakeAdapter) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if raw, ok := f.requests[method]; ok {
		return raw, nil
	}
	return json.RawMessage(`{}`), nil
}

func (f *fakeAdapter) Close() error { return nil }

func withFakeAdapter(t *testing.T, a *fakeAdapter) {
	t.Helper()
	orig := supervisor.NewAdapter
	supervisor.NewAdapter = func(cfg mcphub.BackendConfig, timeout time.Duration, onNotify transport.NotificationHandler) (transport.Adapter, error) {
		return a, nil
	}
	t.Cleanup(func() { supervisor.NewAdapter = orig })
}

func newTestGateway(t *testing.T, cfg mcphub.BackendConfig) (*Gateway, *manager.Manager) {
	t.Helper()
	withFakeAdapter(t, &fakeAdapter{
		requests: map[string]json.RawMessage{
			"tools/list":     json.RawMessage(`{"tools":[{"name":"a"},{"name":"b"}]}`),
			"resources/list": json.RawMessage(`{"resources":[{"uri":"file:///a"},{"uri":"file:///b"}]}`),
		},
	})

	m := manager.New(mcphub.AppConfig{ProxyPort: 3000, HealthCheckIntervalSecs: 30, ConnectionTimeoutSecs: 1}, nil)
	if err := m.Add(context.Background(), cfg); err != nil {
		t.Fatalf("Add: %v", err)
	}
	return New(m, 3000), m
}

func postJSON(t *testing.T, g *Gateway, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	g.Router().ServeHTTP(rec, req)
	return rec
}

func TestGateway_Initialize(t *testing.T) {
	g, _ := newTestGateway(t, mcphub.BackendConfig{ID: "x", Name: "X", Transport: mcphub.TransportStdio, Command: "true", Enabled: true})

	rec := postJSON(t, g, "/mcp/x", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ID     int `json:"id"`
		Result struct {
			ProtocolVersion string `json:"protocolVersion"`
		} `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Result.ProtocolVersion != "2025-03-26" {
		t.Fatalf("protocolVersion = %q", resp.Result.ProtocolVersion)
	}
}

func TestGateway_DisabledToolFiltering(t *testing.T) {
	g, _ := newTestGateway(t, mcphub.BackendConfig{
		ID: "x", Name: "X", Transport: mcphub.TransportStdio, Command: "true", Enabled: true,
		DisabledTools: []string{"b"},
	})

	rec := postJSON(t, g, "/mcp/x", `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Result struct {
			Tools []mcphub.Tool `json:"tools"`
		} `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Result.Tools) != 1 || resp.Result.Tools[0].Name != "a" {
		t.Fatalf("expected only tool a, got %+v", resp.Result.Tools)
	}
}

func TestGateway_UnknownMethod(t *testing.T) {
	g, _ := newTestGateway(t, mcphub.BackendConfig{ID: "x", Name: "X", Transport: mcphub.TransportStdio, Command: "true", Enabled: true})

	rec := postJSON(t, g, "/mcp/x", `{"jsonrpc":"2.0","id":3,"method":"nope/zzz"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Error struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error.Code != -32601 {
		t.Fatalf("error.code = %d, want -32601", resp.Error.Code)
	}
}

func TestGateway_BackendDown(t *testing.T) {
	g, _ := newTestGateway(t, mcphub.BackendConfig{ID: "x", Name: "X", Transport: mcphub.TransportStdio, Command: "true", Enabled: false})

	rec := postJSON(t, g, "/mcp/x", `{"jsonrpc":"2.0","id":4,"method":"tools/list"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error.Code != -32000 {
		t.Fatalf("error.code = %d, want -32000", resp.Error.Code)
	}
}

func TestGateway_BatchWithNotification(t *testing.T) {
	g, _ := newTestGateway(t, mcphub.BackendConfig{ID: "x", Name: "X", Transport: mcphub.TransportStdio, Command: "true", Enabled: true})

	body := `[{"jsonrpc":"2.0","method":"ping"},{"jsonrpc":"2.0","id":7,"method":"ping"}]`
	rec := postJSON(t, g, "/mcp/x", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp []struct {
		ID int `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp) != 1 || resp[0].ID != 7 {
		t.Fatalf("expected single response with id=7, got %+v", resp)
	}
}

func TestGateway_AllNotificationBatchReturns202(t *testing.T) {
	g, _ := newTestGateway(t, mcphub.BackendConfig{ID: "x", Name: "X", Transport: mcphub.TransportStdio, Command: "true", Enabled: true})

	body := `[{"jsonrpc":"2.0","method":"ping"},{"jsonrpc":"2.0","method":"ping"}]`
	rec := postJSON(t, g, "/mcp/x", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("expected empty body, got %q", rec.Body.String())
	}
}

func TestGateway_SingleNotificationReturns202(t *testing.T) {
	g, _ := newTestGateway(t, mcphub.BackendConfig{ID: "x", Name: "X", Transport: mcphub.TransportStdio, Command: "true", Enabled: true})

	rec := postJSON(t, g, "/mcp/x", `{"jsonrpc":"2.0","method":"ping"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
}

func TestGateway_UnknownBackend404(t *testing.T) {
	g, _ := newTestGateway(t, mcphub.BackendConfig{ID: "x", Name: "X", Transport: mcphub.TransportStdio, Command: "true", Enabled: true})

	rec := postJSON(t, g, "/mcp/does-not-exist", `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGateway_GetNotConnected503(t *testing.T) {
	g, _ := newTestGateway(t, mcphub.BackendConfig{ID: "x", Name: "X", Transport: mcphub.TransportStdio, Command: "true", Enabled: false})

	req := httptest.NewRequest(http.MethodGet, "/mcp/x", nil)
	rec := httptest.NewRecorder()
	g.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestGateway_GetConnectedReturns405(t *testing.T) {
	g, _ := newTestGateway(t, mcphub.BackendConfig{ID: "x", Name: "X", Transport: mcphub.TransportStdio, Command: "true", Enabled: true})

	req := httptest.NewRequest(http.MethodGet, "/mcp/x", nil)
	rec := httptest.NewRecorder()
	g.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestGateway_DeleteAcknowledgesSession(t *testing.T) {
	g, _ := newTestGateway(t, mcphub.BackendConfig{ID: "x", Name: "X", Transport: mcphub.TransportStdio, Command: "true", Enabled: true})

	req := httptest.NewRequest(http.MethodDelete, "/mcp/x", nil)
	rec := httptest.NewRecorder()
	g.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/mcp/nope", nil)
	rec = httptest.NewRecorder()
	g.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGateway_Health(t *testing.T) {
	g, _ := newTestGateway(t, mcphub.BackendConfig{ID: "x", Name: "X", Transport: mcphub.TransportStdio, Command: "true", Enabled: true})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	g.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Status        string `json:"status"`
		TotalMCPs     int    `json:"total_mcps"`
		ConnectedMCPs int    `json:"connected_mcps"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.TotalMCPs != 1 || resp.ConnectedMCPs != 1 {
		t.Fatalf("unexpected health response: %+v", resp)
	}
}
