package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/localmcp/mcp-hub/daemon/jsonrpc"
	"github.com/localmcp/mcp-hub/daemon/logger"
	"github.com/localmcp/mcp-hub/daemon/mcphub"
)

const sessionHeader = "Mcp-Session-Id"

// StreamableHTTP implements the modern MCP HTTP transport: one POST per
// outbound message, a direct JSON body or an SSE body as the reply, and
// session continuity via a session id header echoed on every request.
type StreamableHTTP struct {
	cfg      mcphub.BackendConfig
	onNotify NotificationHandler
	client   *http.Client
	pending  *pending

	mu        sync.Mutex
	sessionID string
	closed    bool
}

// NewStreamableHTTP constructs a StreamableHTTP adapter. Open must be
// called before Request.
func NewStreamableHTTP(cfg mcphub.BackendConfig, connectTimeout time.Duration, onNotify NotificationHandler) *StreamableHTTP {
	return &StreamableHTTP{
		cfg:      cfg,
		onNotify: onNotify,
		pending:  newPending(),
		client: &http.Client{
			// No total request timeout, no read timeout: SSE response
			// bodies are long-lived and individual JSON-RPC calls may
			// legitimately take minutes. Only dial (connect) and idle
			// pool timeouts are bounded.
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: connectTimeout,
				}).DialContext,
				IdleConnTimeout: 90 * time.Second,
			},
		},
	}
}

func (a *StreamableHTTP) Open(ctx context.Context) error {
	return handshake(ctx, a)
}

func (a *StreamableHTTP) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, fmt.Errorf("%w", mcphub.ErrTransportClosed)
	}
	a.mu.Unlock()

	paramsRaw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}

	id, waiter := a.pending.register()
	req := jsonrpc.Request{JSONRPC: jsonrpc.Version, ID: jsonrpc.EncodeID(id), Method: method, Params: paramsRaw}

	httpResp, err := a.post(ctx, req)
	if err != nil {
		a.pending.cancel(id)
		return nil, err
	}
	defer httpResp.Body.Close()

	if ct := httpResp.Header.Get("Content-Type"); strings.Contains(ct, "text/event-stream") {
		go a.consumeSSE(httpResp)
	} else {
		a.consumeDirect(httpResp)
	}

	select {
	case res := <-waiter:
		return res.outcome()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *StreamableHTTP) notify(ctx context.Context, method string, params any) error {
	paramsRaw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	note := jsonrpc.Notification{JSONRPC: jsonrpc.Version, Method: method, Params: paramsRaw}
	resp, err := a.post(ctx, note)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

func (a *StreamableHTTP) post(ctx context.Context, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal outbound message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.URL, strings.NewReader(string(payload)))
	if err != nil {
		return nil, fmt.Errorf("%w: building POST %s: %v", mcphub.ErrTransportClosed, a.cfg.URL, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	applyHeaders(req, a.cfg.Headers)

	a.mu.Lock()
	sid := a.sessionID
	a.mu.Unlock()
	if sid != "" {
		req.Header.Set(sessionHeader, sid)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: POST %s: %v", mcphub.ErrTransportClosed, a.cfg.URL, err)
	}

	if newSID := resp.Header.Get(sessionHeader); newSID != "" {
		a.mu.Lock()
		a.sessionID = newSID
		a.mu.Unlock()
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, fmt.Errorf("%w: POST %s returned %d", mcphub.ErrTransportClosed, a.cfg.URL, resp.StatusCode)
	}
	return resp, nil
}

// consumeDirect handles a direct JSON body reply: exactly one message, the
// response to the request that triggered this POST.
func (a *StreamableHTTP) consumeDirect(resp *http.Response) {
	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		logger.Warning("streamable http %s: undecodable response body: %v", a.cfg.Name, err)
		return
	}
	a.handleMessage(raw)
}

// consumeSSE handles a per-request SSE body: zero or more server-to-client
// messages culminating in the response to the request that triggered this
// POST.
func (a *StreamableHTTP) consumeSSE(resp *http.Response) {
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var dataLines []string
	flush := func() {
		if len(dataLines) == 0 {
			return
		}
		a.handleMessage([]byte(strings.Join(dataLines, "\n")))
		dataLines = nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	flush()
}

func (a *StreamableHTTP) handleMessage(raw json.RawMessage) {
	switch jsonrpc.Classify(raw) {
	case jsonrpc.KindResponse:
		var resp jsonrpc.Response
		if err := json.Unmarshal(raw, &resp); err != nil {
			return
		}
		id, ok := jsonrpc.DecodeID(resp.ID)
		if !ok {
			return
		}
		a.pending.resolve(id, rpcResult{result: resp.Result, err: errFromResponse(resp)})
	case jsonrpc.KindNotification:
		var note jsonrpc.Notification
		if err := json.Unmarshal(raw, &note); err != nil {
			return
		}
		if a.onNotify != nil {
			a.onNotify(note.Method, note.Params)
		}
	default:
		logger.Warning("streamable http %s: unparsable message", a.cfg.Name)
	}
}

// Close tears down the session. Per the adapter's single most important
// operational affordance, a DELETE that the server answers with 2xx, 404,
// 405, or 400 is all treated as benign — the server may not support session
// teardown, may have forgotten the session, or may sit behind a proxy that
// eats DELETE.
func (a *StreamableHTTP) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	sid := a.sessionID
	a.mu.Unlock()

	a.pending.drain("transport closed")

	if sid == "" {
		return nil
	}

	req, err := http.NewRequest(http.MethodDelete, a.cfg.URL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set(sessionHeader, sid)
	applyHeaders(req, a.cfg.Headers)

	resp, err := a.client.Do(req)
	if err != nil {
		logger.Warning("streamable http %s: DELETE failed: %v", a.cfg.Name, err)
		return nil
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusAccepted,
		http.StatusNotFound, http.StatusMethodNotAllowed, http.StatusBadRequest:
		// benign
	default:
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			logger.Warning("streamable http %s: DELETE returned %d", a.cfg.Name, resp.StatusCode)
		}
	}
	return nil
}
