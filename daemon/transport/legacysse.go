package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/localmcp/mcp-hub/daemon/jsonrpc"
	"github.com/localmcp/mcp-hub/daemon/logger"
	"github.com/localmcp/mcp-hub/daemon/mcphub"
)

// LegacySSE implements the two-channel legacy MCP transport: a long-lived
// GET stream carrying an out-of-band "endpoint" event followed by "message"
// events, and a POST endpoint for outbound messages.
type LegacySSE struct {
	cfg     mcphub.BackendConfig
	timeout time.Duration

	onNotify NotificationHandler
	client   *http.Client
	pending  *pending

	mu          sync.Mutex
	postURL     string
	endpointSet chan struct{}
	closed      bool
	cancelGet   context.CancelFunc
}

// NewLegacySSE constructs a LegacySSE adapter. Open must be called before
// Request.
func NewLegacySSE(cfg mcphub.BackendConfig, connectTimeout time.Duration, onNotify NotificationHandler) *LegacySSE {
	return &LegacySSE{
		cfg:      cfg,
		timeout:  connectTimeout,
		onNotify: onNotify,
		client: &http.Client{
			// No total request timeout: the GET body is a long-lived SSE
			// stream. Only the dial is bounded.
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: connectTimeout,
				}).DialContext,
				IdleConnTimeout: 90 * time.Second,
			},
		},
		pending:     newPending(),
		endpointSet: make(chan struct{}),
	}
}

func (a *LegacySSE) Open(ctx context.Context) error {
	streamCtx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, a.cfg.URL, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("%w: building GET %s: %v", mcphub.ErrTransportHandshake, a.cfg.URL, err)
	}
	applyHeaders(req, a.cfg.Headers)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := a.client.Do(req)
	if err != nil {
		cancel()
		return fmt.Errorf("%w: GET %s: %v", mcphub.ErrTransportHandshake, a.cfg.URL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		cancel()
		_ = resp.Body.Close()
		return fmt.Errorf("%w: GET %s returned %d", mcphub.ErrTransportHandshake, a.cfg.URL, resp.StatusCode)
	}

	a.mu.Lock()
	a.cancelGet = cancel
	a.mu.Unlock()

	go a.streamLoop(resp)

	waitCtx, waitCancel := context.WithTimeout(ctx, a.timeout)
	defer waitCancel()
	select {
	case <-a.endpointSet:
	case <-waitCtx.Done():
		return fmt.Errorf("%w: stream ended before endpoint event", mcphub.ErrTransportHandshake)
	}

	return handshake(ctx, a)
}

// streamLoop parses the SSE body, dispatching "endpoint" and "message"
// events and discarding everything else at debug level.
func (a *LegacySSE) streamLoop(resp *http.Response) {
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var eventType string
	var dataLines []string
	endpointSeen := false

	flush := func() {
		if eventType == "" && len(dataLines) == 0 {
			return
		}
		data := strings.Join(dataLines, "\n")
		switch eventType {
		case "endpoint":
			if endpointSeen {
				logger.Debug("legacy sse %s: duplicate endpoint event ignored", a.cfg.Name)
				break
			}
			endpointSeen = true
			a.resolveEndpoint(data)
		case "message":
			a.handleMessage([]byte(data))
		default:
			logger.Debug("legacy sse %s: discarding event %q", a.cfg.Name, eventType)
		}
		eventType = ""
		dataLines = nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	flush()

	a.pending.drain("sse stream ended")
}

// resolveEndpoint resolves the "endpoint" event's data against the
// connection's base URL. data is almost always a path-plus-query string
// like "/message?sessionId=abc123" (the common real-world shape for legacy
// SSE MCP servers), so resolution is plain string concatenation against
// the scheme://host:port prefix — not url.JoinPath, which percent-encodes
// "?" as a path character and corrupts the session query string. Absolute
// data (http:// or https://) passes through untouched; everything else is
// appended verbatim.
func (a *LegacySSE) resolveEndpoint(data string) {
	resolved := data
	if u, err := url.Parse(data); err != nil || u.Scheme == "" {
		base, err := url.Parse(a.cfg.URL)
		if err == nil {
			base.Path = ""
			base.RawQuery = ""
			base.Fragment = ""
			resolved = base.String() + data
		}
	}

	a.mu.Lock()
	a.postURL = resolved
	a.mu.Unlock()
	close(a.endpointSet)
}

func (a *LegacySSE) handleMessage(raw []byte) {
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
		logger.Warning("legacy sse %s: unparsable message event", a.cfg.Name)
	}
}

func (a *LegacySSE) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, fmt.Errorf("%w", mcphub.ErrTransportClosed)
	}
	postURL := a.postURL
	a.mu.Unlock()

	paramsRaw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}

	id, waiter := a.pending.register()
	req := jsonrpc.Request{JSONRPC: jsonrpc.Version, ID: jsonrpc.EncodeID(id), Method: method, Params: paramsRaw}
	if err := a.post(ctx, postURL, req); err != nil {
		a.pending.cancel(id)
		return nil, err
	}

	select {
	case res := <-waiter:
		return res.outcome()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *LegacySSE) notify(ctx context.Context, method string, params any) error {
	a.mu.Lock()
	postURL := a.postURL
	a.mu.Unlock()

	paramsRaw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	note := jsonrpc.Notification{JSONRPC: jsonrpc.Version, Method: method, Params: paramsRaw}
	return a.post(ctx, postURL, note)
}

func (a *LegacySSE) post(ctx context.Context, postURL string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal outbound message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, postURL, strings.NewReader(string(payload)))
	if err != nil {
		return fmt.Errorf("%w: building POST %s: %v", mcphub.ErrTransportClosed, postURL, err)
	}
	req.Header.Set("Content-Type", "application/json")
	applyHeaders(req, a.cfg.Headers)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: POST %s: %v", mcphub.ErrTransportClosed, postURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: POST %s returned %d", mcphub.ErrTransportClosed, postURL, resp.StatusCode)
	}
	return nil
}

func (a *LegacySSE) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	cancel := a.cancelGet
	a.mu.Unlock()

	a.pending.drain("transport closed")
	if cancel != nil {
		cancel()
	}
	return nil
}

// applyHeaders copies user-supplied headers onto req, skipping any that the
// net/http header validator rejects rather than failing the whole request.
func applyHeaders(req *http.Request, headers map[string]string) {
	for k, v := range headers {
		if !isValidHeaderName(k) {
			logger.Warning("skipping invalid header name %q", k)
			continue
		}
		req.Header.Set(k, v)
	}
}

func isValidHeaderName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r <= ' ' || r == ':' || r > '~' {
			return false
		}
	}
	return true
}
