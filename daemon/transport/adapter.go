// Package transport implements the three MCP backend transport variants
// (stdio child process, legacy SSE, Streamable HTTP) behind one narrow
// Adapter contract: open, request, close.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/localmcp/mcp-hub/daemon/jsonrpc"
	"github.com/localmcp/mcp-hub/daemon/mcphub"
)

// NotificationHandler receives a server-to-client notification delivered
// outside the request/response correlation table (no id, so no waiter to
// resolve).
type NotificationHandler func(method string, params json.RawMessage)

// Adapter is the contract every transport variant implements.
type Adapter interface {
	// Open connects and performs the MCP initialize handshake. Any
	// handshake failure is returned wrapped in mcphub.ErrTransportHandshake.
	Open(ctx context.Context) error

	// Request sends method with params, awaits the matching response, and
	// returns its result (or the backend's JSON-RPC error). Safe for
	// concurrent use.
	Request(ctx context.Context, method string, params any) (json.RawMessage, error)

	// Close is idempotent: it tears down OS resources and fails any
	// in-flight request with mcphub.ErrTransportClosed.
	Close() error
}

// New constructs the adapter matching cfg.Transport.
func New(cfg mcphub.BackendConfig, connectTimeout time.Duration, onNotify NotificationHandler) (Adapter, error) {
	switch cfg.Transport {
	case mcphub.TransportStdio:
		return NewStdio(cfg, onNotify), nil
	case mcphub.TransportLegacySSE:
		return NewLegacySSE(cfg, connectTimeout, onNotify), nil
	case mcphub.TransportStreamableHTTP:
		return NewStreamableHTTP(cfg, connectTimeout, onNotify), nil
	default:
		return nil, fmt.Errorf("%w: unknown transport %q", mcphub.ErrConfigInvalid, cfg.Transport)
	}
}

// notifier is implemented by adapters that can send a fire-and-forget
// notification to the backend. Not part of Adapter itself since a caller
// outside the handshake never needs to send one.
type notifier interface {
	notify(ctx context.Context, method string, params any) error
}

// protocolVersion is the MCP protocol version this hub's client side speaks
// when initializing a connection to a backend.
const protocolVersion = "2025-03-26"

func initializeParams() map[string]any {
	return map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "mcp-hub",
			"version": "0.1.0",
		},
	}
}

// handshake performs the initialize request + initialized notification
// exchange common to all three transports.
func handshake(ctx context.Context, a Adapter) error {
	if _, err := a.Request(ctx, "initialize", initializeParams()); err != nil {
		return fmt.Errorf("%w: initialize: %v", mcphub.ErrTransportHandshake, err)
	}
	if n, ok := a.(notifier); ok {
		if err := n.notify(ctx, "notifications/initialized", struct{}{}); err != nil {
			return fmt.Errorf("%w: initialized notification: %v", mcphub.ErrTransportHandshake, err)
		}
	}
	return nil
}

// rpcResult is what a pending request's waiter channel receives: either a
// result payload or a backend-reported JSON-RPC error.
type rpcResult struct {
	result json.RawMessage
	err    error
}

func (r rpcResult) outcome() (json.RawMessage, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.result, nil
}

// backendError reports a JSON-RPC error returned by the backend itself:
// the transport is healthy, the backend rejected the call.
func backendError(e *jsonrpc.Error) error {
	return fmt.Errorf("backend error %d: %s", e.Code, e.Message)
}
