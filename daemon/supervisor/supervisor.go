// Package supervisor implements ConnectionSupervisor: the per-backend state
// machine that owns a single transport session, drives capability
// discovery, and is the only thing allowed to touch that session.
package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/localmcp/mcp-hub/daemon/logger"
	"github.com/localmcp/mcp-hub/daemon/mcphub"
	"github.com/localmcp/mcp-hub/daemon/transport"
)

// methodWhitelist is the set of JSON-RPC methods Supervisor.Execute accepts.
// Anything else fails with mcphub.ErrMethodNotFound.
var methodWhitelist = map[string]bool{
	"ping":                      true,
	"tools/list":                true,
	"tools/call":                true,
	"resources/list":            true,
	"resources/read":            true,
	"resources/templates/list":  true,
	"prompts/list":              true,
	"prompts/get":               true,
	"completion/complete":       true,
	"logging/setLevel":          true,
}

// NewAdapter constructs the transport.Adapter for a backend. A package
// variable rather than a hard call to transport.New so tests can substitute
// a fake adapter without spawning real processes or sockets.
var NewAdapter = transport.New

// Supervisor owns one backend's connection lifecycle. All exported methods
// are safe for concurrent use; state is guarded by mu, held only to read or
// mutate runtime fields — never across a transport call.
type Supervisor struct {
	connectionTimeout time.Duration

	mu                sync.Mutex
	cfg               mcphub.BackendConfig
	state             mcphub.ConnectionState
	adapter           transport.Adapter
	caps              mcphub.CapabilitySnapshot
	connectedAt       *time.Time
	lastPing          *time.Time
	lastErr           string
	reconnectAttempts int
}

// New constructs a Supervisor for cfg, initially Disconnected.
func New(cfg mcphub.BackendConfig, connectionTimeout time.Duration) *Supervisor {
	return &Supervisor{
		cfg:               cfg,
		state:             mcphub.StateDisconnected,
		connectionTimeout: connectionTimeout,
	}
}

// Config returns the backend configuration this supervisor was built from.
func (s *Supervisor) Config() mcphub.BackendConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// SetConfig updates the policy-only fields (disabled tools/resources,
// enabled flag, display name) without touching the transport. Manager is
// responsible for routing anything that requires a reconnect through
// replace-the-supervisor instead.
func (s *Supervisor) SetConfig(cfg mcphub.BackendConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

// State returns the current connection state.
func (s *Supervisor) State() mcphub.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect opens the transport and runs capability discovery. A
// capability-discovery failure after a successful transport open is logged,
// not fatal: the supervisor stays Connected with empty caches and the next
// health cycle retries.
func (s *Supervisor) Connect(ctx context.Context) error {
	s.mu.Lock()
	cfg := s.cfg
	s.state = mcphub.StateConnecting
	s.mu.Unlock()

	connCtx, cancel := context.WithTimeout(ctx, s.connectionTimeout)
	defer cancel()

	adapter, err := NewAdapter(cfg, s.connectionTimeout, func(string, json.RawMessage) {})
	if err != nil {
		s.fail(err)
		return err
	}
	if err := adapter.Open(connCtx); err != nil {
		// Open may have spawned a child or started reader goroutines
		// before the handshake failed; tear them down so a reconnect
		// cycle never accumulates leaked sessions.
		_ = adapter.Close()
		s.fail(err)
		return err
	}

	s.mu.Lock()
	s.adapter = adapter
	s.state = mcphub.StateConnected
	now := time.Now()
	s.connectedAt = &now
	s.lastErr = ""
	s.reconnectAttempts = 0
	s.mu.Unlock()

	if caps, err := discoverCapabilities(ctx, adapter); err != nil {
		logger.Warning("backend %s: capability discovery failed, keeping connection with empty caches: %v", cfg.ID, err)
		s.mu.Lock()
		s.caps = mcphub.CapabilitySnapshot{}
		s.mu.Unlock()
	} else {
		s.mu.Lock()
		s.caps = caps
		s.mu.Unlock()
	}

	return nil
}

func (s *Supervisor) fail(err error) {
	s.mu.Lock()
	s.state = mcphub.StateError
	s.lastErr = err.Error()
	s.mu.Unlock()
}

func discoverCapabilities(ctx context.Context, a transport.Adapter) (mcphub.CapabilitySnapshot, error) {
	var snapshot mcphub.CapabilitySnapshot

	toolsRaw, err := a.Request(ctx, "tools/list", map[string]any{})
	if err != nil {
		return snapshot, fmt.Errorf("tools/list: %w", err)
	}
	var toolsResult struct {
		Tools []mcphub.Tool `json:"tools"`
	}
	if err := json.Unmarshal(toolsRaw, &toolsResult); err != nil {
		return snapshot, fmt.Errorf("decode tools/list: %w", err)
	}
	snapshot.Tools = toolsResult.Tools

	resourcesRaw, err := a.Request(ctx, "resources/list", map[string]any{})
	if err != nil {
		return snapshot, fmt.Errorf("resources/list: %w", err)
	}
	var resourcesResult struct {
		Resources []mcphub.Resource `json:"resources"`
	}
	if err := json.Unmarshal(resourcesRaw, &resourcesResult); err != nil {
		return snapshot, fmt.Errorf("decode resources/list: %w", err)
	}
	snapshot.Resources = resourcesResult.Resources

	return snapshot, nil
}

// Disconnect tears down the transport and clears the capability cache.
// Idempotent.
func (s *Supervisor) Disconnect() error {
	s.mu.Lock()
	adapter := s.adapter
	s.adapter = nil
	s.state = mcphub.StateDisconnected
	s.caps = mcphub.CapabilitySnapshot{}
	s.connectedAt = nil
	s.mu.Unlock()

	if adapter == nil {
		return nil
	}
	return adapter.Close()
}

// Ping issues tools/list as a lightweight liveness probe — there is no
// dedicated MCP ping RPC on the client path. When the probe succeeds and
// the capability cache is empty (for example after a discovery failure
// during Connect), capability discovery is run again.
func (s *Supervisor) Ping(ctx context.Context) error {
	s.mu.Lock()
	adapter := s.adapter
	connected := s.state == mcphub.StateConnected
	s.mu.Unlock()

	if !connected || adapter == nil {
		return fmt.Errorf("%w", mcphub.ErrNotConnected)
	}

	if _, err := adapter.Request(ctx, "tools/list", map[string]any{}); err != nil {
		if errors.Is(err, mcphub.ErrTransportClosed) {
			s.fail(err)
		}
		return err
	}

	now := time.Now()
	s.mu.Lock()
	s.lastPing = &now
	emptyCaps := len(s.caps.Tools) == 0 && len(s.caps.Resources) == 0
	s.mu.Unlock()

	if emptyCaps {
		if caps, err := discoverCapabilities(ctx, adapter); err != nil {
			logger.Warning("backend %s: capability discovery retry failed: %v", s.Config().ID, err)
		} else {
			s.mu.Lock()
			if s.adapter == adapter {
				s.caps = caps
			}
			s.mu.Unlock()
		}
	}
	return nil
}

// Execute forwards method/params to the transport after checking the
// whitelist and connection state.
func (s *Supervisor) Execute(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if !methodWhitelist[method] {
		return nil, fmt.Errorf("%w: %s", mcphub.ErrMethodNotFound, method)
	}

	s.mu.Lock()
	adapter := s.adapter
	connected := s.state == mcphub.StateConnected
	s.mu.Unlock()

	if !connected || adapter == nil {
		return nil, fmt.Errorf("%w", mcphub.ErrNotConnected)
	}

	if method == "ping" {
		method = "tools/list"
	}

	result, err := adapter.Request(ctx, method, params)
	if err != nil && errors.Is(err, mcphub.ErrTransportClosed) {
		s.fail(err)
	}
	return result, err
}

// Status builds the read-model snapshot for this backend. proxyPort is
// folded into proxy_url, present iff the backend is Connected.
func (s *Supervisor) Status(proxyPort int) mcphub.StatusSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := mcphub.StatusSnapshot{
		ID:                s.cfg.ID,
		Name:              s.cfg.Name,
		State:             s.state,
		Transport:         s.cfg.Transport,
		ConnectedAt:       s.connectedAt,
		LastPing:          s.lastPing,
		ErrorMessage:      s.lastErr,
		ToolsCount:        len(s.caps.Tools),
		ResourcesCount:    len(s.caps.Resources),
		ReconnectAttempts: s.reconnectAttempts,
	}
	if s.state == mcphub.StateConnected {
		snap.ProxyURL = fmt.Sprintf("http://127.0.0.1:%d/mcp/%s", proxyPort, s.cfg.ID)
		if s.connectedAt != nil {
			uptime := int64(time.Since(*s.connectedAt).Seconds())
			snap.UptimeSeconds = &uptime
		}
	}
	return snap
}

// Capabilities returns a copy of the cached tool/resource inventory.
func (s *Supervisor) Capabilities() mcphub.CapabilitySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caps
}

// ReconnectAttempts returns the current attempt counter, for the health
// loop's bound check.
func (s *Supervisor) ReconnectAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconnectAttempts
}

// MarkReconnectAttempt increments the counter and flags the supervisor as
// Reconnecting, the transient marker shown between health-loop attempts.
// The health loop calls this immediately before each reconnect attempt so
// the bound is enforced even if Connect itself fails.
func (s *Supervisor) MarkReconnectAttempt() {
	s.mu.Lock()
	s.reconnectAttempts++
	s.state = mcphub.StateReconnecting
	s.mu.Unlock()
}
