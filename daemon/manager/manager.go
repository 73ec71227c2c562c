// Package manager implements Manager: the central registry owning the
// current AppConfig and the id → Supervisor map, plus the background
// health loop that pings connected backends and paces reconnection
// attempts.
package manager

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/localmcp/mcp-hub/daemon/logger"
	"github.com/localmcp/mcp-hub/daemon/mcphub"
	"github.com/localmcp/mcp-hub/daemon/supervisor"
)

// StatusSink receives the full status list after every health cycle and
// after every Add, Update, and Remove (SetDisabledItems and UpdateConfig do
// not publish), decoupling Manager from its GUI-facing
// consumers: Manager pushes out, nothing pulls in, and supervisors never
// hold a back-reference to the Manager.
type StatusSink func(statuses []mcphub.StatusSnapshot)

// Manager owns the backend registry and the global config.
type Manager struct {
	mu   sync.RWMutex
	cfg  mcphub.AppConfig
	byID map[string]*supervisor.Supervisor
	sink StatusSink

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New constructs a Manager from cfg without connecting anything. Call
// Initialize to build a supervisor for every backend and connect the
// enabled ones.
func New(cfg mcphub.AppConfig, sink StatusSink) *Manager {
	if sink == nil {
		sink = func([]mcphub.StatusSnapshot) {}
	}
	return &Manager{
		cfg:    cfg,
		byID:   make(map[string]*supervisor.Supervisor),
		sink:   sink,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Initialize constructs a Supervisor for every configured backend and
// attempts to connect the enabled ones; disabled backends stay
// Disconnected. Connect failures are logged, not fatal.
func (m *Manager) Initialize(ctx context.Context) {
	m.mu.Lock()
	backends := append([]mcphub.BackendConfig(nil), m.cfg.MCPs...)
	timeout := time.Duration(m.cfg.ConnectionTimeoutSecs) * time.Second
	m.mu.Unlock()

	for _, b := range backends {
		m.addSupervisor(ctx, b, timeout)
	}
}

func (m *Manager) addSupervisor(ctx context.Context, b mcphub.BackendConfig, timeout time.Duration) *supervisor.Supervisor {
	m.mu.Lock()
	if _, exists := m.byID[b.ID]; exists {
		s := m.byID[b.ID]
		m.mu.Unlock()
		return s
	}
	s := supervisor.New(b, timeout)
	m.byID[b.ID] = s
	m.mu.Unlock()

	if b.Enabled {
		if err := s.Connect(ctx); err != nil {
			logger.Warning("backend %s: connect failed: %v", b.ID, err)
		}
	}
	return s
}

// Add registers a new backend. Rejects duplicate ids.
func (m *Manager) Add(ctx context.Context, cfg mcphub.BackendConfig) error {
	if err := mcphub.ValidateBackend(cfg); err != nil {
		return err
	}

	m.mu.Lock()
	if _, exists := m.byID[cfg.ID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", mcphub.ErrAlreadyExists, cfg.ID)
	}
	timeout := time.Duration(m.cfg.ConnectionTimeoutSecs) * time.Second
	s := supervisor.New(cfg, timeout)
	m.byID[cfg.ID] = s
	m.cfg.MCPs = append(m.cfg.MCPs, cfg)
	m.mu.Unlock()

	if cfg.Enabled {
		if err := s.Connect(ctx); err != nil {
			logger.Warning("backend %s: connect failed: %v", cfg.ID, err)
		}
	}

	m.publish()
	return nil
}

// Update atomically replaces a backend's supervisor: disconnect the old
// one, construct a new one from cfg, attempt connect if enabled, and swap
// it into the registry. Never patched in place.
func (m *Manager) Update(ctx context.Context, cfg mcphub.BackendConfig) error {
	if err := mcphub.ValidateBackend(cfg); err != nil {
		return err
	}

	m.mu.Lock()
	old, existed := m.byID[cfg.ID]
	timeout := time.Duration(m.cfg.ConnectionTimeoutSecs) * time.Second
	m.mu.Unlock()

	if existed {
		_ = old.Disconnect()
	}

	newSupervisor := supervisor.New(cfg, timeout)
	if cfg.Enabled {
		if err := newSupervisor.Connect(ctx); err != nil {
			logger.Warning("backend %s: reconnect after update failed: %v", cfg.ID, err)
		}
	}

	m.mu.Lock()
	m.byID[cfg.ID] = newSupervisor
	replaced := false
	for i, b := range m.cfg.MCPs {
		if b.ID == cfg.ID {
			m.cfg.MCPs[i] = cfg
			replaced = true
			break
		}
	}
	if !replaced {
		m.cfg.MCPs = append(m.cfg.MCPs, cfg)
	}
	m.mu.Unlock()

	m.publish()
	return nil
}

// Remove disconnects and evicts a backend.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	s, exists := m.byID[id]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", mcphub.ErrUnknownBackend, id)
	}
	delete(m.byID, id)
	for i, b := range m.cfg.MCPs {
		if b.ID == id {
			m.cfg.MCPs = append(m.cfg.MCPs[:i], m.cfg.MCPs[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	err := s.Disconnect()
	m.publish()
	return err
}

// SetDisabledItems updates a backend's disabled_tools/disabled_resources
// policy without touching the transport. Filtering happens at request
// time; the capability cache itself is untouched.
func (m *Manager) SetDisabledItems(id string, tools, resources []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.byID[id]
	if !exists {
		return fmt.Errorf("%w: %s", mcphub.ErrUnknownBackend, id)
	}
	cfg := s.Config()
	cfg.DisabledTools = tools
	cfg.DisabledResources = resources
	s.SetConfig(cfg)

	for i, b := range m.cfg.MCPs {
		if b.ID == id {
			m.cfg.MCPs[i].DisabledTools = tools
			m.cfg.MCPs[i].DisabledResources = resources
			break
		}
	}
	return nil
}

// UpdateConfig updates only the global knobs, never the backend list.
func (m *Manager) UpdateConfig(partial mcphub.AppConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.ProxyPort = partial.ProxyPort
	m.cfg.HealthCheckIntervalSecs = partial.HealthCheckIntervalSecs
	m.cfg.AutoReconnect = partial.AutoReconnect
	m.cfg.MaxReconnectAttempts = partial.MaxReconnectAttempts
	m.cfg.ConnectionTimeoutSecs = partial.ConnectionTimeoutSecs
}

// Config returns a snapshot of the current AppConfig, including the live
// backend list.
func (m *Manager) Config() mcphub.AppConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := m.cfg
	cfg.MCPs = append([]mcphub.BackendConfig(nil), m.cfg.MCPs...)
	return cfg
}

// Get returns the supervisor for id, if any.
func (m *Manager) Get(id string) (*supervisor.Supervisor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[id]
	return s, ok
}

// ListStatuses builds status snapshots for every supervisor, sorted by
// name ascending for stable GUI ordering.
func (m *Manager) ListStatuses() []mcphub.StatusSnapshot {
	m.mu.RLock()
	proxyPort := m.cfg.ProxyPort
	supervisors := make([]*supervisor.Supervisor, 0, len(m.byID))
	for _, s := range m.byID {
		supervisors = append(supervisors, s)
	}
	m.mu.RUnlock()

	statuses := make([]mcphub.StatusSnapshot, 0, len(supervisors))
	for _, s := range supervisors {
		statuses = append(statuses, s.Status(proxyPort))
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

// Detail is the read model for a single backend's full detail view.
type Detail struct {
	Status    mcphub.StatusSnapshot
	Tools     []mcphub.Tool
	Resources []mcphub.Resource
	Config    mcphub.BackendConfig
}

// GetDetail returns status + cached capabilities + config for id.
func (m *Manager) GetDetail(id string) (Detail, error) {
	m.mu.RLock()
	s, exists := m.byID[id]
	proxyPort := m.cfg.ProxyPort
	m.mu.RUnlock()
	if !exists {
		return Detail{}, fmt.Errorf("%w: %s", mcphub.ErrUnknownBackend, id)
	}

	caps := s.Capabilities()
	return Detail{
		Status:    s.Status(proxyPort),
		Tools:     caps.Tools,
		Resources: caps.Resources,
		Config:    s.Config(),
	}, nil
}

// Shutdown disconnects every supervisor, best-effort, in any order, and
// stops the health loop if it is running.
func (m *Manager) Shutdown() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})

	m.mu.RLock()
	supervisors := make([]*supervisor.Supervisor, 0, len(m.byID))
	for _, s := range m.byID {
		supervisors = append(supervisors, s)
	}
	m.mu.RUnlock()

	for _, s := range supervisors {
		if err := s.Disconnect(); err != nil {
			logger.Warning("shutdown: disconnect failed: %v", err)
		}
	}
}

func (m *Manager) publish() {
	m.sink(m.ListStatuses())
}
