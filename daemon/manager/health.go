package manager

import (
	"context"
	"time"

	"github.com/localmcp/mcp-hub/daemon/logger"
	"github.com/localmcp/mcp-hub/daemon/mcphub"
)

// StartHealthLoop runs the health cycle until Shutdown is called. The
// sleep interval is re-read from config every iteration so a config change
// takes effect on the very next cycle.
func (m *Manager) StartHealthLoop(ctx context.Context) {
	defer close(m.doneCh)

	for {
		interval := m.healthInterval()
		timer := time.NewTimer(interval)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-m.stopCh:
			timer.Stop()
			return
		case <-timer.C:
		}

		m.runHealthCycle(ctx)
	}
}

func (m *Manager) healthInterval() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return time.Duration(m.cfg.HealthCheckIntervalSecs) * time.Second
}

func (m *Manager) runHealthCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("health cycle panicked: %v", r)
		}
	}()

	m.mu.RLock()
	autoReconnect := m.cfg.AutoReconnect
	maxAttempts := m.cfg.MaxReconnectAttempts
	supervisors := make(map[string]*supervisorEntry, len(m.byID))
	for id := range m.byID {
		enabled := false
		for _, b := range m.cfg.MCPs {
			if b.ID == id {
				enabled = b.Enabled
				break
			}
		}
		supervisors[id] = &supervisorEntry{id: id, enabled: enabled}
	}
	m.mu.RUnlock()

	for id, entry := range supervisors {
		s, ok := m.Get(id)
		if !ok {
			continue
		}

		switch s.State() {
		case mcphub.StateConnected:
			if err := s.Ping(ctx); err != nil {
				// Logged, not fatal: the next cycle sees the transport
				// as failed and reconnects. Avoids flapping on a single
				// transient ping timeout.
				logger.Warning("backend %s: ping failed: %v", id, err)
			}
		case mcphub.StateError, mcphub.StateDisconnected:
			if autoReconnect && entry.enabled && s.ReconnectAttempts() < maxAttempts {
				s.MarkReconnectAttempt()
				if err := s.Connect(ctx); err != nil {
					logger.Warning("backend %s: reconnect attempt failed: %v", id, err)
				}
			}
		}
	}

	m.publish()
}

type supervisorEntry struct {
	id      string
	enabled bool
}
