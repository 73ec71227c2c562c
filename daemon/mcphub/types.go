// Package mcphub holds the shared data model for the connection supervisor
// and protocol gateway: backend configuration, connection state, capability
// snapshots, and the read models handed to the GUI shell.
package mcphub

import "time"

// TransportKind identifies which MCP transport a backend speaks.
type TransportKind string

const (
	TransportStdio          TransportKind = "stdio"
	TransportLegacySSE      TransportKind = "legacy_sse"
	TransportStreamableHTTP TransportKind = "streamable_http"
)

// BackendConfig is the user-facing identity and connection recipe for one
// managed MCP backend.
type BackendConfig struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Transport TransportKind `json:"transport"`

	// Stdio-only fields.
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`

	// LegacySSE / StreamableHTTP fields.
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`

	Enabled           bool     `json:"enabled"`
	DisabledTools     []string `json:"disabled_tools,omitempty"`
	DisabledResources []string `json:"disabled_resources,omitempty"`
}

// HasDisabledTool reports whether name is present in DisabledTools.
func (b BackendConfig) HasDisabledTool(name string) bool {
	for _, t := range b.DisabledTools {
		if t == name {
			return true
		}
	}
	return false
}

// HasDisabledResource reports whether uri is present in DisabledResources.
func (b BackendConfig) HasDisabledResource(uri string) bool {
	for _, r := range b.DisabledResources {
		if r == uri {
			return true
		}
	}
	return false
}

// AppConfig is the full persisted application configuration: global gateway
// knobs plus the ordered list of managed backends.
type AppConfig struct {
	ProxyPort               int             `json:"proxy_port"`
	HealthCheckIntervalSecs int             `json:"health_check_interval_secs"`
	AutoReconnect           bool            `json:"auto_reconnect"`
	MaxReconnectAttempts    int             `json:"max_reconnect_attempts"`
	ConnectionTimeoutSecs   int             `json:"connection_timeout_secs"`
	MCPs                    []BackendConfig `json:"mcps"`
}

// DefaultAppConfig returns the documented default configuration, used to
// populate fields absent from a freshly loaded file before it is next saved.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		ProxyPort:               3000,
		HealthCheckIntervalSecs: 30,
		AutoReconnect:           true,
		MaxReconnectAttempts:    5,
		ConnectionTimeoutSecs:   30,
		MCPs:                    []BackendConfig{},
	}
}

// ApplyDefaults fills in zero-valued global knobs with documented defaults.
// It never touches the MCPs list — callers own that separately.
func (c *AppConfig) ApplyDefaults() {
	d := DefaultAppConfig()
	if c.ProxyPort == 0 {
		c.ProxyPort = d.ProxyPort
	}
	if c.HealthCheckIntervalSecs == 0 {
		c.HealthCheckIntervalSecs = d.HealthCheckIntervalSecs
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = d.MaxReconnectAttempts
	}
	if c.ConnectionTimeoutSecs == 0 {
		c.ConnectionTimeoutSecs = d.ConnectionTimeoutSecs
	}
	if c.MCPs == nil {
		c.MCPs = d.MCPs
	}
}

// ConnectionState is the lifecycle state of a single backend's supervisor.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateError        ConnectionState = "error"
	StateReconnecting ConnectionState = "reconnecting"
)

// Tool mirrors an MCP tool descriptor as reported by a backend's tools/list.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"inputSchema,omitempty"`
}

// Resource mirrors an MCP resource descriptor as reported by resources/list.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// CapabilitySnapshot is the cached tool/resource inventory of a connected
// backend, rebuilt on every successful (re)connect.
type CapabilitySnapshot struct {
	Tools     []Tool     `json:"tools"`
	Resources []Resource `json:"resources"`
}

// StatusSnapshot is the read model handed to the GUI and to /mcps.
type StatusSnapshot struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	State             ConnectionState `json:"state"`
	Transport         TransportKind   `json:"transport"`
	ConnectedAt       *time.Time      `json:"connected_at,omitempty"`
	LastPing          *time.Time      `json:"last_ping,omitempty"`
	ErrorMessage      string          `json:"error_message,omitempty"`
	ToolsCount        int             `json:"tools_count"`
	ResourcesCount    int             `json:"resources_count"`
	UptimeSeconds     *int64          `json:"uptime_seconds,omitempty"`
	ProxyURL          string          `json:"proxy_url,omitempty"`
	ReconnectAttempts int             `json:"reconnect_attempts"`
}
