package configstore

import (
	"path/filepath"
	"testing"

	"github.com/localmcp/mcp-hub/daemon/mcphub"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	s := New(t.TempDir())
	cfg, err := s.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d := mcphub.DefaultAppConfig()
	if cfg.ProxyPort != d.ProxyPort || cfg.HealthCheckIntervalSecs != d.HealthCheckIntervalSecs {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestSaveThenLoad_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	cfg := mcphub.AppConfig{
		ProxyPort:               4100,
		HealthCheckIntervalSecs: 15,
		AutoReconnect:           true,
		MaxReconnectAttempts:    3,
		ConnectionTimeoutSecs:   20,
		MCPs: []mcphub.BackendConfig{
			{ID: "a", Name: "A", Transport: mcphub.TransportStdio, Command: "true", Enabled: true},
		},
	}

	if err := s.Save(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if got.ProxyPort != cfg.ProxyPort || got.HealthCheckIntervalSecs != cfg.HealthCheckIntervalSecs {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, cfg)
	}
	if len(got.MCPs) != 1 || got.MCPs[0].ID != "a" {
		t.Fatalf("backend list did not round trip: %+v", got.MCPs)
	}

	if s.Path() != filepath.Join(dir, FileName) {
		t.Fatalf("unexpected path: %s", s.Path())
	}
}

func TestSave_NoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	if err := s.Save(mcphub.DefaultAppConfig()); err != nil {
		t.Fatalf("save: %v", err)
	}

	entries, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no leftover temp files, found %v", entries)
	}
}
