// Package cmd provides the hub's kong subcommands: serve runs the
// supervisor and proxy gateway, bridge runs the stdio sidecar.
package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/localmcp/mcp-hub/daemon/configstore"
	"github.com/localmcp/mcp-hub/daemon/domain"
	"github.com/localmcp/mcp-hub/daemon/gateway"
	"github.com/localmcp/mcp-hub/daemon/logger"
	"github.com/localmcp/mcp-hub/daemon/manager"
	"github.com/localmcp/mcp-hub/daemon/mcphub"
)

const gatewayShutdownTimeout = 5 * time.Second

// Serve starts the connection supervisor and the loopback proxy gateway,
// and runs until a termination signal arrives.
type Serve struct {
	ConfigDir string `help:"directory holding config.json (default: OS user config dir)"`
	Port      int    `default:"0" help:"override the gateway port from config.json (0 = use stored value)"`
}

// Run wires Store, Manager, and Gateway together and blocks until SIGTERM
// or SIGINT: construct everything first, start long-running goroutines,
// wait on ctx.Done, then shut down in reverse dependency order.
func (s *Serve) Run(appCtx *domain.Context) error {
	logger.Info("Starting mcp-hub v%s", appCtx.Version)

	store := configstore.New(s.ConfigDir)
	cfg, err := store.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if s.Port != 0 {
		cfg.ProxyPort = s.Port
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	mgr := manager.New(cfg, statusSink(appCtx))
	mgr.Initialize(ctx)

	wg.Go(func() {
		mgr.StartHealthLoop(ctx)
	})

	wg.Go(func() {
		if err := store.Watch(ctx, func(newCfg mcphub.AppConfig) {
			reconcile(ctx, mgr, newCfg)
		}); err != nil {
			logger.Warning("config watch stopped: %v", err)
		}
	})

	gw := gateway.New(mgr, cfg.ProxyPort)
	wg.Go(func() {
		if err := gw.ListenAndServe(); err != nil {
			logger.Error("gateway error: %v", err)
		}
	})

	logger.Success("mcp-hub listening on 127.0.0.1:%d (%d backends configured)", cfg.ProxyPort, len(cfg.MCPs))

	<-ctx.Done()
	stop()
	logger.Warning("received shutdown signal, shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), gatewayShutdownTimeout)
	defer cancel()
	if err := gw.Shutdown(shutdownCtx); err != nil {
		logger.Warning("gateway shutdown: %v", err)
	}

	mgr.Shutdown()

	wg.Wait()
	logger.Info("shutdown complete")
	return nil
}

// reconcile applies an externally edited AppConfig to the running Manager:
// removed backends are disconnected and evicted, new ones are added, and
// ones whose recipe changed are rebuilt. Global knobs (ports, intervals)
// are applied too. Removals run first, then adds and updates in one pass
// over the new backend list, so an id that moved transport kinds never
// collides with itself mid-reconcile.
func reconcile(ctx context.Context, mgr *manager.Manager, newCfg mcphub.AppConfig) {
	mgr.UpdateConfig(newCfg)

	current := mgr.Config()
	byID := make(map[string]mcphub.BackendConfig, len(current.MCPs))
	for _, b := range current.MCPs {
		byID[b.ID] = b
	}

	seen := make(map[string]bool, len(newCfg.MCPs))
	for _, b := range newCfg.MCPs {
		seen[b.ID] = true
	}
	for id := range byID {
		if !seen[id] {
			if err := mgr.Remove(id); err != nil {
				logger.Warning("reconcile: remove %s: %v", id, err)
			}
		}
	}

	for _, b := range newCfg.MCPs {
		old, existed := byID[b.ID]
		switch {
		case !existed:
			if err := mgr.Add(ctx, b); err != nil {
				logger.Warning("reconcile: add %s: %v", b.ID, err)
			}
		case !backendEqual(old, b):
			if err := mgr.Update(ctx, b); err != nil {
				logger.Warning("reconcile: update %s: %v", b.ID, err)
			}
		}
	}
}

func backendEqual(a, b mcphub.BackendConfig) bool {
	if a.Name != b.Name || a.Transport != b.Transport || a.Command != b.Command ||
		a.URL != b.URL || a.Enabled != b.Enabled {
		return false
	}
	if !stringSliceEqual(a.Args, b.Args) || !stringSliceEqual(a.DisabledTools, b.DisabledTools) ||
		!stringSliceEqual(a.DisabledResources, b.DisabledResources) {
		return false
	}
	if !stringMapEqual(a.Env, b.Env) || !stringMapEqual(a.Headers, b.Headers) {
		return false
	}
	return true
}

func stringSliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func stringMapEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
