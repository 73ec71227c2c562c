// Package gateway implements ProxyGateway: the loopback HTTP server that
// terminates Streamable HTTP from clients and routes into whichever backend
// supervisor a path segment names, filtering disabled capabilities out of
// cached list responses along the way.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/localmcp/mcp-hub/daemon/logger"
	"github.com/localmcp/mcp-hub/daemon/manager"
	"github.com/localmcp/mcp-hub/daemon/mcphub"
)

// protocolVersion is the literal value this gateway answers with for its
// own "initialize" handshake. The gateway is itself an MCP server from a
// client's point of view.
const protocolVersion = "2025-03-26"

// Gateway is the HTTP front door bound to 127.0.0.1:port.
type Gateway struct {
	mgr        *manager.Manager
	port       int
	router     *mux.Router
	httpServer *http.Server
}

// New constructs a Gateway routing into mgr's supervisor registry.
func New(mgr *manager.Manager, port int) *Gateway {
	g := &Gateway{
		mgr:    mgr,
		port:   port,
		router: mux.NewRouter(),
	}
	g.setupRoutes()
	return g
}

func (g *Gateway) setupRoutes() {
	g.router.Use(corsMiddleware)
	g.router.Use(loggingMiddleware)
	g.router.Use(recoveryMiddleware)

	g.router.HandleFunc("/health", g.handleHealth).Methods(http.MethodGet)
	g.router.HandleFunc("/metrics", g.handleMetrics).Methods(http.MethodGet)
	g.router.HandleFunc("/mcps", g.handleListMCPs).Methods(http.MethodGet)

	g.router.HandleFunc("/mcp/{id}", g.handlePost).Methods(http.MethodPost)
	g.router.HandleFunc("/mcp/{id}", g.handleGet).Methods(http.MethodGet)
	g.router.HandleFunc("/mcp/{id}", g.handleDelete).Methods(http.MethodDelete)
	g.router.HandleFunc("/mcp/{id}/tools", g.handleTools).Methods(http.MethodGet)
	g.router.HandleFunc("/mcp/{id}/resources", g.handleResources).Methods(http.MethodGet)
}

// Router exposes the underlying router for tests and for embedding the
// gateway in a larger mux if a future host ever needs to.
func (g *Gateway) Router() *mux.Router {
	return g.router
}

// ListenAndServe starts the HTTP server and blocks until it exits: a
// long-running call meant to run in its own goroutine.
func (g *Gateway) ListenAndServe() error {
	g.httpServer = &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", g.port),
		Handler: g.router,
		// No ReadTimeout/WriteTimeout: tool calls may legitimately run
		// for minutes, and callers impose their own deadlines.
	}

	logger.Info("gateway listening on %s", g.httpServer.Addr)
	err := g.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (g *Gateway) Shutdown(ctx context.Context) error {
	if g.httpServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return g.httpServer.Shutdown(shutdownCtx)
}

func (g *Gateway) countConnected() int {
	n := 0
	for _, s := range g.mgr.ListStatuses() {
		if s.State == mcphub.StateConnected {
			n++
		}
	}
	return n
}
