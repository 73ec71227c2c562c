package cmd

import (
	"context"

	"github.com/localmcp/mcp-hub/daemon/bridge"
	"github.com/localmcp/mcp-hub/daemon/domain"
)

// Bridge runs the stdio<->HTTP sidecar: it proxies line-delimited JSON-RPC
// on stdin/stdout to one backend already managed by a running serve
// process, for MCP hosts that only know how to spawn a stdio subprocess.
//
// Usage in a host's server config:
//
//	{
//	  "mcpServers": {
//	    "my-backend": {
//	      "command": "/usr/local/bin/mcp-hub",
//	      "args": ["bridge", "--mcp-id=my-backend"]
//	    }
//	  }
//	}
type Bridge struct {
	MCPID string `required:"" name:"mcp-id" help:"id of the backend to bridge, as configured in config.json"`
	Port  int    `default:"3001" help:"gateway port to proxy requests to"`
}

// Run starts the bridge and blocks until stdin closes or a signal arrives.
// Stdout carries only the proxied JSON-RPC traffic; appCtx's log pipeline
// must already be routed away from stdout before this is called.
func (b *Bridge) Run(appCtx *domain.Context) error {
	return bridge.New(b.Port, b.MCPID).Run(context.Background())
}
