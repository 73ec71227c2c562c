package cmd

import (
	"github.com/localmcp/mcp-hub/daemon/domain"
	"github.com/localmcp/mcp-hub/daemon/manager"
	"github.com/localmcp/mcp-hub/daemon/mcphub"
)

// statusSink returns a manager.StatusSink that republishes every status
// list onto appCtx's event bus, decoupling the GUI shell (a future,
// not-yet-written consumer) from the Manager itself.
func statusSink(appCtx *domain.Context) manager.StatusSink {
	return func(statuses []mcphub.StatusSnapshot) {
		domain.Publish(appCtx.Hub, domain.TopicStatusChanged, domain.StatusChanged{Statuses: statuses})
	}
}
