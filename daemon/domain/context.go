package domain

import "github.com/localmcp/mcp-hub/daemon/mcphub"

// Context holds process-wide singletons handed to every long-lived
// component at construction time: the event bus (the only legitimate
// process-wide pub/sub global besides the logger) and the build version.
// Passing Context explicitly avoids package-level globals
// for anything except the event bus and the log pipeline.
type Context struct {
	Hub     *EventBus
	Version string
}

// StatusChanged is published on TopicStatusChanged whenever the Manager
// completes a health cycle or a supervisory operation changes a backend's
// state. Carrying the full snapshot list (rather than a delta) keeps
// consumers last-writer-wins.
type StatusChanged struct {
	Statuses []mcphub.StatusSnapshot
}

// TopicStatusChanged is the typed topic GUI-style consumers subscribe to
// for status updates. Defined here (rather than a separate constants
// package) since this is the only topic this module publishes.
var TopicStatusChanged = NewTopic[StatusChanged]("status_changed")
