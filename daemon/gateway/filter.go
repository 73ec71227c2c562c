package gateway

import (
	"encoding/json"

	"github.com/localmcp/mcp-hub/daemon/logger"
	"github.com/localmcp/mcp-hub/daemon/mcphub"
)

// filterResult strips disabled tools/resources out of a tools/list or
// resources/list result before it reaches the client. Filtering happens on
// the response object; the capability cache itself is never mutated.
func filterResult(method string, raw json.RawMessage, cfg mcphub.BackendConfig) json.RawMessage {
	switch method {
	case "tools/list":
		return filterListResult(raw, "tools", func(tools []mcphub.Tool) []mcphub.Tool {
			return filterTools(tools, cfg)
		})
	case "resources/list":
		return filterListResult(raw, "resources", func(resources []mcphub.Resource) []mcphub.Resource {
			return filterResources(resources, cfg)
		})
	default:
		return raw
	}
}

func filterTools(tools []mcphub.Tool, cfg mcphub.BackendConfig) []mcphub.Tool {
	if len(cfg.DisabledTools) == 0 {
		return tools
	}
	kept := make([]mcphub.Tool, 0, len(tools))
	for _, t := range tools {
		if cfg.HasDisabledTool(t.Name) {
			continue
		}
		kept = append(kept, t)
	}
	return kept
}

func filterResources(resources []mcphub.Resource, cfg mcphub.BackendConfig) []mcphub.Resource {
	if len(cfg.DisabledResources) == 0 {
		return resources
	}
	kept := make([]mcphub.Resource, 0, len(resources))
	for _, r := range resources {
		if cfg.HasDisabledResource(r.URI) {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

// filterListResult preserves every other field of the result object (e.g.
// a pagination cursor) and replaces only the named array field.
func filterListResult[T any](raw json.RawMessage, field string, filter func([]T) []T) json.RawMessage {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		logger.Warning("gateway: could not decode %s result for filtering: %v", field, err)
		return raw
	}

	var items []T
	if err := json.Unmarshal(obj[field], &items); err != nil {
		logger.Warning("gateway: could not decode %s field for filtering: %v", field, err)
		return raw
	}

	filtered, err := json.Marshal(filter(items))
	if err != nil {
		logger.Warning("gateway: could not re-encode filtered %s: %v", field, err)
		return raw
	}
	obj[field] = filtered

	out, err := json.Marshal(obj)
	if err != nil {
		logger.Warning("gateway: could not re-encode %s result: %v", field, err)
		return raw
	}
	return out
}
