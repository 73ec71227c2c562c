package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/localmcp/mcp-hub/daemon/jsonrpc"
	"github.com/localmcp/mcp-hub/daemon/mcphub"
	"github.com/localmcp/mcp-hub/daemon/supervisor"
)

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	statuses := g.mgr.ListStatuses()
	connected := 0
	for _, s := range statuses {
		if s.State == mcphub.StateConnected {
			connected++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"total_mcps":     len(statuses),
		"connected_mcps": connected,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

func (g *Gateway) handleListMCPs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, g.mgr.ListStatuses())
}

func (g *Gateway) handleTools(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	detail, err := g.mgr.GetDetail(id)
	if err != nil {
		writeErrorStatus(w, err)
		return
	}
	writeJSON(w, http.StatusOK, filterTools(detail.Tools, detail.Config))
}

func (g *Gateway) handleResources(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	detail, err := g.mgr.GetDetail(id)
	if err != nil {
		writeErrorStatus(w, err)
		return
	}
	writeJSON(w, http.StatusOK, filterResources(detail.Resources, detail.Config))
}

// handleGet is the Streamable HTTP GET side. Server-initiated notifications
// are not proxied, so a live backend still answers 405; only an
// unknown/unconnected id short-circuits earlier.
func (g *Gateway) handleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s, ok := g.mgr.Get(id)
	if !ok {
		http.Error(w, "unknown backend", http.StatusNotFound)
		return
	}
	if s.State() != mcphub.StateConnected {
		http.Error(w, "backend not connected", http.StatusServiceUnavailable)
		return
	}
	http.Error(w, "server-initiated notifications are not proxied", http.StatusMethodNotAllowed)
}

// handleDelete is a session-teardown acknowledgement only: it never touches
// the backend transport (that happens when the Manager disconnects the
// supervisor, not from a client's DELETE).
func (g *Gateway) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := g.mgr.Get(id); !ok {
		http.Error(w, "unknown backend", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handlePost is the JSON-RPC entry point. Accepts a single JSON-RPC object
// or a batch array.
func (g *Gateway) handlePost(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s, ok := g.mgr.Get(id)
	if !ok {
		http.Error(w, "unknown backend", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	var elements []json.RawMessage
	if jsonrpc.IsBatch(body) {
		if err := json.Unmarshal(body, &elements); err != nil {
			http.Error(w, "invalid JSON-RPC batch", http.StatusBadRequest)
			return
		}
	} else {
		elements = []json.RawMessage{body}
	}

	responses := make([]*jsonrpc.Response, 0, len(elements))
	cfg := s.Config()

	for _, raw := range elements {
		in, err := jsonrpc.ParseIncoming(raw)
		if err != nil {
			if len(elements) == 1 {
				http.Error(w, "invalid JSON-RPC message", http.StatusBadRequest)
				return
			}
			continue
		}

		g.dispatch(r.Context(), s, cfg, in, &responses)
	}

	if len(responses) == 0 {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if jsonrpc.IsBatch(body) {
		writeJSON(w, http.StatusOK, responses)
		return
	}
	writeJSON(w, http.StatusOK, responses[0])
}

// dispatch handles one JSON-RPC element: it appends a *jsonrpc.Response to
// responses iff in carried an id. Notifications produce no response
// element.
func (g *Gateway) dispatch(ctx context.Context, s *supervisor.Supervisor, cfg mcphub.BackendConfig, in jsonrpc.Incoming, responses *[]*jsonrpc.Response) {
	var params any
	if len(in.Params) > 0 {
		params = in.Params
	} else {
		params = map[string]any{}
	}

	if in.Method == "initialize" {
		if !in.HasID {
			return
		}
		resp, _ := jsonrpc.NewResult(in.ID, initializeResult())
		*responses = append(*responses, resp)
		return
	}

	result, err := s.Execute(ctx, in.Method, params)
	if err != nil {
		requestErrorsTotal.WithLabelValues(cfg.ID, in.Method, errorCodeLabel(err)).Inc()
		if !in.HasID {
			return
		}
		*responses = append(*responses, jsonrpc.NewError(in.ID, mcphub.RPCErrorCode(err), err.Error()))
		return
	}
	requestsTotal.WithLabelValues(cfg.ID, in.Method).Inc()

	if !in.HasID {
		return
	}

	result = filterResult(in.Method, result, cfg)

	resp, marshalErr := jsonrpc.NewResult(in.ID, result)
	if marshalErr != nil {
		*responses = append(*responses, jsonrpc.NewError(in.ID, -32000, marshalErr.Error()))
		return
	}
	*responses = append(*responses, resp)
}

func errorCodeLabel(err error) string {
	if errors.Is(err, mcphub.ErrMethodNotFound) {
		return "-32601"
	}
	return "-32000"
}

// initializeResult is the fixed server-info document the gateway answers
// "initialize" with itself: a conservative capabilities envelope
// advertising tools/resources/prompts without change notifications or
// subscriptions.
func initializeResult() map[string]any {
	return map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities": map[string]any{
			"tools":     map[string]any{},
			"resources": map[string]any{},
			"prompts":   map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    "mcp-hub",
			"version": "0.1.0",
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorStatus(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, mcphub.ErrUnknownBackend):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
