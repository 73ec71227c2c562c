package gateway

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus metric definitions for the proxy front door: request volume
// per backend/method, error volume per backend, and a gauge of currently
// connected backends.
var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcphub_gateway_requests_total",
			Help: "Total JSON-RPC requests dispatched through the proxy gateway",
		},
		[]string{"mcp_id", "method"},
	)
	requestErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcphub_gateway_request_errors_total",
			Help: "Total JSON-RPC requests that resulted in an error response",
		},
		[]string{"mcp_id", "method", "code"},
	)
	connectedBackends = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mcphub_connected_backends",
		Help: "Number of backends currently in the Connected state",
	})
)

// metricsRegistry is a custom registry scoped to this module's own metrics,
// keeping the global default registry (and its Go runtime collectors) out
// of the scrape output.
var metricsRegistry = prometheus.NewRegistry()

func init() {
	metricsRegistry.MustRegister(requestsTotal, requestErrorsTotal, connectedBackends)
}

func (g *Gateway) handleMetrics(w http.ResponseWriter, r *http.Request) {
	connectedBackends.Set(float64(g.countConnected()))
	promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}).ServeHTTP(w, r)
}
