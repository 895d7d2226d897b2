// Package metrics exposes the control plane's Prometheus counters and
// histograms: tool call volume, cache hit/miss rates, and error counts,
// named after the counters the GitHub specialist's Python original tracked
// (tool_calls_total, cache hit/miss).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ToolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentmesh_tool_calls_total",
		Help: "Total number of tool calls dispatched, by tool name and outcome.",
	}, []string{"tool", "outcome"})

	ToolCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agentmesh_tool_call_duration_seconds",
		Help:    "Tool call latency in seconds, by tool name.",
		Buckets: prometheus.DefBuckets,
	}, []string{"tool"})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentmesh_cache_hits_total",
		Help: "Cacheable tool calls served from cache, by tool name.",
	}, []string{"tool"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentmesh_cache_misses_total",
		Help: "Cacheable tool calls that missed cache, by tool name.",
	}, []string{"tool"})

	RouterIntents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentmesh_router_intents_total",
		Help: "Messages classified, by resolved intent.",
	}, []string{"intent"})

	ApprovalDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentmesh_approval_decisions_total",
		Help: "Approval token validations, by outcome.",
	}, []string{"outcome"})
)

// Handler returns the HTTP handler to mount at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
