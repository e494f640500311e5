// Package telemetry records run-level metrics for the research agent. The
// collectors are exposed on the server's /metrics endpoint.
package telemetry

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mohammad-safakhou/prosearch/config"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prosearch_runs_total",
		Help: "Research runs by terminal status.",
	}, []string{"status"})

	nodeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "prosearch_node_duration_seconds",
		Help:    "Wall time per graph node execution.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"node"})

	searchFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prosearch_search_fallbacks_total",
		Help: "Branches that fell back to grounding search, by failed provider.",
	}, []string{"provider"})

	llmTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prosearch_llm_tokens_total",
		Help: "LLM token usage by provider, task and direction.",
	}, []string{"provider", "task", "direction"})

	researchLoops = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "prosearch_research_loops",
		Help:    "Reflection loops executed per run.",
		Buckets: prometheus.LinearBuckets(0, 1, 12),
	})
)

// Telemetry is the recording handle threaded into the agent and server.
type Telemetry struct {
	config config.TelemetryConfig
	logger *log.Logger
}

func New(cfg config.TelemetryConfig) *Telemetry {
	return &Telemetry{
		config: cfg,
		logger: log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
	}
}

func (t *Telemetry) RecordRun(status string, d time.Duration, loops int) {
	if t == nil || !t.config.Enabled {
		return
	}
	runsTotal.WithLabelValues(status).Inc()
	researchLoops.Observe(float64(loops))
	t.logger.Printf("run %s in %s (%d loops)", status, d.Round(time.Millisecond), loops)
}

func (t *Telemetry) RecordNode(node string, d time.Duration) {
	if t == nil || !t.config.Enabled {
		return
	}
	nodeDuration.WithLabelValues(node).Observe(d.Seconds())
}

func (t *Telemetry) RecordSearchFallback(provider string) {
	if t == nil || !t.config.Enabled {
		return
	}
	searchFallbacks.WithLabelValues(provider).Inc()
}

func (t *Telemetry) RecordLLMUsage(provider, task string, promptTokens, completionTokens int64) {
	if t == nil || !t.config.Enabled {
		return
	}
	llmTokens.WithLabelValues(provider, task, "prompt").Add(float64(promptTokens))
	llmTokens.WithLabelValues(provider, task, "completion").Add(float64(completionTokens))
}
