package tools

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	toolExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "netagent",
		Subsystem: "tools",
		Name:      "executions_total",
		Help:      "Tool executions by tool name.",
	}, []string{"tool"})

	toolFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "netagent",
		Subsystem: "tools",
		Name:      "failures_total",
		Help:      "Tool executions that returned an error or a failed result.",
	}, []string{"tool"})

	toolDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "netagent",
		Subsystem: "tools",
		Name:      "duration_seconds",
		Help:      "Tool execution latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"tool"})
)
