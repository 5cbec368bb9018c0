// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "incident_responder"

var (
	// WebhooksTotal counts inbound alert webhooks by ingest result.
	WebhooksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhooks_total",
		Help:      "Inbound alert webhooks by ingest result",
	}, []string{"result"})

	// JobsTotal counts processed queue jobs by outcome (completed, retried, exhausted).
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_total",
		Help:      "Processed queue jobs by outcome",
	}, []string{"outcome"})

	// IncidentsTotal counts incidents reaching a terminal status.
	IncidentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "incidents_total",
		Help:      "Incidents by terminal status",
	}, []string{"status"})

	// GateDecisionsTotal counts remediation gate decisions.
	GateDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gate_decisions_total",
		Help:      "Remediation gate decisions",
	}, []string{"decision"})

	// AgentInvocationDuration tracks agent subprocess wall time.
	AgentInvocationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "agent_invocation_duration_seconds",
		Help:      "Agent subprocess duration in seconds",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~8.5m
	}, []string{"kind", "outcome"})

	// PipelineDuration tracks end-to-end job processing time.
	PipelineDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pipeline_duration_seconds",
		Help:      "Incident pipeline duration in seconds",
		Buckets:   prometheus.ExponentialBuckets(5, 2, 10),
	}, []string{"status"})

	// WorkspaceClonesRemoved counts incident clones pruned by retention.
	WorkspaceClonesRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "workspace_clones_removed_total",
		Help:      "Incident clones removed by workspace retention",
	})

	// ActiveWorkers is the number of workers currently processing a job.
	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_workers",
		Help:      "Workers currently processing a job",
	})
)
