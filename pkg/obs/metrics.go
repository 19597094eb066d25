// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package obs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/riskforge/agentcore/pkg/kvstore"
)

// Metrics is the Prometheus surface for reasoning-loop turns, tool calls,
// and LLM usage. A nil *Metrics is safe to call methods on — every method
// no-ops when m is nil, so components don't have to special-case "metrics
// disabled".
type Metrics struct {
	registry *prometheus.Registry

	agentCycles      *prometheus.CounterVec
	agentCycleTiming *prometheus.HistogramVec
	agentErrors      *prometheus.CounterVec

	toolCalls    *prometheus.CounterVec
	toolDuration *prometheus.HistogramVec
	toolErrors   *prometheus.CounterVec

	llmCalls  *prometheus.CounterVec
	llmTokens *prometheus.CounterVec

	patternMatches *prometheus.CounterVec
}

// NewMetrics builds a Metrics instance registered against a fresh registry.
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.agentCycles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "agent", Name: "cycles_total",
		Help: "Reasoning-loop cycles completed, by agent and outcome.",
	}, []string{"agent_id", "outcome"})

	m.agentCycleTiming = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "agent", Name: "cycle_duration_seconds",
		Help:    "Reasoning-loop cycle duration in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"agent_id"})

	m.agentErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "agent", Name: "errors_total",
		Help: "Reasoning-loop errors, by agent and phase.",
	}, []string{"agent_id", "phase"})

	m.toolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "tool", Name: "calls_total",
		Help: "Tool invocations, by agent, tool and success.",
	}, []string{"agent_id", "tool", "success"})

	m.toolDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "tool", Name: "call_duration_seconds",
		Help:    "Tool call duration in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"agent_id", "tool"})

	m.toolErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "tool", Name: "errors_total",
		Help: "Tool invocation failures, by agent and tool, including circuit_open rejections.",
	}, []string{"agent_id", "tool", "reason"})

	m.llmCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "llm", Name: "calls_total",
		Help: "LLM completions, by model and cache outcome.",
	}, []string{"model", "cached"})

	m.llmTokens = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "llm", Name: "tokens_total",
		Help: "LLM tokens consumed, by model and direction.",
	}, []string{"model", "direction"})

	m.patternMatches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "pattern", Name: "matches_total",
		Help: "Pattern Memory match queries, by recommendation.",
	}, []string{"recommendation"})

	m.registry.MustRegister(
		m.agentCycles, m.agentCycleTiming, m.agentErrors,
		m.toolCalls, m.toolDuration, m.toolErrors,
		m.llmCalls, m.llmTokens,
		m.patternMatches,
	)
	return m
}

// Registry exposes the underlying Prometheus registry, e.g. for wiring a
// /metrics HTTP handler in cmd/riskagent.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RecordCycle(agentID, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.agentCycles.WithLabelValues(agentID, outcome).Inc()
	m.agentCycleTiming.WithLabelValues(agentID).Observe(d.Seconds())
}

func (m *Metrics) RecordAgentError(agentID, phase string) {
	if m == nil {
		return
	}
	m.agentErrors.WithLabelValues(agentID, phase).Inc()
}

func (m *Metrics) RecordToolCall(agentID, tool string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(agentID, tool, boolLabel(success)).Inc()
	m.toolDuration.WithLabelValues(agentID, tool).Observe(d.Seconds())
}

func (m *Metrics) RecordToolError(agentID, tool, reason string) {
	if m == nil {
		return
	}
	m.toolErrors.WithLabelValues(agentID, tool, reason).Inc()
}

func (m *Metrics) RecordLLMCall(model string, cached bool) {
	if m == nil {
		return
	}
	m.llmCalls.WithLabelValues(model, boolLabel(cached)).Inc()
}

func (m *Metrics) RecordLLMTokens(model string, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.llmTokens.WithLabelValues(model, "input").Add(float64(inputTokens))
	m.llmTokens.WithLabelValues(model, "output").Add(float64(outputTokens))
}

func (m *Metrics) RecordPatternMatch(recommendation string) {
	if m == nil {
		return
	}
	m.patternMatches.WithLabelValues(recommendation).Inc()
}

// metricsPartition is the kvstore partition metric snapshots live under.
const metricsPartition = "GLOBAL"

// snapshotID is the single row the latest snapshot is written to.
const snapshotID = "latest"

// metricSample is one flattened metric family sample, enough for the
// dashboard's queries without re-parsing the Prometheus exposition format.
type metricSample struct {
	Name   string            `json:"name"`
	Labels map[string]string `json:"labels,omitempty"`
	Value  float64           `json:"value"`
}

// Flush gathers the current registry state and writes it through the
// KVStore facade as one JSON snapshot row, replacing the previous one.
func (m *Metrics) Flush(ctx context.Context, kv kvstore.Store) error {
	if m == nil {
		return nil
	}
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("obs: gather metrics: %w", err)
	}

	var samples []metricSample
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			sample := metricSample{Name: mf.GetName()}
			if labels := metric.GetLabel(); len(labels) > 0 {
				sample.Labels = make(map[string]string, len(labels))
				for _, l := range labels {
					sample.Labels[l.GetName()] = l.GetValue()
				}
			}
			switch {
			case metric.GetCounter() != nil:
				sample.Value = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				sample.Value = metric.GetGauge().GetValue()
			case metric.GetHistogram() != nil:
				sample.Value = float64(metric.GetHistogram().GetSampleCount())
			}
			samples = append(samples, sample)
		}
	}

	blob, err := json.Marshal(samples)
	if err != nil {
		return fmt.Errorf("obs: marshal metrics snapshot: %w", err)
	}
	if _, ok, _ := kv.GetByID(ctx, kvstore.TableMetrics, metricsPartition, snapshotID); ok {
		if err := kv.Update(ctx, kvstore.TableMetrics, metricsPartition, snapshotID, blob); err != nil {
			return fmt.Errorf("obs: flush metrics snapshot: %w", err)
		}
		return nil
	}
	if err := kv.Insert(ctx, kvstore.TableMetrics, metricsPartition, snapshotID, blob); err != nil {
		return fmt.Errorf("obs: flush metrics snapshot: %w", err)
	}
	return nil
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
