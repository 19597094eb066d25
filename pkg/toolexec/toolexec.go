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

// Package toolexec gives every tool invocation a uniform shape: a circuit
// breaker guard, a trace span, a timer, and metrics, regardless of which
// agent or which tool is calling.
package toolexec

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/riskforge/agentcore/pkg/circuit"
	"github.com/riskforge/agentcore/pkg/clock"
	"github.com/riskforge/agentcore/pkg/obs"
)

// Handler is the tool body: given arguments, produce an output or fail.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Result is the uniform outcome of a tool invocation.
type Result struct {
	Success    bool
	Output     any
	Error      string
	ToolName   string
	DurationMs int64
}

// Executor wraps tool handlers with circuit breaking, tracing and metrics.
type Executor struct {
	breaker *circuit.Breaker
	metrics *obs.Metrics
	clock   clock.Clock
}

// New builds an Executor. metrics may be nil (its methods no-op).
func New(breaker *circuit.Breaker, metrics *obs.Metrics, clk clock.Clock) *Executor {
	return &Executor{breaker: breaker, metrics: metrics, clock: clk}
}

// Execute runs handler for agentID's call to tool, recording a span, a
// duration, and metrics regardless of outcome, and surfacing the circuit
// breaker's rejection as a Result rather than requiring the caller to
// distinguish "tool failed" from "circuit open".
func (e *Executor) Execute(ctx context.Context, agentID, tool string, args map[string]any, handler Handler) (Result, error) {
	ctx, span := obs.Tracer("toolexec").Start(ctx, "tool.execute",
		trace.WithAttributes(attribute.String("agent_id", agentID), attribute.String("tool", tool)),
	)
	defer span.End()

	if err := e.breaker.Allow(agentID, tool); err != nil {
		e.metrics.RecordToolError(agentID, tool, "circuit_open")
		span.RecordError(err)
		span.SetStatus(codes.Error, "circuit_open")
		return Result{Success: false, Error: "circuit_open", ToolName: tool}, nil
	}

	start := e.clock.Now()
	output, err := handler(ctx, args)
	duration := time.Duration(e.clock.Now()-start) * time.Millisecond

	e.metrics.RecordToolCall(agentID, tool, err == nil, duration)

	if err != nil {
		e.breaker.RecordFailure(agentID, tool)
		e.metrics.RecordToolError(agentID, tool, "handler_error")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{
			Success:    false,
			Error:      err.Error(),
			ToolName:   tool,
			DurationMs: duration.Milliseconds(),
		}, fmt.Errorf("toolexec: %s: %w", tool, err)
	}

	e.breaker.RecordSuccess(agentID, tool)
	return Result{
		Success:    true,
		Output:     output,
		ToolName:   tool,
		DurationMs: duration.Milliseconds(),
	}, nil
}
