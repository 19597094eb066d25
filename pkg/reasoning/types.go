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

// Package reasoning is the BaseAgent reasoning loop: Think, Plan, Act,
// Observe, Reflect, Conclude, Learn. It composes every other
// component — context assembly, pattern memory, the LLM client, the tool
// executor, memory, calibration — into one `Reason` call per turn.
package reasoning

import (
	"context"

	"github.com/riskforge/agentcore/pkg/prompts"
)

// MaxActions bounds a single Plan's action list.
const MaxActions = 10

// MaxThoughtLog bounds how many Thoughts an agent retains.
const MaxThoughtLog = 50

// Recommendation is the Observe phase's verdict.
type Recommendation string

const (
	Approve Recommendation = "APPROVE"
	Review  Recommendation = "REVIEW"
	Reject  Recommendation = "REJECT"
	Block   Recommendation = "BLOCK"
	Monitor Recommendation = "MONITOR"
)

// ActionResult is what an executed action produced.
type ActionResult struct {
	Success bool
	Data    any
	Error   string
}

// Action is one planned (and, once run, executed) tool call.
type Action struct {
	Type      string
	Params    map[string]any
	Rationale string
	Result    ActionResult
}

// Observation is the Observe phase's output. Success reflects whether the
// turn's actions all succeeded (and the turn itself didn't error), not the
// model's own judgment.
type Observation struct {
	Success        bool
	Summary        string
	RiskScore      float64
	Recommendation Recommendation
	Confidence     float64
	Reasoning      string
	KeyFindings    []string
}

// Thought is the complete record of one reasoning turn.
type Thought struct {
	TraceID        string
	Timestamp      int64
	Input          map[string]any
	Context        map[string]any
	Reasoning      []string
	Actions        []Action
	Result         Observation
	ChainOfThought []Step
	Error          string
	PatternMatches []string
}

// Tool is a registered, stateless capability an agent's Plan may invoke.
// Handler failures are value-returned on ActionResult, never panicked.
type Tool struct {
	Name        string
	Description string
	Handler     func(ctx context.Context, params map[string]any) (any, error)
}

func (t Tool) toPromptTool() prompts.Tool {
	return prompts.Tool{Name: t.Name, Description: t.Description}
}
