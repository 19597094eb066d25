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

package reasoning

import (
	"context"
	"fmt"

	"github.com/riskforge/agentcore/pkg/prompts"
)

// observe runs the Observe phase: it summarizes the actions
// taken into a risk recommendation. With no LLM configured it falls back to
// a rule of "approve if every action succeeded, else review".
func (a *BaseAgent) observe(ctx context.Context, executed []Action) Observation {
	fallback := a.fallbackObserve(executed)
	if a.cfg.LLM == nil || !a.cfg.LLM.Enabled() {
		return fallback
	}

	tmpl := prompts.BuildObserve(a.cfg.Role, actionSummaries(executed))
	var out prompts.ObserveOutput
	promptFallback := prompts.ObserveOutput{
		Summary:        fallback.Summary,
		RiskScore:      fallback.RiskScore,
		Recommendation: string(fallback.Recommendation),
		Confidence:     fallback.Confidence,
		Reasoning:      fallback.Reasoning,
		KeyFindings:    fallback.KeyFindings,
	}
	if err := a.cfg.LLM.CompleteWithJSONRetry(ctx, tmpl.System, tmpl.User, a.llmOptions(), prompts.ObserveOutput{}, &out, promptFallback); err != nil {
		return fallback
	}
	return Observation{
		Success:        fallback.Success,
		Summary:        out.Summary,
		RiskScore:      out.RiskScore,
		Recommendation: Recommendation(out.Recommendation),
		Confidence:     out.Confidence,
		Reasoning:      out.Reasoning,
		KeyFindings:    out.KeyFindings,
	}
}

func (a *BaseAgent) fallbackObserve(executed []Action) Observation {
	success := allSucceeded(executed)
	rec := Approve
	riskScore := 10.0
	if !success {
		rec = Review
		riskScore = 50.0
	}
	return Observation{
		Success:        success,
		Summary:        fmt.Sprintf("Completed %d actions", len(executed)),
		RiskScore:      riskScore,
		Recommendation: rec,
		Confidence:     0.4,
		Reasoning:      "no LLM available; recommendation derived from action success rate",
	}
}

// calibrateConfidence blends a raw confidence value with this agent's
// historical accuracy in that confidence range. With no calibrator
// configured the raw value passes through unchanged.
func (a *BaseAgent) calibrateConfidence(raw float64) float64 {
	if a.cfg.Calibrator == nil {
		return raw
	}
	return a.cfg.Calibrator.Calibrate(a.cfg.AgentID, raw)
}

func actionSummaries(executed []Action) []string {
	out := make([]string, 0, len(executed))
	for _, a := range executed {
		outcome := "succeeded"
		if !a.Result.Success {
			outcome = "failed: " + a.Result.Error
		}
		out = append(out, fmt.Sprintf("%s -> %s", a.Type, outcome))
	}
	return out
}

// reflect runs the Reflect phase: a skeptical second pass over
// the observation that may revise its recommendation or confidence. It runs
// at most once per turn and defaults to no revision on any failure.
func (a *BaseAgent) reflect(ctx context.Context, observed Observation) Observation {
	if a.cfg.LLM == nil || !a.cfg.LLM.Enabled() {
		return observed
	}

	tmpl := prompts.BuildReflect(a.cfg.Role, observed.Summary, observed.Confidence)
	var out prompts.ReflectOutput
	fallback := prompts.ReflectOutput{ShouldRevise: false, ReflectionConfidence: 0}
	if err := a.cfg.LLM.CompleteWithJSONRetry(ctx, tmpl.System, tmpl.User, a.llmOptions(), prompts.ReflectOutput{}, &out, fallback); err != nil {
		return observed
	}
	if !out.ShouldRevise || out.ReflectionConfidence <= observed.Confidence {
		return observed
	}

	revised := observed
	if out.RevisedConfidence != nil {
		revised.Confidence = *out.RevisedConfidence
	} else {
		revised.Confidence = out.ReflectionConfidence
	}
	if out.RevisedAction != "" {
		revised.Recommendation = Recommendation(out.RevisedAction)
	}
	if len(out.Concerns) > 0 {
		revised.KeyFindings = append(revised.KeyFindings, out.Concerns...)
	}
	if out.ContraArgument != "" {
		revised.Reasoning = revised.Reasoning + "; reconsidered: " + out.ContraArgument
	}
	return revised
}
