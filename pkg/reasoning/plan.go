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

// rePlanFailureRatio is the fraction of failed actions that triggers a
// single re-plan attempt.
const rePlanFailureRatio = 0.5

func (a *BaseAgent) promptTools() []prompts.Tool {
	out := make([]prompts.Tool, 0, len(a.tools))
	for _, t := range a.tools {
		out = append(out, t.toPromptTool())
	}
	return out
}

// plan runs the Plan phase. With no LLM configured it falls
// back to a single "analyze" action so the turn still produces something to
// Act on.
func (a *BaseAgent) plan(ctx context.Context, understanding string) (prompts.PlanOutput, error) {
	if a.cfg.LLM == nil || !a.cfg.LLM.Enabled() {
		return a.fallbackPlan(understanding), nil
	}

	tmpl := prompts.BuildPlan(a.cfg.Role, understanding, a.promptTools())
	var out prompts.PlanOutput
	fallback := a.fallbackPlan(understanding)
	err := a.cfg.LLM.CompleteWithJSONRetry(ctx, tmpl.System, tmpl.User, a.llmOptions(), prompts.PlanOutput{}, &out, fallback)
	return out, err
}

func (a *BaseAgent) fallbackPlan(understanding string) prompts.PlanOutput {
	return prompts.PlanOutput{
		Goal:      understanding,
		Reasoning: "no LLM available; defaulting to a single analysis action",
		Actions:   []prompts.PlanAction{{Tool: "analyze", Params: map[string]any{}, Rationale: "fallback plan"}},
	}
}

// replan runs the re-plan phase against the original goal and the
// previous attempt's successes and failures.
func (a *BaseAgent) replan(ctx context.Context, goal string, successes, failures []string) (prompts.RePlanOutput, error) {
	if a.cfg.LLM == nil || !a.cfg.LLM.Enabled() {
		return prompts.RePlanOutput{}, fmt.Errorf("reasoning: replan: no LLM configured")
	}
	tmpl := prompts.BuildRePlan(a.cfg.Role, goal, successes, failures, a.promptTools())
	var out prompts.RePlanOutput
	err := a.cfg.LLM.CompleteWithJSONRetry(ctx, tmpl.System, tmpl.User, a.llmOptions(), prompts.RePlanOutput{}, &out, nil)
	if err != nil {
		return prompts.RePlanOutput{}, err
	}
	if len(out.Actions) == 0 {
		return prompts.RePlanOutput{}, fmt.Errorf("reasoning: replan: model returned no actions")
	}
	return out, nil
}

// validateActions turns a Plan's proposed actions into executable Actions:
// only tools registered on this agent are kept, and the list is capped at
// MaxActions (duplicates are allowed, but each still counts against the
// cap). An empty or entirely-invalid plan falls back to a single "analyze"
// action so Act always has something to run.
func (a *BaseAgent) validateActions(proposed []prompts.PlanAction) []Action {
	var out []Action
	for _, p := range proposed {
		if len(out) >= MaxActions {
			break
		}
		if _, registered := a.tools[p.Tool]; !registered {
			continue
		}
		out = append(out, Action{Type: p.Tool, Params: p.Params, Rationale: p.Rationale})
	}
	if len(out) == 0 {
		out = append(out, Action{Type: "analyze", Params: map[string]any{}, Rationale: "no valid actions proposed"})
	}
	return out
}

// shouldRePlan reports whether more than half of executed's actions failed.
func shouldRePlan(executed []Action) bool {
	if len(executed) == 0 {
		return false
	}
	failed := 0
	for _, a := range executed {
		if !a.Result.Success {
			failed++
		}
	}
	return float64(failed)/float64(len(executed)) > rePlanFailureRatio
}

// splitActionTypes partitions executed's action types by whether they
// succeeded.
func splitActionTypes(executed []Action) (successes, failures []string) {
	for _, a := range executed {
		if a.Result.Success {
			successes = append(successes, a.Type)
		} else {
			failures = append(failures, a.Type)
		}
	}
	return successes, failures
}
