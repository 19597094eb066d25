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

// think runs the Think phase. With no LLM configured it falls
// back to a deterministic summary that states the input's field count
// (matched patterns are not included), rather than failing the turn.
func (a *BaseAgent) think(ctx context.Context, input map[string]any, assembledContext string) (prompts.ThinkOutput, error) {
	if a.cfg.LLM == nil || !a.cfg.LLM.Enabled() {
		return a.fallbackThink(input), nil
	}

	tmpl, schema := prompts.BuildThink(a.cfg.Role, mustJSON(input), assembledContext)
	var out prompts.ThinkOutput
	fallback := a.fallbackThink(input)
	err := a.cfg.LLM.CompleteWithJSONRetry(ctx, tmpl.System, tmpl.User, a.llmOptions(), schema, &out, fallback)
	return out, err
}

func (a *BaseAgent) fallbackThink(input map[string]any) prompts.ThinkOutput {
	return prompts.ThinkOutput{
		Understanding:     fmt.Sprintf("Received input with %d fields; no LLM available for deeper analysis.", len(input)),
		KeyRisks:          []string{"analysis produced without LLM assistance"},
		Confidence:        0.4,
		SuggestedApproach: "gather evidence through registered tools before concluding",
	}
}
