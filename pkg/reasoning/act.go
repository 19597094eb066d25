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
)

// act runs each planned action through the tool executor in sequence,
// publishing agent:action:start before and agent:action:complete after each
// one. A handler or circuit-open failure never stops the loop:
// every planned action still gets a turn, and a populated evidence step is
// only recorded when the action actually returned data.
func (a *BaseAgent) act(ctx context.Context, chain *Chain, planned []Action) []Action {
	executed := make([]Action, 0, len(planned))
	for _, action := range planned {
		if a.cfg.Bus != nil {
			a.cfg.Bus.Publish("agent:action:start", map[string]any{
				"agentId": a.cfg.AgentID,
				"action":  action.Type,
				"params":  action.Params,
			})
		}

		tool, registered := a.tools[action.Type]
		if !registered {
			action.Result = ActionResult{Success: false, Error: fmt.Sprintf("tool %q is not registered", action.Type)}
			executed = append(executed, action)
			chain.Append(Analysis, action.Result.Error, Certain)
			a.publishActionComplete(action)
			continue
		}

		result, err := a.cfg.Executor.Execute(ctx, a.cfg.AgentID, action.Type, action.Params, tool.Handler)
		action.Result = ActionResult{Success: result.Success, Data: result.Output, Error: result.Error}
		executed = append(executed, action)

		switch {
		case result.Success && result.Output != nil:
			chain.Append(Evidence, fmt.Sprintf("%s: %v", action.Type, result.Output), Certain)
		case !result.Success:
			text := result.Error
			if err != nil {
				text = err.Error()
			}
			chain.Append(Analysis, fmt.Sprintf("%s failed: %s", action.Type, text), Likely)
		}
		a.publishActionComplete(action)
	}
	return executed
}

// publishActionComplete emits agent:action:complete for action once its
// Result has been set.
func (a *BaseAgent) publishActionComplete(action Action) {
	if a.cfg.Bus == nil {
		return
	}
	a.cfg.Bus.Publish("agent:action:complete", map[string]any{
		"agentId": a.cfg.AgentID,
		"action":  action.Type,
		"success": action.Result.Success,
		"error":   action.Result.Error,
	})
}
