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

package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/riskforge/agentcore/pkg/router"
)

// RouteDelegate picks the best-scoring agent registered for taskType on rt
// (success-rate and load weighted) and delegates task to it,
// feeding the outcome back into rt's load and success-rate bookkeeping so
// the next route call reflects what just happened. Returns the chosen
// agent id alongside the delegation outcome.
func (c *Coordinator) RouteDelegate(ctx context.Context, rt *router.Router, taskType string, task Task, timeout time.Duration) (string, DelegateResult, error) {
	agentID, err := rt.Route(taskType)
	if err != nil {
		return "", DelegateResult{}, err
	}

	rt.TaskStarted(taskType, agentID)
	results := c.DispatchParallel(ctx, []string{agentID}, task, timeout)
	r := results[0]
	success := r.Status == StatusCompleted && r.Result.Err == nil
	rt.TaskCompleted(taskType, agentID, success)

	switch r.Status {
	case StatusCompleted:
		if r.Result.Err != nil {
			return agentID, DelegateResult{Success: false, Error: r.Result.Err.Error()}, nil
		}
		return agentID, DelegateResult{Success: true}, nil
	case StatusNotFound:
		return agentID, DelegateResult{Success: false, Error: fmt.Sprintf("route-delegate: agent %q not found", agentID)}, nil
	case StatusTimeout:
		return agentID, DelegateResult{Success: false, Error: fmt.Sprintf("route-delegate: agent %q timed out", agentID)}, nil
	default:
		errMsg := ""
		if r.Result.Err != nil {
			errMsg = r.Result.Err.Error()
		}
		return agentID, DelegateResult{Success: false, Error: errMsg}, nil
	}
}
