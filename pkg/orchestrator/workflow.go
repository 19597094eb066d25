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

	"golang.org/x/sync/errgroup"
)

// Step is one unit of an Orchestrator workflow. Steps sharing Parallel=true
// and appearing consecutively run concurrently and join before the next
// group runs.
type Step struct {
	AgentID     string
	InputMapper func(vars map[string]any) map[string]any
	OutputKey   string
	Parallel    bool
	Optional    bool
}

// Orchestrator executes ordered workflows of Steps against a Coordinator's
// agent registry.
type Orchestrator struct {
	coordinator *Coordinator
}

// New builds an Orchestrator over coordinator.
func New(coordinator *Coordinator) *Orchestrator {
	return &Orchestrator{coordinator: coordinator}
}

// ExecuteWorkflow runs steps in order, grouping consecutive Parallel steps
// together so they run concurrently and join before the next group starts.
// Each step's InputMapper builds its task input from the accumulated vars
// map; its result is stored under OutputKey. A non-optional step's failure
// (error, timeout, or missing agent) stops the workflow; optional steps
// merely skip populating their OutputKey.
func (o *Orchestrator) ExecuteWorkflow(ctx context.Context, goal string, steps []Step) (map[string]any, error) {
	vars := make(map[string]any)

	for i := 0; i < len(steps); {
		group, next := nextGroup(steps, i)
		i = next

		if len(group) == 1 && !group[0].Parallel {
			if err := o.runStep(ctx, goal, group[0], vars); err != nil {
				return vars, err
			}
			continue
		}

		if err := o.runGroup(ctx, goal, group, vars); err != nil {
			return vars, err
		}
	}
	return vars, nil
}

// nextGroup returns the run of consecutive Parallel steps starting at i, or
// a single-step group if steps[i] isn't parallel.
func nextGroup(steps []Step, i int) ([]Step, int) {
	if !steps[i].Parallel {
		return steps[i : i+1], i + 1
	}
	j := i
	for j < len(steps) && steps[j].Parallel {
		j++
	}
	return steps[i:j], j
}

func (o *Orchestrator) runStep(ctx context.Context, goal string, step Step, vars map[string]any) error {
	input := vars
	if step.InputMapper != nil {
		input = step.InputMapper(vars)
	}

	results := o.coordinator.DispatchParallel(ctx, []string{step.AgentID}, Task{Goal: goal, Input: input}, DefaultDispatchTimeout)
	return applyStepResult(step, results[0], vars)
}

func (o *Orchestrator) runGroup(ctx context.Context, goal string, group []Step, vars map[string]any) error {
	// vars is read (via InputMapper) but never written concurrently: each
	// goroutine stashes its dispatch result, and the group's outputs are
	// merged into vars single-threaded after every step has joined.
	var g errgroup.Group
	results := make([]DispatchResult, len(group))
	for i, step := range group {
		i, step := i, step
		g.Go(func() error {
			input := vars
			if step.InputMapper != nil {
				input = step.InputMapper(vars)
			}
			dispatched := o.coordinator.DispatchParallel(ctx, []string{step.AgentID}, Task{Goal: goal, Input: input}, DefaultDispatchTimeout)
			results[i] = dispatched[0]
			return nil
		})
	}
	_ = g.Wait()

	for i, step := range group {
		if err := applyStepResult(step, results[i], vars); err != nil {
			return err
		}
	}
	return nil
}

func applyStepResult(step Step, d DispatchResult, vars map[string]any) error {
	if d.Status != StatusCompleted || d.Result.Err != nil {
		if step.Optional {
			return nil
		}
		return fmt.Errorf("orchestrator: step %q (agent %s) failed: status=%s", step.OutputKey, step.AgentID, d.Status)
	}
	if step.OutputKey != "" {
		vars[step.OutputKey] = d.Result
	}
	return nil
}
