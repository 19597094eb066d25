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

// Package orchestrator runs multi-agent workflows and parallel dispatch on
// top of a Coordinator's agent registry. Agents are looked up by id
// rather than held as back-references, so the orchestrator, the coordinator
// and the agents it dispatches to never form a cyclic object graph: a
// Runtime owns all three and hands each the ids it needs.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/riskforge/agentcore/pkg/consensus"
	"github.com/riskforge/agentcore/pkg/memory"
)

// DefaultDispatchTimeout bounds a single agent's reason call inside
// dispatchParallel, delegate and runConsensus absent an explicit override.
const DefaultDispatchTimeout = 30 * time.Second

// Task is the unit of work handed to an agent's Reason method.
type Task struct {
	Goal  string
	Input map[string]any
}

// Result is what an agent's Reason call returns: enough structure for
// workflow output mapping and consensus voting without the orchestrator
// needing to know anything about the agent's internal reasoning loop.
type Result struct {
	Success        bool
	Recommendation string
	Confidence     float64
	Summary        string
	Data           map[string]any
	Err            error
}

// Agent is the contract an orchestrated agent satisfies. It is implemented
// by the reasoning package's agent types; the orchestrator never imports
// reasoning directly to keep the dependency one-directional.
type Agent interface {
	Reason(ctx context.Context, task Task) (Result, error)
}

// Coordinator holds a registry of agents addressable by id and dispatches
// work to them with timeout bounds, since cancelling a reasoning turn
// already in flight isn't supported.
type Coordinator struct {
	agents map[string]Agent
}

// NewCoordinator builds a Coordinator over the given agent registry.
func NewCoordinator(agents map[string]Agent) *Coordinator {
	reg := make(map[string]Agent, len(agents))
	for id, a := range agents {
		reg[id] = a
	}
	return &Coordinator{agents: reg}
}

// DispatchStatus is the outcome of one agent's dispatched reasoning call.
type DispatchStatus string

const (
	StatusCompleted DispatchStatus = "completed"
	StatusTimeout   DispatchStatus = "timeout"
	StatusNotFound  DispatchStatus = "not_found"
	StatusError     DispatchStatus = "error"
)

// DispatchResult is one row of a dispatchParallel / runConsensus response.
type DispatchResult struct {
	AgentID string
	Status  DispatchStatus
	Result  Result
}

// DispatchParallel races every id's Reason(task) call against timeout
// (DefaultDispatchTimeout if zero), returning one DispatchResult per id in
// the same order ids were given.
func (c *Coordinator) DispatchParallel(ctx context.Context, ids []string, task Task, timeout time.Duration) []DispatchResult {
	if timeout <= 0 {
		timeout = DefaultDispatchTimeout
	}
	out := make([]DispatchResult, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			out[i] = c.dispatchOne(ctx, id, task, timeout)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (c *Coordinator) dispatchOne(ctx context.Context, id string, task Task, timeout time.Duration) DispatchResult {
	a, ok := c.agents[id]
	if !ok {
		return DispatchResult{AgentID: id, Status: StatusNotFound}
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := a.Reason(callCtx, task)
		done <- outcome{res: res, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return DispatchResult{AgentID: id, Status: StatusError, Result: Result{Err: o.err}}
		}
		return DispatchResult{AgentID: id, Status: StatusCompleted, Result: o.res}
	case <-callCtx.Done():
		return DispatchResult{AgentID: id, Status: StatusTimeout}
	}
}

// DelegateResult is delegate's outcome: success or a reason, never a raw
// Go error, so delegation failure is just data a caller's workflow can act
// on.
type DelegateResult struct {
	Success bool
	Error   string
}

// Delegate races to's Reason(subtask) against timeout and reports whether
// it completed successfully.
func (c *Coordinator) Delegate(ctx context.Context, from, to string, subtask Task, timeout time.Duration) DelegateResult {
	results := c.DispatchParallel(ctx, []string{to}, subtask, timeout)
	r := results[0]
	switch r.Status {
	case StatusCompleted:
		if r.Result.Err != nil {
			return DelegateResult{Success: false, Error: r.Result.Err.Error()}
		}
		return DelegateResult{Success: true}
	case StatusNotFound:
		return DelegateResult{Success: false, Error: fmt.Sprintf("delegate: agent %q not found", to)}
	case StatusTimeout:
		return DelegateResult{Success: false, Error: fmt.Sprintf("delegate: agent %q timed out", to)}
	default:
		return DelegateResult{Success: false, Error: r.Result.Err.Error()}
	}
}

// RunConsensus dispatches task to every id in parallel, casts each
// completed result's recommendation/confidence/summary as a vote, and
// evaluates a consensus session with strategy. On failure to reach
// consensus, every voter is given a long-term correction memory entry via
// consensus.RecordDisagreement when store is non-nil.
func (c *Coordinator) RunConsensus(ctx context.Context, ids []string, task Task, strategy consensus.Strategy, store *memory.Store, timeout time.Duration) (consensus.Result, error) {
	dispatched := c.DispatchParallel(ctx, ids, task, timeout)

	session := consensus.NewSession(task.Goal, strategy, ids)
	var votes []consensus.Vote
	for _, d := range dispatched {
		if d.Status != StatusCompleted {
			continue
		}
		v := consensus.Vote{
			AgentID:    d.AgentID,
			Decision:   d.Result.Recommendation,
			Confidence: d.Result.Confidence,
			Summary:    d.Result.Summary,
		}
		if err := session.Vote(v); err != nil {
			continue
		}
		votes = append(votes, v)
	}

	result, err := session.Evaluate()
	if err != nil {
		return result, err
	}
	if !result.Consensus && store != nil && len(votes) > 0 {
		_ = consensus.RecordDisagreement(ctx, store, session.ID, votes)
	}
	return result, nil
}
