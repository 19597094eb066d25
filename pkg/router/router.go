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

// Package router picks the best agent for a task type by blending
// observed success rate against current load.
package router

import (
	"fmt"
	"sync"
)

const (
	successRateWeight = 0.6
	loadWeight        = 0.4
)

// candidate tracks one agent's performance for one task type.
type candidate struct {
	agentID   string
	load      int
	completed int
	successes int
}

func (c *candidate) successRate() float64 {
	if c.completed == 0 {
		return 1 // no history yet: don't penalize a fresh agent
	}
	return float64(c.successes) / float64(c.completed)
}

func (c *candidate) score() float64 {
	return successRateWeight*c.successRate() + loadWeight*(1/(float64(c.load)+1))
}

// Router scores candidates per task type and routes to the best-scoring one.
type Router struct {
	mu         sync.Mutex
	candidates map[string]map[string]*candidate // taskType -> agentID -> candidate
}

// New builds an empty Router.
func New() *Router {
	return &Router{candidates: make(map[string]map[string]*candidate)}
}

// Register makes agentID eligible for taskType routing.
func (r *Router) Register(taskType, agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensure(taskType, agentID)
}

func (r *Router) ensure(taskType, agentID string) *candidate {
	byAgent, ok := r.candidates[taskType]
	if !ok {
		byAgent = make(map[string]*candidate)
		r.candidates[taskType] = byAgent
	}
	c, ok := byAgent[agentID]
	if !ok {
		c = &candidate{agentID: agentID}
		byAgent[agentID] = c
	}
	return c
}

// Route returns the highest-scoring registered agent for taskType.
func (r *Router) Route(taskType string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byAgent := r.candidates[taskType]
	if len(byAgent) == 0 {
		return "", fmt.Errorf("router: no agents registered for task type %q", taskType)
	}

	var best *candidate
	var bestScore float64 = -1
	for _, c := range byAgent {
		if s := c.score(); s > bestScore {
			best, bestScore = c, s
		}
	}
	return best.agentID, nil
}

// TaskStarted increments agentID's in-flight load for taskType.
func (r *Router) TaskStarted(taskType, agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensure(taskType, agentID).load++
}

// TaskCompleted decrements agentID's in-flight load and records whether the
// task succeeded, feeding future successRate calculations.
func (r *Router) TaskCompleted(taskType, agentID string, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.ensure(taskType, agentID)
	if c.load > 0 {
		c.load--
	}
	c.completed++
	if success {
		c.successes++
	}
}
