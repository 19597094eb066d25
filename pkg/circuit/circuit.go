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

// Package circuit is the per-(agent, tool) circuit breaker Tool Executor
// calls through before invoking a tool. Each pair gets its own
// independent state machine: a tool failing for one agent doesn't trip the
// breaker for another agent calling the same tool.
package circuit

import (
	"fmt"
	"sync"
	"time"

	"github.com/riskforge/agentcore/pkg/clock"
)

// State is where a breaker sits in the closed/open/half-open cycle.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

const (
	// FailureThreshold is the number of consecutive failures that trips a
	// breaker from closed to open.
	FailureThreshold = 5
	// Cooldown is how long a breaker stays open before allowing one probe
	// request through in half-open state.
	Cooldown = 30 * time.Second
)

// ErrOpen is returned by Allow when a breaker is open and the cooldown
// hasn't elapsed.
type ErrOpen struct {
	Agent, Tool string
	RetryAfter  time.Duration
}

func (e *ErrOpen) Error() string {
	return fmt.Sprintf("circuit: %s/%s is open, retry after %s", e.Agent, e.Tool, e.RetryAfter)
}

type breaker struct {
	state           State
	consecutiveFail int
	openedAt        int64
	probeInFlight   bool
}

// Breaker tracks one state machine per (agentID, tool) pair.
type Breaker struct {
	mu    sync.Mutex
	clock clock.Clock
	state map[string]*breaker
}

// New builds an empty Breaker registry.
func New(clk clock.Clock) *Breaker {
	return &Breaker{clock: clk, state: make(map[string]*breaker)}
}

func key(agentID, tool string) string { return agentID + "\x00" + tool }

func (b *Breaker) get(agentID, tool string) *breaker {
	k := key(agentID, tool)
	s, ok := b.state[k]
	if !ok {
		s = &breaker{state: Closed}
		b.state[k] = s
	}
	return s
}

// Allow reports whether a call to tool on behalf of agentID may proceed. In
// the open state it returns ErrOpen until Cooldown has elapsed, then admits
// exactly one probe call by transitioning to half-open.
func (b *Breaker) Allow(agentID, tool string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.get(agentID, tool)
	switch s.state {
	case Closed:
		return nil
	case HalfOpen:
		if s.probeInFlight {
			return &ErrOpen{Agent: agentID, Tool: tool, RetryAfter: 0}
		}
		s.probeInFlight = true
		return nil
	case Open:
		elapsed := time.Duration(b.clock.Now()-s.openedAt) * time.Millisecond
		if elapsed < Cooldown {
			return &ErrOpen{Agent: agentID, Tool: tool, RetryAfter: Cooldown - elapsed}
		}
		s.state = HalfOpen
		s.probeInFlight = true
		return nil
	default:
		return nil
	}
}

// RecordSuccess reports a successful call, closing the breaker (and
// resetting its failure count) if it was in half-open or closed state.
func (b *Breaker) RecordSuccess(agentID, tool string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.get(agentID, tool)
	s.state = Closed
	s.consecutiveFail = 0
	s.probeInFlight = false
}

// RecordFailure reports a failed call. In closed state this increments the
// consecutive-failure count, tripping to open at FailureThreshold. In
// half-open state, a failed probe reopens the breaker immediately.
func (b *Breaker) RecordFailure(agentID, tool string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.get(agentID, tool)
	s.probeInFlight = false
	switch s.state {
	case HalfOpen:
		s.state = Open
		s.openedAt = b.clock.Now()
		s.consecutiveFail = FailureThreshold
	case Closed:
		s.consecutiveFail++
		if s.consecutiveFail >= FailureThreshold {
			s.state = Open
			s.openedAt = b.clock.Now()
		}
	}
}

// StateOf returns the current state of the (agentID, tool) breaker, for
// diagnostics.
func (b *Breaker) StateOf(agentID, tool string) State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.get(agentID, tool).state
}
