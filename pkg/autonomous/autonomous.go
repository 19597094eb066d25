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

// Package autonomous extends a reasoning BaseAgent with an event-driven
// scan scheduler: agents that watch the event bus for signals (new
// transactions, flagged alerts) and run a reasoning cycle either on a
// fixed interval or sooner when enough high-priority events pile up.
package autonomous

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/riskforge/agentcore/pkg/clock"
	"github.com/riskforge/agentcore/pkg/eventbus"
	"github.com/riskforge/agentcore/pkg/reasoning"
)

// MaxEventBuffer bounds the pending-event FIFO.
const MaxEventBuffer = 1000

// MaxRunHistory bounds how many past cycles are retained.
const MaxRunHistory = 50

// maxTickInterval caps the time between the scheduler's checks of whether
// a cycle should run, regardless of how large ScanIntervalMs is.
const maxTickInterval = 10 * time.Second

// acceleratedPriorities are the event priorities that count toward
// EventAccelerationThreshold.
var acceleratedPriorities = map[string]bool{
	"CRITICAL": true,
	"HIGH":     true,
	"URGENT":   true,
}

// Event is one inbound signal the scheduler buffers between cycles.
type Event struct {
	Topic      string
	Data       any
	Priority   string
	ReceivedAt int64
}

// RunHistoryEntry records one completed (or failed) cycle.
type RunHistoryEntry struct {
	CycleID         string
	StartedAt       int64
	DurationMs      int64
	EventsProcessed int
	Status          string
	ResultSummary   string
	Error           string
}

// Config wires an Agent's collaborators and scheduling parameters.
type Config struct {
	AgentID string
	Base    *reasoning.BaseAgent
	Bus     eventbus.Bus
	Clock   clock.Clock

	// ScanIntervalMs is how often a cycle runs absent any accelerating
	// events. Defaults to 300_000 (5 minutes) when zero.
	ScanIntervalMs int64
	// EventAccelerationThreshold is how many CRITICAL/HIGH/URGENT events
	// in the buffer trigger an immediate cycle. Defaults to 3 when zero.
	EventAccelerationThreshold int

	SubscribedTopics []string

	// BuildScanInput turns the buffered events into the reasoning input
	// for this cycle. Required: a cycle with no BuildScanInput fails
	// immediately rather than calling Reason with nothing to reason about.
	BuildScanInput func(events []Event) (map[string]any, error)
	// PostCycle runs after Reason returns, with the cycle's Thought.
	// Optional.
	PostCycle func(ctx context.Context, thought reasoning.Thought)
}

// Agent is a BaseAgent driven by an event-buffered scan scheduler rather
// than direct calls to Reason.
type Agent struct {
	cfg Config

	mu          sync.Mutex
	eventBuffer []Event
	runHistory  []RunHistoryEntry
	isRunning   bool
	inCycle     bool
	lastRunAt   int64

	unsubs     []eventbus.Unsubscribe
	cancelTick func()

	cycleSeq uint64
}

// New builds an Agent from cfg, applying defaults for zero-valued scan
// parameters.
func New(cfg Config) *Agent {
	if cfg.ScanIntervalMs == 0 {
		cfg.ScanIntervalMs = 300_000
	}
	if cfg.EventAccelerationThreshold == 0 {
		cfg.EventAccelerationThreshold = 3
	}
	return &Agent{cfg: cfg}
}

// Start subscribes to every configured topic and schedules the tick timer.
// Idempotent: calling Start on an already-running Agent is a no-op.
func (a *Agent) Start(ctx context.Context) {
	a.mu.Lock()
	if a.isRunning {
		a.mu.Unlock()
		return
	}
	a.isRunning = true
	a.mu.Unlock()

	if a.cfg.Bus != nil {
		for _, topic := range a.cfg.SubscribedTopics {
			topic := topic
			unsub := a.cfg.Bus.Subscribe(topic, func(t string, data any) {
				a.handleEvent(ctx, t, data)
			})
			a.mu.Lock()
			a.unsubs = append(a.unsubs, unsub)
			a.mu.Unlock()
		}
	}

	interval := a.tickInterval()
	a.cancelTick = a.cfg.Clock.SetInterval(func() { a.tick(ctx) }, interval)

	a.publish("agent:autonomous:started", map[string]any{"agentId": a.cfg.AgentID})
}

// Stop cancels the tick timer, unsubscribes from every topic, and clears
// isRunning.
func (a *Agent) Stop() {
	a.mu.Lock()
	if !a.isRunning {
		a.mu.Unlock()
		return
	}
	a.isRunning = false
	cancel := a.cancelTick
	unsubs := a.unsubs
	a.unsubs = nil
	a.cancelTick = nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, unsub := range unsubs {
		unsub()
	}

	a.publish("agent:autonomous:stopped", map[string]any{"agentId": a.cfg.AgentID})
}

// IsRunning reports whether Start has been called without a matching Stop.
func (a *Agent) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.isRunning
}

func (a *Agent) tickInterval() time.Duration {
	d := time.Duration(a.cfg.ScanIntervalMs) * time.Millisecond
	if d <= 0 || d > maxTickInterval {
		return maxTickInterval
	}
	return d
}

func (a *Agent) tick(ctx context.Context) {
	if a.shouldRunNow() {
		a.runOneCycleIfIdle(ctx)
	}
}

func (a *Agent) handleEvent(ctx context.Context, topic string, data any) {
	event := Event{Topic: topic, Data: data, Priority: extractPriority(data), ReceivedAt: a.cfg.Clock.Now()}

	a.mu.Lock()
	a.eventBuffer = append(a.eventBuffer, event)
	if len(a.eventBuffer) > MaxEventBuffer {
		a.eventBuffer = a.eventBuffer[len(a.eventBuffer)-MaxEventBuffer:]
	}
	a.mu.Unlock()

	if a.shouldRunNow() {
		a.runOneCycleIfIdle(ctx)
	}
}

// shouldRunNow implements the three-way trigger: enough accelerating
// events, a first run against a non-empty buffer, or the interval having
// elapsed against a non-empty buffer.
func (a *Agent) shouldRunNow() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.eventBuffer) == 0 {
		return false
	}

	accelerated := 0
	for _, e := range a.eventBuffer {
		if acceleratedPriorities[e.Priority] {
			accelerated++
		}
	}
	if accelerated >= a.cfg.EventAccelerationThreshold {
		return true
	}
	if a.lastRunAt == 0 {
		return true
	}
	return a.cfg.Clock.Now()-a.lastRunAt >= a.cfg.ScanIntervalMs
}

// runOneCycleIfIdle runs a cycle unless one is already in progress,
// enforcing that at most one cycle per agent runs at a time.
func (a *Agent) runOneCycleIfIdle(ctx context.Context) {
	a.mu.Lock()
	if a.inCycle {
		a.mu.Unlock()
		return
	}
	a.inCycle = true
	a.mu.Unlock()

	a.runOneCycle(ctx)

	a.mu.Lock()
	a.inCycle = false
	a.mu.Unlock()
}

// runOneCycle drains the event buffer, builds this cycle's reasoning
// input, runs Reason, and records the outcome to run history.
func (a *Agent) runOneCycle(ctx context.Context) RunHistoryEntry {
	cycleID := fmt.Sprintf("CYCLE-%s-%d", a.cfg.AgentID, atomic.AddUint64(&a.cycleSeq, 1))
	startedAt := a.cfg.Clock.Now()

	a.mu.Lock()
	events := a.eventBuffer
	a.eventBuffer = nil
	a.mu.Unlock()

	entry := RunHistoryEntry{CycleID: cycleID, StartedAt: startedAt, EventsProcessed: len(events)}

	if a.cfg.BuildScanInput == nil {
		entry.Status = "failed"
		entry.Error = "autonomous: BuildScanInput is not configured"
		a.finishCycle(entry, startedAt)
		return entry
	}

	input, err := a.cfg.BuildScanInput(events)
	if err != nil {
		entry.Status = "failed"
		entry.Error = err.Error()
		a.finishCycle(entry, startedAt)
		return entry
	}

	thought := a.cfg.Base.Reason(ctx, input, map[string]any{
		"autonomous":      true,
		"cycleId":         cycleID,
		"eventsProcessed": len(events),
	})

	if a.cfg.PostCycle != nil {
		a.cfg.PostCycle(ctx, thought)
	}

	if thought.Error != "" {
		entry.Status = "failed"
		entry.Error = thought.Error
	} else {
		entry.Status = "success"
		entry.ResultSummary = thought.Result.Summary
	}

	a.finishCycle(entry, startedAt)
	return entry
}

func (a *Agent) finishCycle(entry RunHistoryEntry, startedAt int64) {
	entry.DurationMs = a.cfg.Clock.Now() - startedAt

	a.mu.Lock()
	a.lastRunAt = a.cfg.Clock.Now()
	a.runHistory = append(a.runHistory, entry)
	if len(a.runHistory) > MaxRunHistory {
		a.runHistory = a.runHistory[len(a.runHistory)-MaxRunHistory:]
	}
	a.mu.Unlock()

	topic := "agent:autonomous:cycle:complete"
	if entry.Status == "failed" {
		topic = "agent:autonomous:cycle:error"
	}
	a.publish(topic, map[string]any{"agentId": a.cfg.AgentID, "cycleId": entry.CycleID, "status": entry.Status})
}

func (a *Agent) publish(topic string, data any) {
	if a.cfg.Bus != nil {
		a.cfg.Bus.Publish(topic, data)
	}
}

// RunHistory returns a copy of the agent's bounded cycle history, oldest
// first.
func (a *Agent) RunHistory() []RunHistoryEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]RunHistoryEntry, len(a.runHistory))
	copy(out, a.runHistory)
	return out
}

// EventBufferLen reports how many events are currently buffered.
func (a *Agent) EventBufferLen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.eventBuffer)
}

func extractPriority(data any) string {
	m, ok := data.(map[string]any)
	if !ok {
		return ""
	}
	p, ok := m["priority"].(string)
	if !ok {
		return ""
	}
	return strings.ToUpper(p)
}
