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

// Package selfcorrect logs an agent's predictions, records their eventual
// outcomes, and flags when recent accuracy has dropped against an agent's
// longer-run baseline.
package selfcorrect

import (
	"sync"

	"github.com/riskforge/agentcore/pkg/clock"
)

// RecentWindow is how many of the most recent outcomes make up the "recent"
// accuracy figure a baseline is compared against.
const RecentWindow = 20

// DropThreshold is how far recent accuracy must fall below baseline accuracy,
// in absolute terms, before a drop is flagged.
const DropThreshold = 0.15

// MinBaselineForDrop is the minimum number of resolved outcomes that must
// precede the recent window before DetectDrop will report a drop at all —
// too few samples and a single miss would look like a collapse.
const MinBaselineForDrop = RecentWindow

// Prediction is one logged prediction awaiting (or already resolved with)
// an outcome.
type Prediction struct {
	ID         string
	AgentID    string
	Confidence float64
	LoggedAt   int64
	Resolved   bool
	Correct    bool
	ResolvedAt int64
}

// Drop reports a detected accuracy regression for one agent.
type Drop struct {
	AgentID          string
	BaselineAccuracy float64
	RecentAccuracy   float64
	Delta            float64
}

type agentLog struct {
	predictions map[string]*Prediction
	order       []string // prediction IDs in log order, oldest first
}

// Tracker logs predictions per agent and detects when an agent's recent
// accuracy has fallen meaningfully below its historical baseline.
type Tracker struct {
	mu    sync.RWMutex
	clock clock.Clock
	log   map[string]*agentLog
}

// New builds an empty Tracker.
func New(clk clock.Clock) *Tracker {
	return &Tracker{clock: clk, log: make(map[string]*agentLog)}
}

func (t *Tracker) logFor(agentID string) *agentLog {
	l, ok := t.log[agentID]
	if !ok {
		l = &agentLog{predictions: make(map[string]*Prediction)}
		t.log[agentID] = l
	}
	return l
}

// LogPrediction records a new, unresolved prediction.
func (t *Tracker) LogPrediction(id, agentID string, confidence float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	l := t.logFor(agentID)
	l.predictions[id] = &Prediction{
		ID:         id,
		AgentID:    agentID,
		Confidence: confidence,
		LoggedAt:   t.clock.Now(),
	}
	l.order = append(l.order, id)
}

// RecordOutcome resolves a previously logged prediction with whether it
// turned out to be correct. Resolving an unknown ID is a no-op: the
// prediction may have aged out of retention elsewhere in the system.
func (t *Tracker) RecordOutcome(id, agentID string, correct bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.log[agentID]
	if !ok {
		return
	}
	p, ok := l.predictions[id]
	if !ok {
		return
	}
	p.Resolved = true
	p.Correct = correct
	p.ResolvedAt = t.clock.Now()
}

// resolvedInOrder returns agentID's resolved predictions, oldest first. Must
// hold t.mu (read or write).
func (t *Tracker) resolvedInOrder(agentID string) []*Prediction {
	l, ok := t.log[agentID]
	if !ok {
		return nil
	}
	resolved := make([]*Prediction, 0, len(l.order))
	for _, id := range l.order {
		if p := l.predictions[id]; p != nil && p.Resolved {
			resolved = append(resolved, p)
		}
	}
	return resolved
}

func accuracy(preds []*Prediction) float64 {
	if len(preds) == 0 {
		return 0
	}
	correct := 0
	for _, p := range preds {
		if p.Correct {
			correct++
		}
	}
	return float64(correct) / float64(len(preds))
}

// DetectDrop compares agentID's most recent RecentWindow resolved outcomes
// against its full resolved history up to that window. It reports ok=false
// until at least MinBaselineForDrop outcomes precede the recent window.
func (t *Tracker) DetectDrop(agentID string) (Drop, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	resolved := t.resolvedInOrder(agentID)
	if len(resolved) < RecentWindow+MinBaselineForDrop {
		return Drop{}, false
	}

	recent := resolved[len(resolved)-RecentWindow:]
	baseline := resolved[:len(resolved)-RecentWindow]

	recentAcc := accuracy(recent)
	baselineAcc := accuracy(baseline)
	delta := baselineAcc - recentAcc
	if delta < DropThreshold {
		return Drop{}, false
	}
	return Drop{
		AgentID:          agentID,
		BaselineAccuracy: baselineAcc,
		RecentAccuracy:   recentAcc,
		Delta:            delta,
	}, true
}

// Accuracy returns agentID's overall resolved-prediction accuracy.
func (t *Tracker) Accuracy(agentID string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return accuracy(t.resolvedInOrder(agentID))
}

// PendingCount returns how many of agentID's logged predictions are still
// unresolved.
func (t *Tracker) PendingCount(agentID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	l, ok := t.log[agentID]
	if !ok {
		return 0
	}
	pending := 0
	for _, p := range l.predictions {
		if !p.Resolved {
			pending++
		}
	}
	return pending
}
