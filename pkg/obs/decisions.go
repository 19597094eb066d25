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

package obs

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/riskforge/agentcore/pkg/kvstore"
)

// Decision is one audit entry for a reasoning-loop cycle's conclusion.
type Decision struct {
	ID             string         `json:"id"`
	TraceID        string         `json:"traceId"`
	AgentID        string         `json:"agentId"`
	Input          map[string]any `json:"input"`
	Recommendation string         `json:"recommendation"`
	RiskScore      float64        `json:"riskScore"`
	Confidence     float64        `json:"confidence"`
	Actions        []string       `json:"actions"`
	Timestamp      int64          `json:"timestamp"`
}

// DecisionLogger writes decision audit entries through the KVStore facade's
// agent_decisions table and serves them back by agent or time range.
type DecisionLogger struct {
	mu sync.RWMutex
	kv kvstore.Store

	byID    map[string]*Decision
	byAgent map[string][]string // agentID -> decision IDs, insertion order
}

// NewDecisionLogger builds an empty DecisionLogger. Call Load to hydrate
// it from kv.
func NewDecisionLogger(kv kvstore.Store) *DecisionLogger {
	return &DecisionLogger{
		kv:      kv,
		byID:    make(map[string]*Decision),
		byAgent: make(map[string][]string),
	}
}

// Load rebuilds the in-process index from whatever was previously persisted.
func (l *DecisionLogger) Load(ctx context.Context) error {
	blobs, err := l.kv.GetAll(ctx, kvstore.TableDecisions, 0, 0)
	if err != nil {
		return fmt.Errorf("obs: load decisions: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, blob := range blobs {
		var d Decision
		if err := json.Unmarshal(blob, &d); err != nil || d.ID == "" {
			continue
		}
		l.indexLocked(&d)
	}
	return nil
}

func (l *DecisionLogger) indexLocked(d *Decision) {
	l.byID[d.ID] = d
	l.byAgent[d.AgentID] = append(l.byAgent[d.AgentID], d.ID)
}

// Log records d (assigning an ID and partitioning under AgentID) and
// persists it.
func (l *DecisionLogger) Log(ctx context.Context, d Decision) (*Decision, error) {
	d.ID = uuid.NewString()
	blob, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("obs: marshal decision: %w", err)
	}
	if err := l.kv.Insert(ctx, kvstore.TableDecisions, d.AgentID, d.ID, blob); err != nil {
		return nil, fmt.Errorf("obs: persist decision: %w", err)
	}

	l.mu.Lock()
	l.indexLocked(&d)
	l.mu.Unlock()
	return &d, nil
}

// ForAgent returns agentID's decisions whose Timestamp falls within
// [since, until] (inclusive), oldest first. A zero until means no upper
// bound.
func (l *DecisionLogger) ForAgent(agentID string, since, until int64) []Decision {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Decision
	for _, id := range l.byAgent[agentID] {
		d := l.byID[id]
		if d == nil || d.Timestamp < since {
			continue
		}
		if until > 0 && d.Timestamp > until {
			continue
		}
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

// Get returns a single decision by ID.
func (l *DecisionLogger) Get(id string) (Decision, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	d, ok := l.byID[id]
	if !ok {
		return Decision{}, false
	}
	return *d, true
}
