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

package agents

import (
	"context"
	"fmt"

	"github.com/riskforge/agentcore/pkg/autonomous"
	"github.com/riskforge/agentcore/pkg/eventbus"
	"github.com/riskforge/agentcore/pkg/reasoning"
)

// policyEvolutionTopics are the events that feed a rule-proposal cycle.
var policyEvolutionTopics = []string{"rule:evaluated", "case:closed"}

const policyEvolutionSystemPrompt = "You are a policy-evolution analyst. " +
	"Given recently evaluated rules and recently closed cases, decide whether " +
	"an existing rule's checkpoint or threshold should change, and whether a " +
	"new rule should be proposed to cover a gap the cases reveal."

// recommendationsWarrantingProposal are the Observe recommendations that
// are worth turning into a rule proposal rather than a silent no-op cycle.
var recommendationsWarrantingProposal = map[reasoning.Recommendation]bool{
	reasoning.Review:  true,
	reasoning.Reject:  true,
	reasoning.Block:   true,
	reasoning.Monitor: true,
}

// PolicyEvolution watches rule-evaluation and case-closure events and, when
// a cycle's reasoning turns up a gap, proposes a rule change over the event
// bus rather than applying one directly.
type PolicyEvolution struct {
	Base    *reasoning.BaseAgent
	Scanner *autonomous.Agent
}

// NewPolicyEvolution builds a PolicyEvolution agent. cfg's Role and
// SystemPrompt default to policy-evolution-specific values when left empty.
func NewPolicyEvolution(cfg reasoning.Config, scan autonomous.Config) *PolicyEvolution {
	if cfg.Role == "" {
		cfg.Role = "policy evolution analyst"
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = policyEvolutionSystemPrompt
	}
	base := reasoning.NewBaseAgent(cfg)

	scan.AgentID = cfg.AgentID
	scan.Base = base
	bus := scan.Bus
	if bus == nil {
		bus = cfg.Bus
	}
	scan.Bus = bus
	if scan.Clock == nil {
		scan.Clock = cfg.Clock
	}
	if len(scan.SubscribedTopics) == 0 {
		scan.SubscribedTopics = policyEvolutionTopics
	}
	if scan.BuildScanInput == nil {
		scan.BuildScanInput = buildPolicyEvolutionScanInput
	}
	userPostCycle := scan.PostCycle
	scan.PostCycle = func(ctx context.Context, thought reasoning.Thought) {
		publishRuleProposal(bus, cfg.AgentID, thought)
		if userPostCycle != nil {
			userPostCycle(ctx, thought)
		}
	}

	return &PolicyEvolution{Base: base, Scanner: autonomous.New(scan)}
}

func buildPolicyEvolutionScanInput(events []autonomous.Event) (map[string]any, error) {
	var rules, cases []any
	for _, e := range events {
		switch e.Topic {
		case "rule:evaluated":
			rules = append(rules, e.Data)
		case "case:closed":
			cases = append(cases, e.Data)
		}
	}
	if len(rules) == 0 && len(cases) == 0 {
		return nil, fmt.Errorf("policyevolution: no rule or case events to scan")
	}
	return map[string]any{
		"type":  "policy-evolution",
		"rules": rules,
		"cases": cases,
	}, nil
}

// publishRuleProposal emits policy-evolution:rule-proposed when the cycle's
// recommendation is worth turning into a proposal, then always emits
// policy-evolution:cycle-complete.
func publishRuleProposal(bus eventbus.Bus, agentID string, thought reasoning.Thought) {
	if bus == nil {
		return
	}
	if thought.Error == "" && recommendationsWarrantingProposal[thought.Result.Recommendation] {
		bus.Publish("policy-evolution:rule-proposed", map[string]any{
			"agentId":        agentID,
			"traceId":        thought.TraceID,
			"recommendation": string(thought.Result.Recommendation),
			"riskScore":      thought.Result.RiskScore,
			"confidence":     thought.Result.Confidence,
			"rationale":      thought.Result.Summary,
		})
	}
	bus.Publish("policy-evolution:cycle-complete", map[string]any{
		"agentId": agentID,
		"traceId": thought.TraceID,
		"error":   thought.Error,
	})
}
