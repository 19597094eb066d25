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

	"github.com/riskforge/agentcore/pkg/pattern"
)

// recommendationOutcome is the provisional pattern outcome a fresh
// recommendation maps to, before any ground-truth feedback arrives.
var recommendationOutcome = map[Recommendation]pattern.Outcome{
	Approve: pattern.LegitimateConfirmed,
	Review:  pattern.Suspicious,
	Reject:  pattern.FraudConfirmed,
	Block:   pattern.FraudConfirmed,
	Monitor: pattern.Suspicious,
}

// patternPrecheck matches input's features against learned patterns before
// Think runs, recording a chain step for every match above
// patternMatchThreshold.
func (a *BaseAgent) patternPrecheck(chain *Chain, input map[string]any) pattern.MatchResult {
	if a.cfg.Patterns == nil {
		return pattern.MatchResult{}
	}
	result := a.cfg.Patterns.Match(patternType(input, a.cfg.Role), extractFeatures(input))
	for _, m := range result.Matches {
		if m.Score > patternMatchThreshold {
			chain.Append(Evidence, "matched learned pattern "+m.Pattern.PatternID, Likely)
		}
	}
	if a.cfg.Metrics != nil && len(result.Matches) > 0 {
		a.cfg.Metrics.RecordPatternMatch(string(result.Recommendation))
	}
	return result
}

// learn runs the Learn phase: it saves the turn to short-term
// memory, learns a provisional pattern from the observation, and every
// ConsolidateEvery turns promotes short-term memory into long-term memory.
func (a *BaseAgent) learn(ctx context.Context, thought Thought, observation Observation, input map[string]any) {
	if a.cfg.Memory != nil {
		_, _ = a.cfg.Memory.SaveShortTerm(ctx, a.cfg.AgentID, a.cfg.SessionID, map[string]any{
			"traceId":        thought.TraceID,
			"input":          input,
			"recommendation": string(observation.Recommendation),
			"riskScore":      observation.RiskScore,
			"summary":        observation.Summary,
		})

		a.mu.Lock()
		turns := a.turnCount
		a.mu.Unlock()
		if turns > 0 && turns%ConsolidateEvery == 0 {
			_, _ = a.cfg.Memory.Consolidate(ctx, a.cfg.AgentID, a.cfg.SessionID)
		}
	}

	if a.cfg.SelfCorrect != nil {
		a.cfg.SelfCorrect.LogPrediction(thought.TraceID, a.cfg.AgentID, observation.Confidence)
	}

	if a.cfg.Patterns == nil {
		return
	}
	outcome, ok := recommendationOutcome[observation.Recommendation]
	if !ok {
		return
	}
	_, _, _ = a.cfg.Patterns.Learn(ctx, pattern.LearnInput{
		Type:       patternType(input, a.cfg.Role),
		Features:   extractFeatures(input),
		Outcome:    outcome,
		Confidence: observation.Confidence,
		Source:     thought.TraceID,
	})
}

// ProvideFeedback records a ground-truth outcome against a prior turn's
// trace, once it becomes known: it corrects the pattern that turn learned,
// updates this agent's confidence calibration, and feeds the self-correction
// tracker that watches for accuracy regressions.
func (a *BaseAgent) ProvideFeedback(ctx context.Context, traceID, patternID string, predictedConfidence float64, wasCorrect bool) {
	if a.cfg.Patterns != nil && patternID != "" {
		_, _ = a.cfg.Patterns.ProvideFeedback(ctx, patternID, wasCorrect)
	}
	if a.cfg.Calibrator != nil {
		_ = a.cfg.Calibrator.Record(ctx, a.cfg.AgentID, predictedConfidence, wasCorrect)
	}
	if a.cfg.SelfCorrect != nil {
		a.cfg.SelfCorrect.RecordOutcome(traceID, a.cfg.AgentID, wasCorrect)
	}
}
