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
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/riskforge/agentcore/pkg/calibration"
	"github.com/riskforge/agentcore/pkg/clock"
	"github.com/riskforge/agentcore/pkg/eventbus"
	"github.com/riskforge/agentcore/pkg/knowledge"
	"github.com/riskforge/agentcore/pkg/llm"
	"github.com/riskforge/agentcore/pkg/memory"
	"github.com/riskforge/agentcore/pkg/obs"
	"github.com/riskforge/agentcore/pkg/pattern"
	"github.com/riskforge/agentcore/pkg/selfcorrect"
	"github.com/riskforge/agentcore/pkg/toolexec"
)

// ConsolidateEvery is how many completed turns trigger a short-term to
// long-term memory consolidation pass.
const ConsolidateEvery = 20

// patternMatchThreshold is the minimum match score that earns a pattern an
// evidence step in the chain during the precheck.
const patternMatchThreshold = 0.5

// Config wires a BaseAgent's collaborators. Knowledge and DomainContext are
// optional: a nil Knowledge means ragResults is simply never populated, and
// context assembly's best-effort sources degrade silently when absent.
type Config struct {
	AgentID      string
	Role         string
	SessionID    string
	SystemPrompt string
	TokenBudget  int

	// Model, Temperature and MaxTokens parameterize every LLM call the
	// turn makes. Leaving Model empty on a provider without its own
	// default means the provider rejects the call, so wiring code should
	// always set it when an LLM is configured.
	Model       string
	Temperature float64
	MaxTokens   int

	Tools []Tool

	LLM                *llm.Client
	Memory             *memory.Store
	Patterns           *pattern.Store
	Calibrator         *calibration.Calibrator
	SelfCorrect        *selfcorrect.Tracker
	Knowledge          *knowledge.Store
	KnowledgeNamespace string

	Executor  *toolexec.Executor
	Metrics   *obs.Metrics
	Decisions *obs.DecisionLogger
	Bus       eventbus.Bus
	Clock     clock.Clock

	// Autonomy bounds decide whether a turn's recommendation auto-applies
	// downstream or waits on a human. Zero-valued means manual review for
	// everything.
	Autonomy Thresholds

	// DomainContext supplies the lowest-priority context section; callers
	// that have no domain-specific context to add may leave it nil.
	DomainContext func(ctx context.Context, input map[string]any) (string, error)
}

// BaseAgent is the reasoning loop shared by every specialized agent: a
// single Reason call drives Think, Plan, (optional re-plan), Act, Observe,
// Reflect, Conclude and Learn in sequence.
type BaseAgent struct {
	cfg   Config
	tools map[string]Tool

	mu         sync.Mutex
	thoughtLog []Thought
	turnCount  int
}

// NewBaseAgent builds a BaseAgent from cfg.
func NewBaseAgent(cfg Config) *BaseAgent {
	tools := make(map[string]Tool, len(cfg.Tools))
	for _, t := range cfg.Tools {
		tools[t.Name] = t
	}
	return &BaseAgent{cfg: cfg, tools: tools}
}

// Reason runs one full reasoning turn over input. It never panics or
// returns a Go error: any failure is captured into the returned Thought's
// Error field with Result.Success=false: the agent never throws across
// its own loop boundary.
func (a *BaseAgent) Reason(ctx context.Context, input map[string]any, turnContext map[string]any) Thought {
	chain := NewChain(a.cfg.AgentID)
	traceID := uuid.NewString()

	ctx, span := obs.Tracer("reasoning").Start(ctx, "reason")
	defer span.End()

	start := a.clock().Now()
	thought := Thought{
		TraceID:   traceID,
		Timestamp: start,
		Input:     input,
		Context:   map[string]any{},
	}
	if turnContext != nil {
		for k, v := range turnContext {
			thought.Context[k] = v
		}
	}

	assembled, err := a.assembleContext(ctx, input)
	if err != nil {
		return a.fail(chain, thought, span, "context assembly", err)
	}
	thought.Context["assembledContext"] = assembled.Prompt
	thought.Context["tokenCount"] = assembled.TokenCount

	matchResult := a.patternPrecheck(chain, input)
	for _, m := range matchResult.Matches {
		if m.Score > patternMatchThreshold {
			thought.PatternMatches = append(thought.PatternMatches, m.Pattern.PatternID)
		}
	}
	thought.Context["patternRecommendation"] = string(matchResult.Recommendation)

	thinkOut, err := a.think(ctx, input, assembled.Prompt)
	if err != nil {
		return a.fail(chain, thought, span, "think", err)
	}
	chain.Append(Hypothesis, thinkOut.SuggestedApproach, confidenceFromScore(thinkOut.Confidence))
	thought.Reasoning = append(thought.Reasoning, thinkOut.Understanding)

	planOut, err := a.plan(ctx, thinkOut.Understanding)
	if err != nil {
		return a.fail(chain, thought, span, "plan", err)
	}
	actions := a.validateActions(planOut.Actions)

	executed := a.act(ctx, chain, actions)

	replanCount := 0
	if shouldRePlan(executed) && replanCount == 0 {
		successes, failures := splitActionTypes(executed)
		replanOut, err := a.replan(ctx, planOut.Goal, successes, failures)
		if err == nil {
			executed = a.act(ctx, chain, a.validateActions(replanOut.Actions))
		}
		replanCount = 1
	}
	thought.Actions = executed

	observation := a.observe(ctx, executed)
	observation.Confidence = a.calibrateConfidence(observation.Confidence)
	observation = a.reflect(ctx, observation)
	thought.Result = observation
	thought.Context["disposition"] = string(a.cfg.Autonomy.Disposition(observation.Recommendation, observation.RiskScore))

	if observation.Confidence > 0 {
		success := allSucceeded(executed)
		concludeConfidence := Likely
		if !success {
			concludeConfidence = Certain
		}
		chain.Append(Conclusion, observation.Summary, concludeConfidence)
	}
	thought.ChainOfThought = chain.Steps()

	a.learn(ctx, thought, observation, input)

	durationMs := a.clock().Now() - start
	thought.Context["durationMs"] = durationMs
	a.appendThoughtLog(thought)

	if a.cfg.Decisions != nil {
		_, _ = a.cfg.Decisions.Log(ctx, obs.Decision{
			TraceID:        traceID,
			AgentID:        a.cfg.AgentID,
			Input:          input,
			Recommendation: string(observation.Recommendation),
			RiskScore:      observation.RiskScore,
			Confidence:     observation.Confidence,
			Actions:        actionTypes(executed),
			Timestamp:      start,
		})
	}
	if a.cfg.Metrics != nil {
		outcome := "success"
		if !allSucceeded(executed) {
			outcome = "partial"
		}
		a.cfg.Metrics.RecordCycle(a.cfg.AgentID, outcome, time.Duration(durationMs)*time.Millisecond)
	}
	if a.cfg.Bus != nil {
		a.cfg.Bus.Publish("agent:thought", map[string]any{
			"agentId":     a.cfg.AgentID,
			"agentName":   a.cfg.Role,
			"summary":     observation.Summary,
			"actionCount": len(executed),
		})
	}

	span.SetStatus(codes.Ok, "")
	return thought
}

// fail finalizes thought as a failed turn: a
// Certain conclusion recording the error, Result.Success=false, and the
// trace span marked errored. The agent remains usable for future turns.
func (a *BaseAgent) fail(chain *Chain, thought Thought, span trace.Span, phase string, err error) Thought {
	wrapped := fmt.Errorf("reasoning: %s: %w", phase, err)
	chain.Append(Conclusion, wrapped.Error(), Certain)
	thought.ChainOfThought = chain.Steps()
	thought.Error = wrapped.Error()
	thought.Result = Observation{Summary: wrapped.Error(), Recommendation: Review}

	span.RecordError(wrapped)
	span.SetStatus(codes.Error, wrapped.Error())

	a.appendThoughtLog(thought)
	if a.cfg.Metrics != nil {
		a.cfg.Metrics.RecordAgentError(a.cfg.AgentID, phase)
	}
	return thought
}

func (a *BaseAgent) clock() clock.Clock { return a.cfg.Clock }

// llmOptions is the per-call Options every phase's LLM request carries:
// the configured model parameters plus this agent's id, so the Cost
// Tracker attributes spend to the agent rather than the SYSTEM bucket.
func (a *BaseAgent) llmOptions() llm.Options {
	return llm.Options{
		Model:       a.cfg.Model,
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
		AgentID:     a.cfg.AgentID,
	}
}

func (a *BaseAgent) appendThoughtLog(t Thought) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.thoughtLog = append(a.thoughtLog, t)
	if len(a.thoughtLog) > MaxThoughtLog {
		a.thoughtLog = a.thoughtLog[len(a.thoughtLog)-MaxThoughtLog:]
	}
	a.turnCount++
}

// ThoughtLog returns a copy of the agent's bounded thought history, newest
// last.
func (a *BaseAgent) ThoughtLog() []Thought {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Thought, len(a.thoughtLog))
	copy(out, a.thoughtLog)
	return out
}

func extractFeatures(input map[string]any) map[string]any {
	features := make(map[string]any, len(input))
	for k, v := range input {
		switch v.(type) {
		case string, bool, float64, int:
			features[k] = v
		}
	}
	return features
}

func patternType(input map[string]any, fallback string) string {
	if t, ok := input["type"].(string); ok && t != "" {
		return t
	}
	return fallback
}

func confidenceFromScore(score float64) Confidence {
	switch {
	case score >= 0.9:
		return Certain
	case score >= 0.7:
		return Likely
	case score >= 0.4:
		return Possible
	default:
		return Speculative
	}
}

func allSucceeded(actions []Action) bool {
	for _, a := range actions {
		if !a.Result.Success {
			return false
		}
	}
	return true
}

func actionTypes(actions []Action) []string {
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = a.Type
	}
	return out
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
