package reasoning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskforge/agentcore/pkg/memory"
	"github.com/riskforge/agentcore/pkg/pattern"
)

func TestLearnSavesShortTermEntryAndPattern(t *testing.T) {
	agent, _ := testAgent(t, nil, analyzeTool())
	ctx := context.Background()
	thought := Thought{TraceID: "t1"}
	observation := Observation{Summary: "fine", Recommendation: Approve, Confidence: 0.8}
	input := map[string]any{"amount": 5.0}

	agent.learn(ctx, thought, observation, input)

	entries, err := agent.cfg.Memory.GetShortTerm(ctx, agent.cfg.AgentID, agent.cfg.SessionID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "t1", entries[0].Entry["traceId"])

	assert.Equal(t, 1, agent.cfg.Patterns.Count(patternType(input, agent.cfg.Role)))
}

func TestLearnConsolidatesEveryConsolidateEveryTurns(t *testing.T) {
	agent, _ := testAgent(t, nil, analyzeTool())
	ctx := context.Background()
	observation := Observation{Summary: "fine", Recommendation: Approve, Confidence: 0.8}

	for i := 0; i < ConsolidateEvery; i++ {
		agent.mu.Lock()
		agent.turnCount = i
		agent.mu.Unlock()
		agent.learn(ctx, Thought{TraceID: "t"}, observation, map[string]any{"note": "flag", "i": i})
	}
	// Consolidate only runs when turnCount is a positive multiple of
	// ConsolidateEvery; the loop above ends with turnCount at
	// ConsolidateEvery-1, so bump it once more to cross the boundary.
	agent.mu.Lock()
	agent.turnCount = ConsolidateEvery
	agent.mu.Unlock()
	agent.learn(ctx, Thought{TraceID: "t"}, observation, map[string]any{"note": "flag"})

	// All 21 saved turns share the "unclassified" group key, so one
	// long-term pattern entry is promoted.
	promoted, err := agent.cfg.Memory.GetByType(ctx, agent.cfg.AgentID, memory.TypePattern)
	require.NoError(t, err)
	assert.Len(t, promoted, 1)
}

func TestProvideFeedbackUpdatesPatternSuccessRate(t *testing.T) {
	agent, _ := testAgent(t, nil, analyzeTool())
	ctx := context.Background()

	p, _, err := agent.cfg.Patterns.Learn(ctx, pattern.LearnInput{
		Type:       "a fraud analyst",
		Features:   map[string]any{"amount": 10.0},
		Outcome:    pattern.Suspicious,
		Confidence: 0.5,
		Source:     "seed",
	})
	require.NoError(t, err)

	agent.ProvideFeedback(ctx, "trace-1", p.PatternID, 0.5, true)

	updated, ok := agent.cfg.Patterns.Get(p.PatternID)
	require.True(t, ok)
	assert.Equal(t, 2, updated.TotalValidations)
	assert.InDelta(t, 0.5, updated.SuccessRate, 1e-9)
}
