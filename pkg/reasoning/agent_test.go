package reasoning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskforge/agentcore/pkg/circuit"
	"github.com/riskforge/agentcore/pkg/clock"
	"github.com/riskforge/agentcore/pkg/eventbus"
	"github.com/riskforge/agentcore/pkg/kvstore"
	"github.com/riskforge/agentcore/pkg/llm"
	"github.com/riskforge/agentcore/pkg/memory"
	"github.com/riskforge/agentcore/pkg/obs"
	"github.com/riskforge/agentcore/pkg/pattern"
	"github.com/riskforge/agentcore/pkg/toolexec"
)

func testAgent(t *testing.T, llmClient *llm.Client, tools ...Tool) (*BaseAgent, clock.Clock) {
	t.Helper()
	clk := clock.NewFake(1000)
	kv := kvstore.NewInMemory()
	bus := eventbus.New()
	mem := memory.NewStore(kv, clk)
	patterns := pattern.NewStore(kv, clk, bus)
	exec := toolexec.New(circuit.New(clk), nil, clk)

	cfg := Config{
		AgentID:      "agent-1",
		Role:         "a fraud analyst",
		SessionID:    "session-1",
		SystemPrompt: "You review transactions for fraud.",
		Model:        "gpt-4o-mini",
		Temperature:  0.2,
		Tools:        tools,
		LLM:          llmClient,
		Memory:       mem,
		Patterns:     patterns,
		Executor:     exec,
		Bus:          bus,
		Clock:        clk,
	}
	return NewBaseAgent(cfg), clk
}

func analyzeTool() Tool {
	return Tool{
		Name:        "analyze",
		Description: "analyzes the input",
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			return map[string]any{"ok": true}, nil
		},
	}
}

func TestReasonWithoutLLMApprovesOnAllActionsSucceeding(t *testing.T) {
	agent, _ := testAgent(t, nil, analyzeTool())
	thought := agent.Reason(context.Background(), map[string]any{"amount": 42.0}, nil)

	require.Empty(t, thought.Error)
	assert.Equal(t, Approve, thought.Result.Recommendation)
	assert.Len(t, thought.Actions, 1)
	assert.True(t, thought.Actions[0].Result.Success)
	assert.NotEmpty(t, thought.ChainOfThought)
}

func TestReasonNeverPanicsOnContextAssemblyFailure(t *testing.T) {
	agent, _ := testAgent(t, nil, analyzeTool())
	agent.cfg.DomainContext = func(ctx context.Context, input map[string]any) (string, error) {
		return "", assert.AnError
	}
	// domainContext is best-effort: an error there must not fail the turn.
	thought := agent.Reason(context.Background(), map[string]any{}, nil)
	require.Empty(t, thought.Error)
}

func TestThoughtLogIsBoundedAtMaxThoughtLog(t *testing.T) {
	agent, _ := testAgent(t, nil, analyzeTool())
	for i := 0; i < MaxThoughtLog+10; i++ {
		agent.Reason(context.Background(), map[string]any{"i": i}, nil)
	}
	assert.Len(t, agent.ThoughtLog(), MaxThoughtLog)
}

func TestFailNeverPanicsAndRecordsError(t *testing.T) {
	agent, _ := testAgent(t, nil, analyzeTool())
	chain := NewChain(agent.cfg.AgentID)
	thought := Thought{TraceID: "t1", Context: map[string]any{}}

	ctx := context.Background()
	_, span := obs.Tracer("reasoning-test").Start(ctx, "test-span")
	defer span.End()

	out := agent.fail(chain, thought, span, "think", assert.AnError)
	assert.NotEmpty(t, out.Error)
	assert.Equal(t, Review, out.Result.Recommendation)
	assert.True(t, chain.Finished())
}

func TestReasonWithLLMUsesThinkAndObserveJSON(t *testing.T) {
	fp := &llm.FakeProvider{Responses: []llm.Response{
		{Content: `{"understanding":"looks risky","key_risks":["velocity"],"confidence":0.8,"suggested_approach":"check history"}`},
		{Content: `{"goal":"assess risk","reasoning":"check tools","actions":[{"tool":"analyze","params":{},"rationale":"gather evidence"}]}`},
		{Content: `{"summary":"all clear","risk_score":12,"recommendation":"APPROVE","confidence":0.9,"reasoning":"no findings","key_findings":[]}`},
		{Content: `{"shouldRevise":false,"concerns":[],"contraArgument":"","reflectionConfidence":0.1}`},
	}}
	clk := clock.NewFake(0)
	tracker := llm.NewTracker(clk, eventbus.New())
	client := llm.NewClient(fp, llm.NewCache(clk, 0, 0), tracker, clk)

	agent, _ := testAgent(t, client, analyzeTool())
	thought := agent.Reason(context.Background(), map[string]any{"amount": 10.0}, nil)

	require.Empty(t, thought.Error)
	assert.Equal(t, Approve, thought.Result.Recommendation)
	assert.Equal(t, "all clear", thought.Result.Summary)

	// Spend lands on this agent's cost record, not the SYSTEM bucket:
	// think, plan, observe, reflect.
	assert.Equal(t, 4, tracker.RecordFor("agent-1").Calls)
	assert.Equal(t, 0, tracker.RecordFor(llm.SystemAgent).Calls)
}

func TestPatternPrecheckRecordsEvidenceAboveThreshold(t *testing.T) {
	agent, _ := testAgent(t, nil, analyzeTool())
	ctx := context.Background()
	_, _, err := agent.cfg.Patterns.Learn(ctx, pattern.LearnInput{
		Type:       "a fraud analyst",
		Features:   map[string]any{"amount": 10.0},
		Outcome:    pattern.FraudConfirmed,
		Confidence: 0.9,
		Source:     "seed",
	})
	require.NoError(t, err)

	chain := NewChain("agent-1")
	result := agent.patternPrecheck(chain, map[string]any{"amount": 10.0})
	assert.NotEmpty(t, result.Matches)

	found := false
	for _, step := range chain.Steps() {
		if step.Kind == Evidence {
			found = true
		}
	}
	assert.True(t, found)
}
