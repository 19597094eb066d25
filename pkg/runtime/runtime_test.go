package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskforge/agentcore/pkg/clock"
	"github.com/riskforge/agentcore/pkg/eventbus"
	"github.com/riskforge/agentcore/pkg/kvstore"
	"github.com/riskforge/agentcore/pkg/llm"
	"github.com/riskforge/agentcore/pkg/messenger"
	"github.com/riskforge/agentcore/pkg/orchestrator"
)

func testConfig() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	rt, err := New(testConfig(),
		WithClock(clock.NewFake(0)),
		WithEventBus(eventbus.New()),
		WithKVStore(kvstore.NewInMemory()),
		WithLLMProvider(&llm.FakeProvider{}),
	)
	require.NoError(t, err)
	return rt
}

func TestNewWiresEveryCollaborator(t *testing.T) {
	rt := newTestRuntime(t)

	assert.NotNil(t, rt.Clock)
	assert.NotNil(t, rt.Bus)
	assert.NotNil(t, rt.KV)
	assert.NotNil(t, rt.LLM)
	assert.NotNil(t, rt.Memory)
	assert.NotNil(t, rt.Patterns)
	assert.NotNil(t, rt.Calibrator)
	assert.NotNil(t, rt.SelfCorrect)
	assert.NotNil(t, rt.Knowledge)
	assert.NotNil(t, rt.Breaker)
	assert.NotNil(t, rt.Executor)
	assert.NotNil(t, rt.Metrics)
	assert.NotNil(t, rt.Decisions)
	assert.NotNil(t, rt.Onboarding)
	assert.NotNil(t, rt.PolicyEvolution)
	assert.NotNil(t, rt.Coordinator)
	assert.NotNil(t, rt.Orchestrator)
	assert.NotNil(t, rt.Router)
	assert.NotNil(t, rt.Messenger)
}

func TestRouterRoutesToRegisteredSpecializedAgents(t *testing.T) {
	rt := newTestRuntime(t)

	onboardingID, err := rt.Router.Route(onboardingTaskType)
	require.NoError(t, err)
	assert.Equal(t, "onboarding", onboardingID)

	policyID, err := rt.Router.Route(policyEvolutionTaskType)
	require.NoError(t, err)
	assert.Equal(t, "policy-evolution", policyID)
}

func TestMessengerHelpRequestIsAnsweredByDelegatingToReasoning(t *testing.T) {
	rt := newTestRuntime(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := rt.Messenger.RequestHelp(ctx, "policy-evolution", "onboarding", map[string]any{
		"sellerId": "S-1",
	}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, messenger.HelpResponse, resp.Type)
	assert.Equal(t, "onboarding", resp.From)

	result, ok := resp.Content.(orchestrator.Result)
	require.True(t, ok, "expected response content to be an orchestrator.Result, got %T", resp.Content)
	assert.NotEmpty(t, result.Recommendation)
}

func TestFlushSnapshotsWritesCostAndMetricsTables(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()

	rt.Cost.RecordCost("onboarding", "gpt-4o-mini", llm.Usage{InputTokens: 100, OutputTokens: 50})
	rt.FlushSnapshots(ctx)

	costs, err := rt.KV.Count(ctx, kvstore.TableCosts)
	require.NoError(t, err)
	assert.Equal(t, 2, costs) // onboarding + GLOBAL

	metrics, err := rt.KV.Count(ctx, kvstore.TableMetrics)
	require.NoError(t, err)
	assert.Equal(t, 1, metrics)
}

func TestLoadHydratesPersistedStoresAndStartStopDriveScanners(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()

	require.NoError(t, rt.Load(ctx))

	runCtx, cancel := context.WithCancel(ctx)
	cfg := testConfig()
	cfg.Agents.Onboarding.Enabled = true
	cfg.Agents.PolicyEvolution.Enabled = true
	rt.cfg = cfg

	rt.Start(runCtx)
	assert.True(t, rt.Onboarding.Scanner.IsRunning())
	assert.True(t, rt.PolicyEvolution.Scanner.IsRunning())

	rt.Stop()
	cancel()
	assert.False(t, rt.Onboarding.Scanner.IsRunning())
	assert.False(t, rt.PolicyEvolution.Scanner.IsRunning())

	require.NoError(t, rt.Close(ctx))
}
