package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskforge/agentcore/pkg/clock"
	"github.com/riskforge/agentcore/pkg/eventbus"
	"github.com/riskforge/agentcore/pkg/kvstore"
)

// budget_warning fires exactly once, budget_exceeded fires exactly
// once, until the budget is reset.
func TestBudgetAlertsFireOncePerCrossing(t *testing.T) {
	clk := clock.NewFake(0)
	bus := eventbus.New()
	var events []string
	bus.Subscribe("agent:cost:*", func(topic string, _ any) { events = append(events, topic) })

	tracker := NewTracker(clk, bus)
	tracker.SetPricing("M", Pricing{InputPerMTok: 1_000_000, OutputPerMTok: 0})
	tracker.SetBudget("agent-1", Budget{MaxCostUsd: 10, AlertThreshold: 0.5})

	tracker.RecordCost("agent-1", "M", Usage{InputTokens: 4}) // $4, below warn
	assert.Empty(t, events)

	tracker.RecordCost("agent-1", "M", Usage{InputTokens: 2}) // $6 >= $5 warn
	assert.Equal(t, []string{"agent:cost:budget_warning"}, events)

	tracker.RecordCost("agent-1", "M", Usage{InputTokens: 1}) // still under warn re-fire
	assert.Equal(t, []string{"agent:cost:budget_warning"}, events)

	tracker.RecordCost("agent-1", "M", Usage{InputTokens: 4}) // $11 >= $10 exceeded
	assert.Equal(t, []string{"agent:cost:budget_warning", "agent:cost:budget_exceeded"}, events)

	// reset budget clears fired alerts
	tracker.SetBudget("agent-1", Budget{MaxCostUsd: 10, AlertThreshold: 0.5})
	events = nil
	tracker.RecordCost("agent-1", "M", Usage{InputTokens: 1})
	assert.Equal(t, []string{"agent:cost:budget_warning", "agent:cost:budget_exceeded"}, events)
}

func TestRecordCostAccumulatesPerAgentAndGlobally(t *testing.T) {
	clk := clock.NewFake(0)
	tracker := NewTracker(clk, nil)
	tracker.SetPricing("M", Pricing{InputPerMTok: 1_000_000, OutputPerMTok: 2_000_000})

	tracker.RecordCost("a", "M", Usage{InputTokens: 1, OutputTokens: 1})
	tracker.RecordCost("b", "M", Usage{InputTokens: 1, OutputTokens: 1})

	assert.Equal(t, 3.0, tracker.RecordFor("a").TotalCostUsd)
	assert.Equal(t, 3.0, tracker.RecordFor("b").TotalCostUsd)
	assert.Equal(t, 6.0, tracker.Global().TotalCostUsd)
	assert.Equal(t, 2, tracker.Global().Calls)
}

func TestFlushWritesPerAgentAndGlobalCostRecords(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewInMemory()
	tracker := NewTracker(clock.NewFake(0), nil)
	tracker.SetPricing("M", Pricing{InputPerMTok: 1_000_000})
	tracker.RecordCost("agent-1", "M", Usage{InputTokens: 2})

	require.NoError(t, tracker.Flush(ctx, kv))

	n, err := kv.Count(ctx, kvstore.TableCosts)
	require.NoError(t, err)
	assert.Equal(t, 2, n) // agent-1 + GLOBAL

	// A second flush updates in place rather than accumulating rows.
	tracker.RecordCost("agent-1", "M", Usage{InputTokens: 1})
	require.NoError(t, tracker.Flush(ctx, kv))
	n, err = kv.Count(ctx, kvstore.TableCosts)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRecordCostDefaultsToSystemAgent(t *testing.T) {
	tracker := NewTracker(clock.NewFake(0), nil)
	tracker.RecordCost("", "M", Usage{InputTokens: 1})
	rec := tracker.RecordFor(SystemAgent)
	assert.Equal(t, 1, rec.Calls)
}
