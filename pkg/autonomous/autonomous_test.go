package autonomous

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskforge/agentcore/pkg/circuit"
	"github.com/riskforge/agentcore/pkg/clock"
	"github.com/riskforge/agentcore/pkg/eventbus"
	"github.com/riskforge/agentcore/pkg/kvstore"
	"github.com/riskforge/agentcore/pkg/memory"
	"github.com/riskforge/agentcore/pkg/pattern"
	"github.com/riskforge/agentcore/pkg/reasoning"
	"github.com/riskforge/agentcore/pkg/toolexec"
)

func testBase(t *testing.T, clk clock.Clock, bus eventbus.Bus) *reasoning.BaseAgent {
	t.Helper()
	kv := kvstore.NewInMemory()
	return reasoning.NewBaseAgent(reasoning.Config{
		AgentID:   "scanner-1",
		Role:      "a seller risk scanner",
		SessionID: "autonomous",
		Memory:    memory.NewStore(kv, clk),
		Patterns:  pattern.NewStore(kv, clk, bus),
		Executor:  toolexec.New(circuit.New(clk), nil, clk),
		Bus:       bus,
		Clock:     clk,
	})
}

func TestStartIsIdempotentAndEmitsStartedEvent(t *testing.T) {
	clk := clock.NewFake(0)
	bus := eventbus.New()
	started := 0
	bus.Subscribe("agent:autonomous:started", func(string, any) { started++ })

	a := New(Config{
		AgentID:          "scanner-1",
		Base:             testBase(t, clk, bus),
		Bus:              bus,
		Clock:            clk,
		SubscribedTopics: []string{"case:opened"},
		BuildScanInput:   func(events []Event) (map[string]any, error) { return map[string]any{"events": len(events)}, nil },
	})

	a.Start(context.Background())
	a.Start(context.Background())

	assert.Equal(t, 1, started)
	assert.True(t, a.IsRunning())
}

func TestStopUnsubscribesAndClearsRunning(t *testing.T) {
	clk := clock.NewFake(0)
	bus := eventbus.New()
	a := New(Config{
		AgentID:          "scanner-1",
		Base:             testBase(t, clk, bus),
		Bus:              bus,
		Clock:            clk,
		SubscribedTopics: []string{"case:opened"},
		BuildScanInput:   func(events []Event) (map[string]any, error) { return map[string]any{}, nil },
	})
	a.Start(context.Background())
	a.Stop()

	assert.False(t, a.IsRunning())
	bus.Publish("case:opened", map[string]any{"priority": "low"})
	assert.Equal(t, 0, a.EventBufferLen())
}

func TestShouldRunNowOnFirstEventWithEmptyHistory(t *testing.T) {
	clk := clock.NewFake(0)
	bus := eventbus.New()
	a := New(Config{
		AgentID:        "scanner-1",
		Base:           testBase(t, clk, bus),
		Bus:            bus,
		Clock:          clk,
		BuildScanInput: func(events []Event) (map[string]any, error) { return map[string]any{}, nil },
	})

	a.handleEvent(context.Background(), "case:opened", map[string]any{"priority": "low"})
	require.Len(t, a.RunHistory(), 1)
	assert.Equal(t, "success", a.RunHistory()[0].Status)
}

func TestShouldRunNowAcceleratesOnHighPriorityEvents(t *testing.T) {
	// A nonzero start time: lastRunAt == 0 means "never run".
	clk := clock.NewFake(1_000)
	bus := eventbus.New()
	a := New(Config{
		AgentID:                    "scanner-1",
		Base:                       testBase(t, clk, bus),
		Bus:                        bus,
		Clock:                      clk,
		ScanIntervalMs:             300_000,
		EventAccelerationThreshold: 3,
		BuildScanInput:             func(events []Event) (map[string]any, error) { return map[string]any{"n": len(events)}, nil },
	})

	// Buffer events without crossing the acceleration threshold or the
	// interval: no cycle should run yet.
	a.mu.Lock()
	a.lastRunAt = clk.Now()
	a.mu.Unlock()
	a.handleEvent(context.Background(), "alert:raised", map[string]any{"priority": "critical"})
	a.handleEvent(context.Background(), "alert:raised", map[string]any{"priority": "HIGH"})
	assert.Empty(t, a.RunHistory())

	a.handleEvent(context.Background(), "alert:raised", map[string]any{"priority": "Urgent"})
	require.Len(t, a.RunHistory(), 1)
	assert.Equal(t, 3, a.RunHistory()[0].EventsProcessed)
}

func TestRunOneCycleFailsCleanlyWithoutBuildScanInput(t *testing.T) {
	clk := clock.NewFake(0)
	bus := eventbus.New()
	a := New(Config{AgentID: "scanner-1", Base: testBase(t, clk, bus), Bus: bus, Clock: clk})

	a.mu.Lock()
	a.eventBuffer = []Event{{Topic: "x"}}
	a.mu.Unlock()

	entry := a.runOneCycle(context.Background())
	assert.Equal(t, "failed", entry.Status)
	assert.Contains(t, entry.Error, "BuildScanInput")
}

func TestRunHistoryIsBoundedAtMaxRunHistory(t *testing.T) {
	clk := clock.NewFake(0)
	bus := eventbus.New()
	a := New(Config{
		AgentID:        "scanner-1",
		Base:           testBase(t, clk, bus),
		Bus:            bus,
		Clock:          clk,
		BuildScanInput: func(events []Event) (map[string]any, error) { return map[string]any{}, nil },
	})
	for i := 0; i < MaxRunHistory+5; i++ {
		a.mu.Lock()
		a.eventBuffer = []Event{{Topic: "x"}}
		a.mu.Unlock()
		a.runOneCycle(context.Background())
	}
	assert.Len(t, a.RunHistory(), MaxRunHistory)
}

func TestEventBufferDropsOldestOverCap(t *testing.T) {
	clk := clock.NewFake(0)
	bus := eventbus.New()
	a := New(Config{AgentID: "scanner-1", Base: testBase(t, clk, bus), Bus: bus, Clock: clk})
	a.mu.Lock()
	for i := 0; i < MaxEventBuffer+10; i++ {
		a.eventBuffer = append(a.eventBuffer, Event{Topic: "x"})
	}
	if len(a.eventBuffer) > MaxEventBuffer {
		a.eventBuffer = a.eventBuffer[len(a.eventBuffer)-MaxEventBuffer:]
	}
	a.mu.Unlock()
	assert.Equal(t, MaxEventBuffer, a.EventBufferLen())
}
