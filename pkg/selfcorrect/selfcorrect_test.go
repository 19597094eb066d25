package selfcorrect

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/riskforge/agentcore/pkg/clock"
)

func TestLogAndRecordOutcomeTracksAccuracy(t *testing.T) {
	tr := New(clock.NewFake(0))
	tr.LogPrediction("p1", "agent-1", 0.8)
	tr.LogPrediction("p2", "agent-1", 0.6)
	tr.RecordOutcome("p1", "agent-1", true)
	tr.RecordOutcome("p2", "agent-1", false)

	assert.Equal(t, 0.5, tr.Accuracy("agent-1"))
}

func TestRecordOutcomeOnUnknownIDIsNoop(t *testing.T) {
	tr := New(clock.NewFake(0))
	tr.RecordOutcome("missing", "agent-1", true)
	assert.Equal(t, 0.0, tr.Accuracy("agent-1"))
}

func TestPendingCountReflectsUnresolvedPredictions(t *testing.T) {
	tr := New(clock.NewFake(0))
	tr.LogPrediction("p1", "agent-1", 0.8)
	tr.LogPrediction("p2", "agent-1", 0.8)
	tr.RecordOutcome("p1", "agent-1", true)

	assert.Equal(t, 1, tr.PendingCount("agent-1"))
}

func TestDetectDropRequiresEnoughHistory(t *testing.T) {
	tr := New(clock.NewFake(0))
	for i := 0; i < RecentWindow; i++ {
		id := fmt.Sprintf("p%d", i)
		tr.LogPrediction(id, "agent-1", 0.8)
		tr.RecordOutcome(id, "agent-1", false)
	}
	_, ok := tr.DetectDrop("agent-1")
	assert.False(t, ok, "not enough baseline history yet")
}

func TestDetectDropFlagsRegressionBelowBaseline(t *testing.T) {
	tr := New(clock.NewFake(0))
	// Strong baseline: 30 correct predictions.
	for i := 0; i < 30; i++ {
		id := fmt.Sprintf("base-%d", i)
		tr.LogPrediction(id, "agent-1", 0.9)
		tr.RecordOutcome(id, "agent-1", true)
	}
	// Recent window: mostly wrong.
	for i := 0; i < RecentWindow; i++ {
		id := fmt.Sprintf("recent-%d", i)
		tr.LogPrediction(id, "agent-1", 0.9)
		tr.RecordOutcome(id, "agent-1", i < 2) // 2/20 correct
	}

	drop, ok := tr.DetectDrop("agent-1")
	assert.True(t, ok)
	assert.Equal(t, "agent-1", drop.AgentID)
	assert.InDelta(t, 1.0, drop.BaselineAccuracy, 1e-9)
	assert.InDelta(t, 0.1, drop.RecentAccuracy, 1e-9)
	assert.InDelta(t, 0.9, drop.Delta, 1e-9)
}

func TestDetectDropDoesNotFlagStableAccuracy(t *testing.T) {
	tr := New(clock.NewFake(0))
	for i := 0; i < 30+RecentWindow; i++ {
		id := fmt.Sprintf("p%d", i)
		tr.LogPrediction(id, "agent-1", 0.9)
		tr.RecordOutcome(id, "agent-1", i%5 != 0) // steady 80% accuracy throughout
	}
	_, ok := tr.DetectDrop("agent-1")
	assert.False(t, ok)
}

func TestAgentsAreTrackedIndependently(t *testing.T) {
	tr := New(clock.NewFake(0))
	tr.LogPrediction("p1", "agent-1", 0.9)
	tr.RecordOutcome("p1", "agent-1", true)

	assert.Equal(t, 0.0, tr.Accuracy("agent-2"))
}
