package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskforge/agentcore/pkg/clock"
)

func TestAllowPermitsCallsWhileClosed(t *testing.T) {
	b := New(clock.NewFake(0))
	require.NoError(t, b.Allow("agent-1", "geo-lookup"))
	assert.Equal(t, Closed, b.StateOf("agent-1", "geo-lookup"))
}

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	b := New(clock.NewFake(0))
	for i := 0; i < FailureThreshold-1; i++ {
		b.RecordFailure("agent-1", "geo-lookup")
		assert.Equal(t, Closed, b.StateOf("agent-1", "geo-lookup"))
	}
	b.RecordFailure("agent-1", "geo-lookup")
	assert.Equal(t, Open, b.StateOf("agent-1", "geo-lookup"))

	err := b.Allow("agent-1", "geo-lookup")
	require.Error(t, err)
	var openErr *ErrOpen
	require.ErrorAs(t, err, &openErr)
}

func TestStaysOpenUntilCooldownElapses(t *testing.T) {
	fake := clock.NewFake(0)
	b := New(fake)
	for i := 0; i < FailureThreshold; i++ {
		b.RecordFailure("agent-1", "geo-lookup")
	}

	fake.Advance(Cooldown - time.Second)
	require.Error(t, b.Allow("agent-1", "geo-lookup"))

	fake.Advance(2 * time.Second)
	require.NoError(t, b.Allow("agent-1", "geo-lookup"))
	assert.Equal(t, HalfOpen, b.StateOf("agent-1", "geo-lookup"))
}

func TestHalfOpenAllowsExactlyOneProbe(t *testing.T) {
	fake := clock.NewFake(0)
	b := New(fake)
	for i := 0; i < FailureThreshold; i++ {
		b.RecordFailure("agent-1", "geo-lookup")
	}
	fake.Advance(Cooldown + time.Second)

	require.NoError(t, b.Allow("agent-1", "geo-lookup"))
	err := b.Allow("agent-1", "geo-lookup")
	require.Error(t, err)
}

func TestProbeSuccessClosesBreaker(t *testing.T) {
	fake := clock.NewFake(0)
	b := New(fake)
	for i := 0; i < FailureThreshold; i++ {
		b.RecordFailure("agent-1", "geo-lookup")
	}
	fake.Advance(Cooldown + time.Second)
	require.NoError(t, b.Allow("agent-1", "geo-lookup"))

	b.RecordSuccess("agent-1", "geo-lookup")
	assert.Equal(t, Closed, b.StateOf("agent-1", "geo-lookup"))

	require.NoError(t, b.Allow("agent-1", "geo-lookup"))
}

func TestProbeFailureReopensBreaker(t *testing.T) {
	fake := clock.NewFake(0)
	b := New(fake)
	for i := 0; i < FailureThreshold; i++ {
		b.RecordFailure("agent-1", "geo-lookup")
	}
	fake.Advance(Cooldown + time.Second)
	require.NoError(t, b.Allow("agent-1", "geo-lookup"))

	b.RecordFailure("agent-1", "geo-lookup")
	assert.Equal(t, Open, b.StateOf("agent-1", "geo-lookup"))

	require.Error(t, b.Allow("agent-1", "geo-lookup"))
}

func TestBreakersAreIndependentPerAgentToolPair(t *testing.T) {
	b := New(clock.NewFake(0))
	for i := 0; i < FailureThreshold; i++ {
		b.RecordFailure("agent-1", "geo-lookup")
	}
	assert.Equal(t, Open, b.StateOf("agent-1", "geo-lookup"))
	assert.Equal(t, Closed, b.StateOf("agent-1", "sanctions-check"))
	assert.Equal(t, Closed, b.StateOf("agent-2", "geo-lookup"))
}

func TestSuccessResetsConsecutiveFailureCount(t *testing.T) {
	b := New(clock.NewFake(0))
	b.RecordFailure("agent-1", "geo-lookup")
	b.RecordFailure("agent-1", "geo-lookup")
	b.RecordSuccess("agent-1", "geo-lookup")
	for i := 0; i < FailureThreshold-1; i++ {
		b.RecordFailure("agent-1", "geo-lookup")
	}
	assert.Equal(t, Closed, b.StateOf("agent-1", "geo-lookup"))
}
