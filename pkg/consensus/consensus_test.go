package consensus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskforge/agentcore/pkg/clock"
	"github.com/riskforge/agentcore/pkg/kvstore"
	"github.com/riskforge/agentcore/pkg/memory"
)

func TestMajorityConsensusWhenStrictlyOverHalf(t *testing.T) {
	s := NewSession("s1", Majority, []string{"a", "b", "c"})
	require.NoError(t, s.Vote(Vote{AgentID: "a", Decision: "APPROVE"}))
	require.NoError(t, s.Vote(Vote{AgentID: "b", Decision: "APPROVE"}))
	require.NoError(t, s.Vote(Vote{AgentID: "c", Decision: "BLOCK"}))

	res, err := s.Evaluate()
	require.NoError(t, err)
	assert.True(t, res.Consensus)
	assert.Equal(t, "APPROVE", res.Decision)
}

func TestMajorityNoConsensusOnSplitVote(t *testing.T) {
	s := NewSession("s1", Majority, []string{"a", "b"})
	s.Vote(Vote{AgentID: "a", Decision: "APPROVE"})
	s.Vote(Vote{AgentID: "b", Decision: "BLOCK"})

	res, err := s.Evaluate()
	require.NoError(t, err)
	assert.False(t, res.Consensus)
}

func TestUnanimousRequiresAllDecisionsEqual(t *testing.T) {
	s := NewSession("s1", Unanimous, []string{"a", "b"})
	s.Vote(Vote{AgentID: "a", Decision: "BLOCK"})
	s.Vote(Vote{AgentID: "b", Decision: "BLOCK"})

	res, err := s.Evaluate()
	require.NoError(t, err)
	assert.True(t, res.Consensus)
	assert.Equal(t, "BLOCK", res.Decision)
}

func TestWeightedConsensusRequiresShareOverThreshold(t *testing.T) {
	s := NewSession("s1", Weighted, []string{"a", "b", "c"})
	s.Vote(Vote{AgentID: "a", Decision: "BLOCK", Confidence: 0.9})
	s.Vote(Vote{AgentID: "b", Decision: "BLOCK", Confidence: 0.8})
	s.Vote(Vote{AgentID: "c", Decision: "APPROVE", Confidence: 0.3})

	res, err := s.Evaluate()
	require.NoError(t, err)
	assert.True(t, res.Consensus)
	assert.Equal(t, "BLOCK", res.Decision)
}

func TestWeightedNoConsensusBelowThreshold(t *testing.T) {
	s := NewSession("s1", Weighted, []string{"a", "b"})
	s.Vote(Vote{AgentID: "a", Decision: "BLOCK", Confidence: 0.55})
	s.Vote(Vote{AgentID: "b", Decision: "APPROVE", Confidence: 0.45})

	res, err := s.Evaluate()
	require.NoError(t, err)
	assert.False(t, res.Consensus)
}

func TestVoteRejectsSecondVoteFromSameAgent(t *testing.T) {
	s := NewSession("s1", Majority, []string{"a"})
	require.NoError(t, s.Vote(Vote{AgentID: "a", Decision: "APPROVE"}))
	assert.ErrorIs(t, s.Vote(Vote{AgentID: "a", Decision: "BLOCK"}), ErrAlreadyVoted)
}

func TestEvaluateIsOneShot(t *testing.T) {
	s := NewSession("s1", Majority, []string{"a"})
	s.Vote(Vote{AgentID: "a", Decision: "APPROVE"})
	_, err := s.Evaluate()
	require.NoError(t, err)

	_, err = s.Evaluate()
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestRecordDisagreementWritesCorrectionPerVoter(t *testing.T) {
	store := memory.NewStore(kvstore.NewInMemory(), clock.NewFake(0))
	ctx := context.Background()
	votes := []Vote{
		{AgentID: "agent-1", Decision: "APPROVE", Confidence: 0.6},
		{AgentID: "agent-2", Decision: "BLOCK", Confidence: 0.7},
	}

	require.NoError(t, RecordDisagreement(ctx, store, "s1", votes))

	entries, err := store.GetByType(ctx, "agent-1", memory.TypeCorrection)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 0.7, entries[0].Importance)
}
