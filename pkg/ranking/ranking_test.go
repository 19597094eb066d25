package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskforge/agentcore/pkg/retrieval"
)

func TestRankOrdersByQuerySimilarity(t *testing.T) {
	r := New()
	scored := r.Rank("nigeria velocity spike", []Candidate{
		{ID: "a", Content: "The seller shipped from nigeria and triggered a velocity spike."},
		{ID: "b", Content: "Completely unrelated text about gardening."},
	})
	require.Len(t, scored, 2)
	assert.Equal(t, "a", scored[0].ID)
	assert.Greater(t, scored[0].Score, scored[1].Score)
}

func TestRankIncludesZeroScoreCandidates(t *testing.T) {
	r := New()
	scored := r.Rank("nigeria", []Candidate{
		{ID: "a", Content: "totally off topic"},
	})
	require.Len(t, scored, 1)
	assert.Equal(t, 0.0, scored[0].Score)
}

func TestAllocateSkipsOversizedCandidatesForSmallerOnes(t *testing.T) {
	scored := []Scored{
		{Candidate: Candidate{ID: "big", TokenCount: 100}, Score: 0.9},
		{Candidate: Candidate{ID: "small", TokenCount: 10}, Score: 0.5},
	}
	alloc := Allocate(scored, 50, 0)
	require.Len(t, alloc.Items, 1)
	assert.Equal(t, "small", alloc.Items[0].ID)
	require.Len(t, alloc.Dropped, 1)
	assert.Equal(t, "big", alloc.Dropped[0].ID)
}

func TestAllocateRespectsZeroBudget(t *testing.T) {
	scored := []Scored{{Candidate: Candidate{ID: "a", TokenCount: 1}, Score: 1}}
	alloc := Allocate(scored, 0, 0)
	assert.Empty(t, alloc.Items)
	assert.Len(t, alloc.Dropped, 1)
}

func TestAllocateEmptyInputLeavesBudgetUntouched(t *testing.T) {
	alloc := Allocate(nil, 250, 0)
	assert.Empty(t, alloc.Items)
	assert.Equal(t, 0, alloc.TotalTokens)
	assert.Equal(t, 250, alloc.RemainingBudget)
}

func TestAllocateAccountsForBudgetSpend(t *testing.T) {
	scored := []Scored{
		{Candidate: Candidate{ID: "a", TokenCount: 100}, Score: 0.9},
		{Candidate: Candidate{ID: "b", TokenCount: 100}, Score: 0.5},
		{Candidate: Candidate{ID: "c", TokenCount: 100}, Score: 0.2},
	}
	alloc := Allocate(scored, 250, 0)
	require.Len(t, alloc.Items, 2)
	assert.Equal(t, "a", alloc.Items[0].ID)
	assert.Equal(t, "b", alloc.Items[1].ID)
	require.Len(t, alloc.Dropped, 1)
	assert.Equal(t, "c", alloc.Dropped[0].ID)
	assert.Equal(t, 200, alloc.TotalTokens)
	assert.Equal(t, 50, alloc.RemainingBudget)
}

func TestAllocateReservesGuaranteedTokens(t *testing.T) {
	scored := []Scored{
		{Candidate: Candidate{ID: "a", TokenCount: 20}, Score: 0.9},
		{Candidate: Candidate{ID: "b", TokenCount: 20}, Score: 0.8},
	}
	alloc := Allocate(scored, 50, 25)
	require.Len(t, alloc.Items, 1)
	assert.Equal(t, "a", alloc.Items[0].ID)
	assert.Equal(t, 25, alloc.GuaranteedTokens)
}

func TestRankedOrderScoresWellAgainstKnownRelevantIDs(t *testing.T) {
	r := New()
	scored := r.Rank("nigeria velocity spike new account", []Candidate{
		{ID: "velocity-rule", Content: "Velocity spike from a new account shipping out of nigeria."},
		{ID: "chargeback-history", Content: "Seller has three prior chargebacks on unrelated orders."},
		{ID: "gardening", Content: "Completely unrelated text about gardening."},
	})

	ranked := make([]string, len(scored))
	for i, s := range scored {
		ranked[i] = s.ID
	}

	result := retrieval.Evaluate(ranked, map[string]bool{"velocity-rule": true}, 2)
	assert.Equal(t, 1.0, result.HitRate)
	assert.Equal(t, 1.0, result.MRR)
}
