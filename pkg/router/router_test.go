package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteReturnsOnlyRegisteredCandidate(t *testing.T) {
	r := New()
	r.Register("kyc-check", "agent-1")

	got, err := r.Route("kyc-check")
	require.NoError(t, err)
	assert.Equal(t, "agent-1", got)
}

func TestRouteErrorsWithNoCandidates(t *testing.T) {
	r := New()
	_, err := r.Route("kyc-check")
	assert.Error(t, err)
}

func TestRoutePrefersHigherSuccessRate(t *testing.T) {
	r := New()
	r.Register("kyc-check", "agent-1")
	r.Register("kyc-check", "agent-2")

	for i := 0; i < 10; i++ {
		r.TaskCompleted("kyc-check", "agent-1", true)
	}
	for i := 0; i < 10; i++ {
		r.TaskCompleted("kyc-check", "agent-2", i < 2) // 20% success
	}

	got, err := r.Route("kyc-check")
	require.NoError(t, err)
	assert.Equal(t, "agent-1", got)
}

func TestRoutePrefersLowerLoadWhenSuccessRatesTie(t *testing.T) {
	r := New()
	r.Register("kyc-check", "agent-1")
	r.Register("kyc-check", "agent-2")

	r.TaskStarted("kyc-check", "agent-1")
	r.TaskStarted("kyc-check", "agent-1")
	r.TaskStarted("kyc-check", "agent-2")

	got, err := r.Route("kyc-check")
	require.NoError(t, err)
	assert.Equal(t, "agent-2", got)
}

func TestRouteSucceedsAfterTaskCompleted(t *testing.T) {
	r := New()
	r.Register("kyc-check", "agent-1")
	r.TaskStarted("kyc-check", "agent-1")
	r.TaskCompleted("kyc-check", "agent-1", true)

	r.Register("kyc-check", "agent-2")
	got, err := r.Route("kyc-check")
	require.NoError(t, err)
	// Both at zero load, agent-1 now has a perfect completed history vs
	// agent-2's no-history-yet default of 1.0 — scores tie, either is a
	// valid top pick, so just assert routing succeeds.
	assert.NotEmpty(t, got)
}
