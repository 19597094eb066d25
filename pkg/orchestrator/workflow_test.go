package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteWorkflowRunsStepsSequentially(t *testing.T) {
	var order []string
	var mu recordOrder
	c := NewCoordinator(map[string]Agent{
		"kyc":       recordingAgent{name: "kyc", order: &order, mu: &mu, result: Result{Recommendation: "APPROVE"}},
		"sanctions": recordingAgent{name: "sanctions", order: &order, mu: &mu, result: Result{Recommendation: "APPROVE"}},
	})
	o := New(c)

	vars, err := o.ExecuteWorkflow(context.Background(), "onboard", []Step{
		{AgentID: "kyc", OutputKey: "kycResult"},
		{AgentID: "sanctions", OutputKey: "sanctionsResult"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"kyc", "sanctions"}, order)
	assert.Contains(t, vars, "kycResult")
	assert.Contains(t, vars, "sanctionsResult")
}

func TestExecuteWorkflowRunsParallelGroupConcurrently(t *testing.T) {
	c := NewCoordinator(map[string]Agent{
		"a1": fakeAgent{delay: 20 * time.Millisecond, result: Result{Recommendation: "APPROVE"}},
		"a2": fakeAgent{delay: 20 * time.Millisecond, result: Result{Recommendation: "APPROVE"}},
	})
	o := New(c)

	start := time.Now()
	vars, err := o.ExecuteWorkflow(context.Background(), "review", []Step{
		{AgentID: "a1", OutputKey: "r1", Parallel: true},
		{AgentID: "a2", OutputKey: "r2", Parallel: true},
	})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Contains(t, vars, "r1")
	assert.Contains(t, vars, "r2")
	assert.Less(t, elapsed, 40*time.Millisecond)
}

func TestExecuteWorkflowStopsOnRequiredStepFailure(t *testing.T) {
	c := NewCoordinator(map[string]Agent{
		"broken": fakeAgent{err: assertErr2("fail")},
		"never":  fakeAgent{result: Result{Recommendation: "APPROVE"}},
	})
	o := New(c)

	vars, err := o.ExecuteWorkflow(context.Background(), "review", []Step{
		{AgentID: "broken", OutputKey: "r1"},
		{AgentID: "never", OutputKey: "r2"},
	})
	require.Error(t, err)
	assert.NotContains(t, vars, "r2")
}

func TestExecuteWorkflowContinuesPastOptionalStepFailure(t *testing.T) {
	c := NewCoordinator(map[string]Agent{
		"broken": fakeAgent{err: assertErr2("fail")},
		"after":  fakeAgent{result: Result{Recommendation: "APPROVE"}},
	})
	o := New(c)

	vars, err := o.ExecuteWorkflow(context.Background(), "review", []Step{
		{AgentID: "broken", OutputKey: "r1", Optional: true},
		{AgentID: "after", OutputKey: "r2"},
	})
	require.NoError(t, err)
	assert.NotContains(t, vars, "r1")
	assert.Contains(t, vars, "r2")
}

func TestExecuteWorkflowInputMapperReceivesAccumulatedVars(t *testing.T) {
	var seenInput map[string]any
	c := NewCoordinator(map[string]Agent{
		"first":  fakeAgent{result: Result{Recommendation: "APPROVE"}},
		"second": capturingAgent{seen: &seenInput},
	})
	o := New(c)

	_, err := o.ExecuteWorkflow(context.Background(), "review", []Step{
		{AgentID: "first", OutputKey: "firstResult"},
		{AgentID: "second", OutputKey: "secondResult", InputMapper: func(vars map[string]any) map[string]any {
			return map[string]any{"priorResult": vars["firstResult"]}
		}},
	})
	require.NoError(t, err)
	assert.Contains(t, seenInput, "priorResult")
}

type recordOrder struct{}

type recordingAgent struct {
	name   string
	order  *[]string
	mu     *recordOrder
	result Result
}

func (r recordingAgent) Reason(ctx context.Context, task Task) (Result, error) {
	*r.order = append(*r.order, r.name)
	return r.result, nil
}

type capturingAgent struct {
	seen *map[string]any
}

func (c capturingAgent) Reason(ctx context.Context, task Task) (Result, error) {
	*c.seen = task.Input
	return Result{Recommendation: "APPROVE"}, nil
}

type assertErr2 string

func (e assertErr2) Error() string { return string(e) }
