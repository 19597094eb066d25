package reasoning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispositionEscalationWinsOverAutoApply(t *testing.T) {
	th := Thresholds{AutoRejectMinRisk: 70, EscalateMinRisk: 90}
	assert.Equal(t, Escalated, th.Disposition(Block, 95))
	assert.Equal(t, AutoApplied, th.Disposition(Block, 80))
}

func TestDispositionAutoApproveBelowMaxRisk(t *testing.T) {
	th := Thresholds{AutoApproveMaxRisk: 20}
	assert.Equal(t, AutoApplied, th.Disposition(Approve, 10))
	assert.Equal(t, ManualReview, th.Disposition(Approve, 30))
}

func TestDispositionZeroThresholdsRouteEverythingToReview(t *testing.T) {
	var th Thresholds
	assert.Equal(t, ManualReview, th.Disposition(Approve, 0))
	assert.Equal(t, ManualReview, th.Disposition(Block, 100))
}

func TestDispositionReviewAndMonitorNeverAutoApply(t *testing.T) {
	th := Thresholds{AutoApproveMaxRisk: 100, AutoRejectMinRisk: 0}
	assert.Equal(t, ManualReview, th.Disposition(Review, 50))
	assert.Equal(t, ManualReview, th.Disposition(Monitor, 50))
}

func TestReasonRecordsDispositionInTurnContext(t *testing.T) {
	agent, _ := testAgent(t, nil, analyzeTool())
	agent.cfg.Autonomy = Thresholds{AutoApproveMaxRisk: 20}

	thought := agent.Reason(context.Background(), map[string]any{"amount": 5.0}, nil)
	// The non-LLM fallback observation approves with risk score 10, under
	// the auto-approve bound.
	assert.Equal(t, string(AutoApplied), thought.Context["disposition"])
}
