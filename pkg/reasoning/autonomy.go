// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package reasoning

// Disposition is what happens to a turn's recommendation downstream:
// applied without a human, queued for one, or escalated.
type Disposition string

const (
	AutoApplied  Disposition = "auto-applied"
	ManualReview Disposition = "manual-review"
	Escalated    Disposition = "escalated"
)

// Thresholds are the autonomy bounds on risk score (0..100) deciding
// whether a recommendation auto-applies or needs a human. Zero values
// disable a bound: an agent with no thresholds set routes everything to
// manual review.
type Thresholds struct {
	// AutoApproveMaxRisk is the highest risk score an APPROVE may carry
	// and still apply without review.
	AutoApproveMaxRisk float64
	// AutoRejectMinRisk is the lowest risk score a REJECT/BLOCK needs to
	// apply without review.
	AutoRejectMinRisk float64
	// EscalateMinRisk is the risk score at which any recommendation is
	// escalated regardless of what the agent decided.
	EscalateMinRisk float64
}

// Disposition classifies a recommendation against the thresholds.
// Escalation wins over auto-apply: a risk score past EscalateMinRisk is
// never actioned autonomously, whatever the recommendation was.
func (t Thresholds) Disposition(rec Recommendation, riskScore float64) Disposition {
	if t.EscalateMinRisk > 0 && riskScore >= t.EscalateMinRisk {
		return Escalated
	}
	switch rec {
	case Approve:
		if t.AutoApproveMaxRisk > 0 && riskScore <= t.AutoApproveMaxRisk {
			return AutoApplied
		}
	case Reject, Block:
		if t.AutoRejectMinRisk > 0 && riskScore >= t.AutoRejectMinRisk {
			return AutoApplied
		}
	}
	return ManualReview
}
