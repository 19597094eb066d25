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

import (
	"fmt"
	"sync/atomic"
)

// StepKind is one chain-of-thought step's tag.
type StepKind string

const (
	ObservationStep StepKind = "observation"
	Hypothesis      StepKind = "hypothesis"
	Evidence        StepKind = "evidence"
	Analysis        StepKind = "analysis"
	Inference       StepKind = "inference"
	Conclusion      StepKind = "conclusion"
)

// Confidence is a chain step's qualitative confidence level.
type Confidence string

const (
	Speculative Confidence = "Speculative"
	Possible    Confidence = "Possible"
	Likely      Confidence = "Likely"
	Certain     Confidence = "Certain"
)

// Step is one immutable entry in a Chain.
type Step struct {
	Kind       StepKind
	Text       string
	Confidence Confidence
}

var chainSeq uint64

// Chain is an ordered, append-only sequence of reasoning steps that
// terminates the moment a Conclusion step is appended.
type Chain struct {
	ID       string
	steps    []Step
	finished bool
}

// NewChain allocates a Chain with a process-unique id.
func NewChain(agentID string) *Chain {
	n := atomic.AddUint64(&chainSeq, 1)
	return &Chain{ID: fmt.Sprintf("CHAIN-%s-%d", agentID, n)}
}

// Append adds step to the chain. It is a no-op once a conclusion has been
// recorded: the chain is closed.
func (c *Chain) Append(kind StepKind, text string, confidence Confidence) {
	if c.finished {
		return
	}
	c.steps = append(c.steps, Step{Kind: kind, Text: text, Confidence: confidence})
	if kind == Conclusion {
		c.finished = true
	}
}

// Steps returns the chain's recorded steps in order.
func (c *Chain) Steps() []Step {
	out := make([]Step, len(c.steps))
	copy(out, c.steps)
	return out
}

// Finished reports whether a conclusion has already terminated the chain.
func (c *Chain) Finished() bool { return c.finished }
