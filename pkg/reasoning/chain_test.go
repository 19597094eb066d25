package reasoning

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChainAppendStopsAfterConclusion(t *testing.T) {
	c := NewChain("agent-1")
	c.Append(Hypothesis, "maybe risky", Possible)
	c.Append(Conclusion, "approved", Certain)
	c.Append(Evidence, "should not be recorded", Certain)

	steps := c.Steps()
	assert.Len(t, steps, 2)
	assert.True(t, c.Finished())
}

func TestChainIDsAreProcessUnique(t *testing.T) {
	a := NewChain("agent-1")
	b := NewChain("agent-1")
	assert.NotEqual(t, a.ID, b.ID)
	assert.True(t, strings.HasPrefix(a.ID, "CHAIN-agent-1-"))
}

func TestStepsReturnsACopy(t *testing.T) {
	c := NewChain("agent-1")
	c.Append(ObservationStep, "first", Likely)
	steps := c.Steps()
	steps[0].Text = "mutated"
	assert.Equal(t, "first", c.Steps()[0].Text)
}
