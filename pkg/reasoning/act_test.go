package reasoning

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func failingTool() Tool {
	return Tool{
		Name: "failing",
		Handler: func(ctx context.Context, params map[string]any) (any, error) {
			return nil, errors.New("boom")
		},
	}
}

func TestActContinuesPastHandlerFailure(t *testing.T) {
	agent, _ := testAgent(t, nil, analyzeTool(), failingTool())
	chain := NewChain("agent-1")

	executed := agent.act(context.Background(), chain, []Action{
		{Type: "failing"},
		{Type: "analyze"},
	})

	assert.Len(t, executed, 2)
	assert.False(t, executed[0].Result.Success)
	assert.NotEmpty(t, executed[0].Result.Error)
	assert.True(t, executed[1].Result.Success)
}

func TestActRecordsUnregisteredToolWithoutPanicking(t *testing.T) {
	agent, _ := testAgent(t, nil, analyzeTool())
	chain := NewChain("agent-1")

	executed := agent.act(context.Background(), chain, []Action{{Type: "ghost"}})

	assert.Len(t, executed, 1)
	assert.False(t, executed[0].Result.Success)
	assert.Contains(t, executed[0].Result.Error, "not registered")
}

func TestActPublishesStartAndCompleteEventsPerAction(t *testing.T) {
	agent, _ := testAgent(t, nil, analyzeTool())
	chain := NewChain("agent-1")

	var topics []string
	agent.cfg.Bus.Subscribe("agent:action:*", func(topic string, data any) {
		topics = append(topics, topic)
	})

	agent.act(context.Background(), chain, []Action{{Type: "analyze"}})

	assert.Equal(t, []string{"agent:action:start", "agent:action:complete"}, topics)
}
