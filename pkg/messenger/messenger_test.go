package messenger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendDeliversToRegisteredInbox(t *testing.T) {
	m := New()
	var received Message
	m.Register("agent-2", InboxFunc(func(msg Message) { received = msg }))

	err := m.Send(Message{From: "agent-1", To: "agent-2", Type: InformationShare, Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", received.Content)
}

func TestSendToUnknownAgentErrors(t *testing.T) {
	m := New()
	err := m.Send(Message{From: "agent-1", To: "nobody", Type: InformationShare})
	assert.Error(t, err)
}

func TestBroadcastSkipsSender(t *testing.T) {
	m := New()
	var gotA, gotB bool
	m.Register("agent-1", InboxFunc(func(msg Message) { gotA = true }))
	m.Register("agent-2", InboxFunc(func(msg Message) { gotB = true }))

	m.Broadcast("agent-1", "alert")
	assert.False(t, gotA)
	assert.True(t, gotB)
}

func TestRequestHelpResolvesOnMatchingResponse(t *testing.T) {
	m := New()
	m.Register("agent-2", InboxFunc(func(msg Message) {
		if msg.Type == HelpRequest {
			go m.Send(Message{
				From:          "agent-2",
				To:            "agent-1",
				Type:          HelpResponse,
				Content:       "here's the answer",
				CorrelationID: msg.CorrelationID,
			})
		}
	}))

	resp, err := m.RequestHelp(context.Background(), "agent-1", "agent-2", "need help", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "here's the answer", resp.Content)
}

func TestRequestHelpTimesOutWithoutResponse(t *testing.T) {
	m := New()
	m.Register("agent-2", InboxFunc(func(msg Message) {}))

	_, err := m.RequestHelp(context.Background(), "agent-1", "agent-2", "need help", 20*time.Millisecond)
	assert.Error(t, err)
}

func TestRequestHelpRespectsContextCancellation(t *testing.T) {
	m := New()
	m.Register("agent-2", InboxFunc(func(msg Message) {}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.RequestHelp(ctx, "agent-1", "agent-2", "need help", time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUnregisterRemovesInbox(t *testing.T) {
	m := New()
	m.Register("agent-2", InboxFunc(func(msg Message) {}))
	m.Unregister("agent-2")

	err := m.Send(Message{From: "agent-1", To: "agent-2"})
	assert.Error(t, err)
}
