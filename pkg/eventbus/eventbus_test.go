package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExactTopicMatch(t *testing.T) {
	b := New()
	var got []string
	b.Subscribe("agent:thought", func(topic string, data any) {
		got = append(got, topic)
	})

	b.Publish("agent:thought", nil)
	b.Publish("agent:action:start", nil)

	assert.Equal(t, []string{"agent:thought"}, got)
}

func TestWildcardSuffixMatch(t *testing.T) {
	b := New()
	var got []string
	b.Subscribe("alert:*", func(topic string, data any) {
		got = append(got, topic)
	})

	b.Publish("alert:critical", nil)
	b.Publish("alert:high", nil)
	b.Publish("case:opened", nil)

	assert.Equal(t, []string{"alert:critical", "alert:high"}, got)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	b := New()
	var count int
	unsub := b.Subscribe("x", func(string, any) { count++ })

	b.Publish("x", nil)
	unsub()
	unsub()
	b.Publish("x", nil)

	assert.Equal(t, 1, count)
}

func TestPublishDeliversInSubscriptionOrder(t *testing.T) {
	b := New()
	var order []int
	b.Subscribe("x", func(string, any) { order = append(order, 1) })
	b.Subscribe("x", func(string, any) { order = append(order, 2) })

	b.Publish("x", nil)

	assert.Equal(t, []int{1, 2}, order)
}
