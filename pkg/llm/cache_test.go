package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/riskforge/agentcore/pkg/clock"
)

func TestCacheExpiresByTTL(t *testing.T) {
	clk := clock.NewFake(0)
	c := NewCache(clk, 10*time.Millisecond, 100)
	key := Key("M", 0.1, "s", "u")
	c.Set(key, Response{Content: "x"}, 0.1)

	_, ok := c.Get(key)
	assert.True(t, ok)

	clk.Advance(11 * time.Millisecond)
	_, ok = c.Get(key)
	assert.False(t, ok)
}

func TestCacheEvictsOldestOverMaxEntries(t *testing.T) {
	clk := clock.NewFake(0)
	c := NewCache(clk, time.Hour, 2)

	c.Set("k1", Response{Content: "1"}, 0)
	c.Set("k2", Response{Content: "2"}, 0)
	c.Set("k3", Response{Content: "3"}, 0)

	_, ok := c.Get("k1")
	assert.False(t, ok, "oldest entry should have been evicted")
	_, ok = c.Get("k3")
	assert.True(t, ok)
}

// A cache entry for temperature > 0.5 is never inserted.
func TestCacheNeverInsertsHighTemperature(t *testing.T) {
	clk := clock.NewFake(0)
	c := NewCache(clk, time.Hour, 100)
	c.Set("k", Response{Content: "x"}, 0.51)

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCacheBoundaryTemperatureIsCached(t *testing.T) {
	clk := clock.NewFake(0)
	c := NewCache(clk, time.Hour, 100)
	c.Set("k", Response{Content: "x"}, 0.5)

	_, ok := c.Get("k")
	assert.True(t, ok)
}
