package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	clocktesting "k8s.io/utils/clock/testing"
)

func TestGetHonoursTTL(t *testing.T) {
	clk := clocktesting.NewFakePassiveClock(time.Unix(1000, 0))
	c := NewWithClock[[]string](clk)

	c.Set("catalog", []string{"indi-asi"}, TTLCatalog)

	v, ok := c.Get("catalog")
	assert.True(t, ok)
	assert.Equal(t, []string{"indi-asi"}, v)

	clk.SetTime(clk.Now().Add(TTLCatalog + time.Second))

	_, ok = c.Get("catalog")
	assert.False(t, ok)

	entry, ok := c.GetEntry("catalog")
	assert.True(t, ok, "expired entries stay inspectable")
	assert.Equal(t, time.Unix(1000, 0), entry.FetchedAt)

	c.Cleanup()
	_, ok = c.GetEntry("catalog")
	assert.False(t, ok, "cleanup drops expired entries")
}

func TestDelete(t *testing.T) {
	c := New[int]()
	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)

	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)
}
