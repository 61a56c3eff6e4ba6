package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetSet(t *testing.T) {
	c := New[string](time.Minute)
	c.Set("meeting-1", "active")

	got, ok := c.Get("meeting-1")
	assert.True(t, ok)
	assert.Equal(t, "active", got)

	_, ok = c.Get("meeting-2")
	assert.False(t, ok)
}

func TestExpiry(t *testing.T) {
	c := New[int](time.Minute)
	c.SetWithTTL("k", 7, 10*time.Millisecond)

	_, ok := c.Get("k")
	assert.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestDelete(t *testing.T) {
	c := New[string](time.Minute)
	c.Set("k", "v")
	c.Delete("k")

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestLenSkipsExpired(t *testing.T) {
	c := New[int](time.Minute)
	c.Set("fresh", 1)
	c.SetWithTTL("stale", 2, -time.Second)

	assert.Equal(t, 1, c.Len())
}
