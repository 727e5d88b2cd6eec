package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimitWindows(t *testing.T) {
	l := newRateLimit(2)
	now := time.Unix(100, 0)

	assert.True(t, l.allow(now))
	assert.True(t, l.allow(now.Add(100*time.Millisecond)))
	assert.False(t, l.allow(now.Add(900*time.Millisecond)))
	assert.True(t, l.allow(now.Add(time.Second)), "a new window starts")

	unlimited := newRateLimit(0)
	for range 100 {
		assert.True(t, unlimited.allow(now))
	}
}
