package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasPattern(t *testing.T) {
	assert.False(t, hasPattern("ch:notifications"))
	assert.True(t, hasPattern("ch:*"))
	assert.True(t, hasPattern("ch:[ab]"))
}

func TestRateLimitKey(t *testing.T) {
	assert.Equal(t, "ratelimit:mint:127.0.0.1", rateLimitKey("mint:127.0.0.1"))
}

func TestSlidingWindowScriptEmbedded(t *testing.T) {
	assert.Contains(t, slidingWindowLua, "ZREMRANGEBYSCORE")
}
