package server

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucketLimiterBurstThenBlock(t *testing.T) {
	// Negligible refill so the test does not race the clock.
	l := NewTokenBucketLimiter(3, 0.000001)

	for i := 0; i < 3; i++ {
		assert.True(t, l.AllowMessage("conn-1"), "message %d should pass", i)
	}
	assert.False(t, l.AllowMessage("conn-1"))
}

func TestTokenBucketLimiterIsolatesConnections(t *testing.T) {
	l := NewTokenBucketLimiter(1, 0.000001)

	assert.True(t, l.AllowMessage("conn-1"))
	assert.False(t, l.AllowMessage("conn-1"))
	assert.True(t, l.AllowMessage("conn-2"))
}

func TestTokenBucketLimiterRemoveResetsBucket(t *testing.T) {
	l := NewTokenBucketLimiter(1, 0.000001)

	assert.True(t, l.AllowMessage("conn-1"))
	assert.False(t, l.AllowMessage("conn-1"))

	l.Remove("conn-1")
	assert.True(t, l.AllowMessage("conn-1"))
}

func TestThresholdClassifier(t *testing.T) {
	c := NewThresholdClassifier(3)
	errBad := errors.New("bad frame")

	c.HandleError("conn-1", "decode", errBad)
	assert.False(t, c.ShouldTerminateConnection("conn-1"))
	c.HandleError("conn-1", "decode", errBad)
	assert.False(t, c.ShouldTerminateConnection("conn-1"))
	c.HandleError("conn-1", "decode", errBad)
	assert.True(t, c.ShouldTerminateConnection("conn-1"))

	// Other connections are unaffected.
	assert.False(t, c.ShouldTerminateConnection("conn-2"))

	c.Remove("conn-1")
	assert.False(t, c.ShouldTerminateConnection("conn-1"))
}
