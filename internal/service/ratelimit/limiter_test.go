package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_BurstThenDeny(t *testing.T) {
	l := New(0.001, 2)
	assert.True(t, l.Allow("binance"))
	assert.True(t, l.Allow("binance"))
	assert.False(t, l.Allow("binance"))

	// keys are independent
	assert.True(t, l.Allow("finnhub"))
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	l := New(0.001, 1)
	assert.True(t, l.Allow("k"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx, "k"))
}
