package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/freight-intake/internal/common"
)

func TestLimiter_RejectsBeyondCapAndRecovers(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	l := New("ocr", 3, WithClock(func() time.Time { return now }))

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Allow())
	}
	err := l.Allow()
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrRateLimited)

	now = now.Add(time.Minute)
	assert.NoError(t, l.Allow())
}

func TestLimiter_CapHoldsAcrossWindow(t *testing.T) {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	now := start
	l := New("ocr", 3, WithClock(func() time.Time { return now }))

	allowed := 0
	for _, at := range []time.Duration{0, 0, 0, 20 * time.Second, 40 * time.Second, 59 * time.Second} {
		now = start.Add(at)
		if l.Allow() == nil {
			allowed++
		}
	}
	assert.Equal(t, 3, allowed)
	assert.Equal(t, 0, l.Remaining())
}

func TestLimiter_SlidesWithOldestCall(t *testing.T) {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	now := start
	l := New("llm", 2, WithClock(func() time.Time { return now }))

	require.NoError(t, l.Allow()) // t=0
	now = start.Add(30 * time.Second)
	require.NoError(t, l.Allow()) // t=30s
	now = start.Add(59 * time.Second)
	require.Error(t, l.Allow())

	// t=0 leaves the window, t=30s is still inside it
	now = start.Add(60 * time.Second)
	require.NoError(t, l.Allow())
	now = start.Add(80 * time.Second)
	require.Error(t, l.Allow())
	now = start.Add(90 * time.Second)
	assert.NoError(t, l.Allow())
}

func TestLimiter_DisabledAndNil(t *testing.T) {
	l := New("ai", 0)
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Allow())
	}
	assert.Equal(t, -1, l.Remaining())
	var nilLimiter *Limiter
	assert.NoError(t, nilLimiter.Allow())
}
