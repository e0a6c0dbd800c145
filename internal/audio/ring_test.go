package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingDrainReturnsPushedSamples(t *testing.T) {
	r := &Ring{buf: make([]int16, 8), cap: 8}
	r.Push([]int16{1, 2, 3})
	got := r.Drain()
	assert.Equal(t, []int16{1, 2, 3}, got)
	assert.False(t, r.Truncated())
}

func TestRingOverflowDropsOldestAndMarksTruncated(t *testing.T) {
	r := &Ring{buf: make([]int16, 4), cap: 4}
	r.Push([]int16{1, 2, 3, 4, 5, 6})
	got := r.Drain()
	assert.Equal(t, []int16{3, 4, 5, 6}, got)
	assert.True(t, r.Truncated())
}

func TestRingResetClearsTruncatedFlag(t *testing.T) {
	r := &Ring{buf: make([]int16, 2), cap: 2}
	r.Push([]int16{1, 2, 3})
	assert.True(t, r.Truncated())
	r.Reset()
	assert.False(t, r.Truncated())
	assert.Empty(t, r.Drain())
}

func TestRingLevelRoundTrips(t *testing.T) {
	r := NewRing()
	r.SetLevel(0.42)
	assert.InDelta(t, 0.42, r.Level(), 1e-6)
}
