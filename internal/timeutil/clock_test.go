package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMockClock(t *testing.T) {
	t.Parallel()
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)
	assert.Equal(t, start, c.Now())

	c.Advance(time.Minute)
	assert.Equal(t, start.Add(time.Minute), c.Now())

	c.Sleep(20 * time.Millisecond)
	c.Sleep(40 * time.Millisecond)
	assert.Equal(t, start.Add(time.Minute+60*time.Millisecond), c.Now())
	assert.Equal(t, []time.Duration{20 * time.Millisecond, 40 * time.Millisecond}, c.Sleeps())

	c.Set(start)
	assert.Equal(t, start, c.Now())
}

func TestRealClock(t *testing.T) {
	t.Parallel()
	var c Clock = RealClock{}
	before := time.Now()
	assert.False(t, c.Now().Before(before))
}
