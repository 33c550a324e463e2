package exam

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClockFiresOnceAtZero(t *testing.T) {
	c := NewClock(3)
	assert.False(t, c.Tick(), "disarmed clock must not count")
	assert.Equal(t, 3, c.Remaining())

	c.Arm()
	assert.False(t, c.Tick())
	assert.False(t, c.Tick())
	assert.True(t, c.Tick())
	assert.Equal(t, 0, c.Remaining())
	assert.False(t, c.Armed())

	c.Arm()
	assert.False(t, c.Armed(), "fired clock stays disarmed until reset")
	assert.False(t, c.Tick())
}

func TestClockReset(t *testing.T) {
	c := NewClock(2)
	c.Arm()
	c.Tick()
	c.Tick()

	c.Reset()
	assert.Equal(t, 2, c.Remaining())
	assert.False(t, c.Armed())

	c.Arm()
	assert.True(t, c.Armed())
}

func TestEveryStopsOnCancel(t *testing.T) {
	var calls int32
	ctx, cancel := context.WithCancel(context.Background())
	Every(ctx, time.Millisecond, func() { atomic.AddInt32(&calls, 1) })

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 3 }, time.Second, time.Millisecond)
	cancel()
	time.Sleep(10 * time.Millisecond)
	after := atomic.LoadInt32(&calls)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&calls))
}
