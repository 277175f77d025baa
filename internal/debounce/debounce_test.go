package debounce

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func TestTriggerCollapsesBurst(t *testing.T) {
	d := New(30 * time.Millisecond)

	var calls, last int32
	for i := 1; i <= 5; i++ {
		i := int32(i)
		d.Trigger(func() {
			atomic.AddInt32(&calls, 1)
			atomic.StoreInt32(&last, i)
		})
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(120 * time.Millisecond)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, int32(5), atomic.LoadInt32(&last))
	assert.Equal(t, false, d.Pending())
}

func TestFlushRunsImmediately(t *testing.T) {
	d := New(time.Hour)

	var calls int32
	d.Trigger(func() { atomic.AddInt32(&calls, 1) })
	assert.Equal(t, true, d.Pending())

	d.Flush()
	d.Flush()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, false, d.Pending())
}

func TestStopDropsPendingCall(t *testing.T) {
	d := New(20 * time.Millisecond)

	var calls int32
	d.Trigger(func() { atomic.AddInt32(&calls, 1) })
	d.Stop()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestNonPositiveIntervalUsesDefault(t *testing.T) {
	d := New(0)
	assert.Equal(t, DefaultInterval, d.interval)
}
