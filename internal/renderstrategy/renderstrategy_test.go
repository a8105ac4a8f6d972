package renderstrategy

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPeriodicRenderStrategyCoalescesDirtySignals(t *testing.T) {
	var calls int32
	p := NewPeriodic(30*time.Millisecond, func() error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	p.Start()
	defer p.Stop()

	for i := 0; i < 10; i++ {
		p.MarkDirty()
	}

	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(2))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(1))
}

func TestPeriodicRenderStrategyNeverExceedsMinInterval(t *testing.T) {
	var calls int32
	interval := 20 * time.Millisecond
	p := NewPeriodic(interval, func() error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	p.Start()
	defer p.Stop()

	stop := time.After(105 * time.Millisecond)
loop:
	for {
		select {
		case <-stop:
			break loop
		default:
			p.MarkDirty()
			time.Sleep(time.Millisecond)
		}
	}

	time.Sleep(10 * time.Millisecond)
	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(6))
}

func TestPeriodicRenderStrategySkipsWhenNotDirty(t *testing.T) {
	var calls int32
	p := NewPeriodic(15*time.Millisecond, func() error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	p.Start()
	defer p.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestPeriodicRenderStrategyIsolatesPanicsAndErrors(t *testing.T) {
	p := NewPeriodic(10*time.Millisecond, func() error {
		panic("boom")
	})
	p.Start()
	p.MarkDirty()
	time.Sleep(30 * time.Millisecond)
	p.Stop()

	q := NewPeriodic(10*time.Millisecond, func() error {
		return errors.New("render failed")
	})
	q.Start()
	q.MarkDirty()
	time.Sleep(30 * time.Millisecond)
	q.Stop()
}

func TestPeriodicRenderStrategyStartStopIdempotent(t *testing.T) {
	p := NewPeriodic(10*time.Millisecond, func() error { return nil })
	p.Start()
	p.Start()
	p.Stop()
	p.Stop()
}

func TestQueuedRenderStrategyDrainsAllRequests(t *testing.T) {
	var calls int32
	q := NewQueued(5*time.Millisecond, func() error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	q.Start()
	defer q.Stop()

	for i := 0; i < 3; i++ {
		q.MarkDirty()
	}

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 3
	}, time.Second, time.Millisecond)
}

func TestQueuedRenderStrategyDropsOldestWhenFull(t *testing.T) {
	q := NewQueued(time.Hour, func() error { return nil })

	for i := 0; i < queueCapacity+5; i++ {
		q.MarkDirty()
	}

	q.mu.Lock()
	length := len(q.queue)
	q.mu.Unlock()

	assert.Equal(t, queueCapacity, length)
}

func TestQueuedRenderStrategyEnforcesMinInterval(t *testing.T) {
	var timestamps []time.Time
	interval := 20 * time.Millisecond
	q := NewQueued(interval, func() error {
		timestamps = append(timestamps, time.Now())
		return nil
	})
	q.Start()
	defer q.Stop()

	q.MarkDirty()
	q.MarkDirty()
	q.MarkDirty()

	assert.Eventually(t, func() bool {
		return len(timestamps) >= 2
	}, time.Second, time.Millisecond)

	if len(timestamps) >= 2 {
		assert.GreaterOrEqual(t, timestamps[1].Sub(timestamps[0]), interval-2*time.Millisecond)
	}
}

func TestQueuedRenderStrategyStartStopIdempotent(t *testing.T) {
	q := NewQueued(10*time.Millisecond, func() error { return nil })
	q.Start()
	q.Start()
	q.Stop()
	q.Stop()
}
