package renderstrategy

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vesselframe/vesselframe/internal/logger"
)

// queueCapacity bounds the number of pending render requests a
// QueuedRenderStrategy will hold. Once full, the oldest pending request
// is dropped to make room for the new one.
const queueCapacity = 20

// QueuedRenderStrategy serializes render requests: every MarkDirty call
// enqueues a render, and the strategy drains the queue one render at a
// time, still never rendering more often than min_interval.
type QueuedRenderStrategy struct {
	minInterval time.Duration
	render      RenderFunc
	log         zerolog.Logger

	mu      sync.Mutex
	queue   []struct{}
	stopCh  chan struct{}
	wakeCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

// NewQueued constructs a QueuedRenderStrategy enforcing minInterval
// between renders, with a bounded pending-request queue of capacity 20.
func NewQueued(minInterval time.Duration, render RenderFunc) *QueuedRenderStrategy {
	return &QueuedRenderStrategy{
		minInterval: minInterval,
		render:      render,
		log:         logger.Component("render.queued"),
		wakeCh:      make(chan struct{}, 1),
	}
}

// Start begins the strategy's drain loop. Idempotent.
func (q *QueuedRenderStrategy) Start() {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	q.stopCh = make(chan struct{})
	q.mu.Unlock()

	q.wg.Add(1)
	go q.loop()
}

// Stop halts the strategy's drain loop. Idempotent.
func (q *QueuedRenderStrategy) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	close(q.stopCh)
	q.mu.Unlock()

	q.wg.Wait()
}

// MarkDirty enqueues one render request. If the queue is already at
// capacity, the oldest pending request is dropped.
func (q *QueuedRenderStrategy) MarkDirty() {
	q.mu.Lock()
	if len(q.queue) >= queueCapacity {
		q.queue = q.queue[1:]
	}
	q.queue = append(q.queue, struct{}{})
	q.mu.Unlock()

	select {
	case q.wakeCh <- struct{}{}:
	default:
	}
}

func (q *QueuedRenderStrategy) loop() {
	defer q.wg.Done()

	for {
		select {
		case <-q.stopCh:
			return
		case <-q.wakeCh:
			q.drain()
		}
	}
}

func (q *QueuedRenderStrategy) drain() {
	for {
		q.mu.Lock()
		if len(q.queue) == 0 {
			q.mu.Unlock()
			return
		}
		q.queue = q.queue[1:]
		q.mu.Unlock()

		safeRender(q.log, q.render)

		select {
		case <-q.stopCh:
			return
		case <-time.After(q.minInterval):
		}
	}
}
