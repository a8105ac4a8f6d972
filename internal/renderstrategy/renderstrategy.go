// Package renderstrategy implements the two render-scheduling policies a
// screen's output can be driven by: coalescing (Periodic) and
// serializing (Queued). Both enforce a minimum interval between actual
// render calls and isolate the render function from panics the way the
// plugin scheduler isolates cron jobs from panicking jobs.
package renderstrategy

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vesselframe/vesselframe/internal/logger"
)

// RenderFunc is the function a render strategy invokes on its schedule.
// Errors are logged and otherwise ignored: a single failed render must
// not stop future renders.
type RenderFunc func() error

func safeRender(log zerolog.Logger, render RenderFunc) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("render function panicked")
		}
	}()
	if err := render(); err != nil {
		log.Error().Err(err).Msg("render function failed")
	}
}

// PeriodicRenderStrategy coalesces any number of dirty signals arriving
// within one min_interval window into a single render call at the end of
// that window.
type PeriodicRenderStrategy struct {
	minInterval time.Duration
	render      RenderFunc
	log         zerolog.Logger

	mu      sync.Mutex
	dirty   bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

// NewPeriodic constructs a PeriodicRenderStrategy enforcing minInterval
// between renders.
func NewPeriodic(minInterval time.Duration, render RenderFunc) *PeriodicRenderStrategy {
	return &PeriodicRenderStrategy{
		minInterval: minInterval,
		render:      render,
		log:         logger.Component("render.periodic"),
	}
}

// Start begins the strategy's background timer loop. Idempotent.
func (p *PeriodicRenderStrategy) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.mu.Unlock()

	p.wg.Add(1)
	go p.loop()
}

// Stop halts the strategy's timer loop. Idempotent.
func (p *PeriodicRenderStrategy) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopCh)
	p.mu.Unlock()

	p.wg.Wait()
}

// MarkDirty signals that content has changed and should be rendered at
// the next tick. Multiple calls within one interval collapse into a
// single render.
func (p *PeriodicRenderStrategy) MarkDirty() {
	p.mu.Lock()
	p.dirty = true
	p.mu.Unlock()
}

func (p *PeriodicRenderStrategy) loop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.minInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.renderIfDirty()
		}
	}
}

func (p *PeriodicRenderStrategy) renderIfDirty() {
	p.mu.Lock()
	wasDirty := p.dirty
	p.dirty = false
	p.mu.Unlock()

	if wasDirty {
		safeRender(p.log, p.render)
	}
}
