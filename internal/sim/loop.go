package sim

import (
	"context"
	"time"
)

// maxCatchUp caps the accumulator so a long stall slows the simulation down
// instead of spiraling into an unbounded burst of steps.
const maxCatchUp = 250 * time.Millisecond

// TickFunc advances the simulation by one fixed step.
type TickFunc func()

// Loop drives a fixed-timestep simulation from wall-clock time. Rendering
// and transport run off snapshots; the loop only cares about stepping.
type Loop struct {
	step    time.Duration
	tick    TickFunc
	monitor *TickMonitor

	ticker *time.Ticker
	stop   chan struct{}
	done   chan struct{}
}

// NewLoop targets the given tick rate. A nil monitor disables timing stats.
func NewLoop(tickRate int, tick TickFunc, monitor *TickMonitor) *Loop {
	if tickRate <= 0 {
		tickRate = 60
	}
	if tick == nil {
		tick = func() {}
	}
	step := time.Duration(float64(time.Second) / float64(tickRate))
	if step <= 0 {
		step = time.Second / 60
	}
	return &Loop{step: step, tick: tick, monitor: monitor}
}

// Start begins ticking until the context is cancelled or Stop is invoked.
func (l *Loop) Start(ctx context.Context) {
	if l == nil || l.tick == nil {
		return
	}
	l.ticker = time.NewTicker(l.step)
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	go func() {
		defer close(l.done)
		defer l.ticker.Stop()
		last := time.Now()
		accumulator := time.Duration(0)
		for {
			select {
			case <-ctx.Done():
				return
			case <-l.stop:
				return
			case now := <-l.ticker.C:
				//1.- Accumulate elapsed wall time and run fixed steps to catch up.
				accumulator += now.Sub(last)
				last = now
				if accumulator > maxCatchUp {
					accumulator = maxCatchUp
				}
				for accumulator >= l.step {
					started := time.Now()
					l.tick()
					l.monitor.Observe(time.Since(started))
					accumulator -= l.step
				}
			}
		}
	}()
}

// Stop halts the loop and waits for the goroutine to exit. The simulation is
// left at a tick boundary, never mid-step.
func (l *Loop) Stop() {
	if l == nil {
		return
	}
	if l.ticker != nil {
		l.ticker.Stop()
	}
	if l.stop != nil {
		close(l.stop)
		l.stop = nil
	}
	if l.done != nil {
		<-l.done
		l.done = nil
	}
}

// StepDuration exposes the configured timestep.
func (l *Loop) StepDuration() time.Duration {
	if l == nil {
		return 0
	}
	return l.step
}
