package search

import (
	"sync"
	"time"
)

// DefaultDebounce is the pause in typing after which a search runs.
const DefaultDebounce = 500 * time.Millisecond

// Debouncer coalesces bursts of calls: only the last function passed to
// Call runs, once the calls have stopped for the configured delay. Once
// Stop returns, no scheduled function is running or will start.
type Debouncer struct {
	// run is held while a scheduled function executes.
	run   sync.Mutex
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
	gen   uint64
}

func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{delay: delay}
}

// Call schedules fn, replacing any call still waiting.
func (d *Debouncer) Call(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.run.Lock()
		defer d.run.Unlock()

		d.mu.Lock()
		current := d.gen == gen
		d.mu.Unlock()
		if current {
			fn()
		}
	})
}

// Stop drops the pending call, if any, and waits for one already running
// to return. It must not be called from a scheduled function.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	d.run.Lock()
	d.run.Unlock()
}
