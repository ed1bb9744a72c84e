// Package reactor implements a single-goroutine event loop.
//
// Every transport in this module is owned by a Reactor. Background goroutines
// performing blocking I/O never touch transport state directly: they post
// closures to the owning Reactor with CallSoon, and the Reactor runs them
// one after the other on the goroutine that called Run.
package reactor

import (
	"sync"
	"time"

	"github.com/ooni/mknet/internal/runtimex"
)

// Reactor is a cooperative event loop. The zero value is invalid; construct
// using New. A Reactor is safe to use from multiple goroutines.
type Reactor struct {
	// mu protects queue and running.
	mu sync.Mutex

	// queue contains the pending callbacks.
	queue []func()

	// notify wakes up the loop when we enqueue.
	notify chan struct{}

	// running is true while Run is running.
	running bool

	// stop is set by Stop and cleared when Run returns.
	stop bool
}

// New creates a new Reactor.
func New() *Reactor {
	return &Reactor{
		notify: make(chan struct{}, 1),
	}
}

// CallSoon schedules fn to run on the reactor goroutine. This method never
// runs fn inline, even when called from the reactor goroutine, so a caller
// can rely on fn running after the current callback returns.
func (r *Reactor) CallSoon(fn func()) {
	runtimex.PanicIfTrue(fn == nil, "reactor: passed nil func to CallSoon")
	r.mu.Lock()
	r.queue = append(r.queue, fn)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Timer is a callback scheduled with CallLater.
type Timer struct {
	mu       sync.Mutex
	stopped  bool
	stdTimer *time.Timer
}

// Stop prevents the callback from running. It is safe to call Stop
// more than once and after the callback has already run.
func (t *Timer) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
	t.stdTimer.Stop()
}

func (t *Timer) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// CallLater schedules fn to run on the reactor goroutine after the given
// delay. If you call Timer.Stop from the reactor goroutine before fn
// runs, fn will not run.
func (r *Reactor) CallLater(delay time.Duration, fn func()) *Timer {
	runtimex.PanicIfTrue(fn == nil, "reactor: passed nil func to CallLater")
	t := &Timer{}
	t.stdTimer = time.AfterFunc(delay, func() {
		r.CallSoon(func() {
			if !t.isStopped() {
				fn()
			}
		})
	})
	return t
}

// Run runs the loop until Stop is called. It panics if the
// loop is already running in another goroutine.
func (r *Reactor) Run() {
	r.mu.Lock()
	runtimex.PanicIfTrue(r.running, "reactor: already running")
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.stop = false
		r.mu.Unlock()
	}()
	for {
		r.mu.Lock()
		batch := r.queue
		r.queue = nil
		stop := r.stop
		r.mu.Unlock()
		if stop {
			return
		}
		if len(batch) <= 0 {
			<-r.notify
			continue
		}
		for idx, fn := range batch {
			fn()
			if r.stopRequested() {
				r.requeue(batch[idx+1:])
				return
			}
		}
	}
}

// RunWith schedules fn with CallSoon and then runs the loop. The fn
// callback is expected to call Stop eventually.
func (r *Reactor) RunWith(fn func()) {
	r.CallSoon(fn)
	r.Run()
}

// Stop tells the loop to return after the currently running callback.
// Callbacks not run yet stay in the queue for the next Run.
func (r *Reactor) Stop() {
	r.mu.Lock()
	r.stop = true
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *Reactor) stopRequested() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stop
}

func (r *Reactor) requeue(pending []func()) {
	if len(pending) <= 0 {
		return
	}
	r.mu.Lock()
	r.queue = append(append([]func(){}, pending...), r.queue...)
	r.mu.Unlock()
}

// Pending returns the number of callbacks waiting to run.
func (r *Reactor) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}
