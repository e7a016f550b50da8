package msgport

import (
	"sync"
	"sync/atomic"
)

// RFC3339 truncated to the second: coarseNow's own resolution, so
// formatting it with sub-second precision would be misleading.
const eventTimeLayout = "2006-01-02T15:04:05Z07:00"

// Environment is the concrete stand-in for an isolated runtime with its
// own heap and event loop: a single loop goroutine drains a work queue
// and runs each job to completion before the next, so a Port bound to
// this Environment never has its on_message callback invoked
// concurrently with another callback on the same Environment, and never
// while PortState.mu is held.
type Environment struct {
	name string

	jobs chan func()
	done chan struct{}

	draining atomic.Bool
	stopOnce sync.Once
	wg       sync.WaitGroup

	metrics  *Metrics
	registry *PortRegistry
	events   *RingBuffer[string]
	cfg      envConfig
}

const eventLogCapacity = 256

// NewEnvironment creates an Environment and starts its loop goroutine.
func NewEnvironment(name string, opts ...Option) *Environment {
	cfg := defaultEnvConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	registry := NewPortRegistry()
	env := &Environment{
		name:     name,
		jobs:     make(chan func(), cfg.jobQueueSize),
		done:     make(chan struct{}),
		registry: registry,
		events:   NewRingBuffer[string](eventLogCapacity),
		cfg:      cfg,
	}
	env.metrics = newMetrics(cfg.registerer)
	env.metrics.portCountFn = func() int { return len(registry.Names()) }
	env.wg.Add(1)
	go env.loop()
	return env
}

// Metrics returns the Environment's counters.
func (e *Environment) Metrics() *Metrics { return e.metrics }

// Registry returns the Environment's port name index.
func (e *Environment) Registry() *PortRegistry { return e.registry }

// RecordEvent appends a timestamped lifecycle line (port opened/closed,
// sibling disentangled) to the Environment's bounded recent-events log.
// The timestamp comes from the coarse clock — second-level resolution is
// plenty for a human skimming an event tail, and this runs on every
// Adopt/Close, hot enough to skip time.Now()'s syscall. When the log is
// full the oldest entry is dropped to make room, so the log always
// reflects the most recent eventLogCapacity events rather than refusing
// new ones.
func (e *Environment) RecordEvent(line string) {
	stamped := now().Format(eventTimeLayout) + " " + line
	if err := e.events.Write(stamped); err == ErrRingBufferFull {
		e.events.Read()
		e.events.Write(stamped)
	}
}

// RecentEvents drains up to n entries from the recent-events log, oldest
// first. Draining, not peeking: a second call returns only what arrived
// since the first.
func (e *Environment) RecentEvents(n int64) []string {
	vals, _ := e.events.ReadN(n)
	return vals
}

func (e *Environment) loop() {
	defer e.wg.Done()
	for {
		select {
		case <-e.done:
			return
		case job := <-e.jobs:
			job()
		}
	}
}

// Schedule enqueues fn to run on the loop goroutine. Safe to call from
// any goroutine. If the Environment is stopped, fn is silently dropped —
// the Go analogue of uv_async_send on a closed loop being a no-op.
func (e *Environment) Schedule(fn func()) {
	select {
	case <-e.done:
		return
	default:
	}
	select {
	case e.jobs <- fn:
	case <-e.done:
	}
}

// CanDispatch reports whether the Environment can currently run user
// callbacks. It only ever goes false while the Environment is tearing
// down — the Go analogue of Environment::can_call_into_js() returning
// false during isolate shutdown.
func (e *Environment) CanDispatch() bool {
	return !e.draining.Load()
}

// Stop drains the loop: no further jobs are accepted, the goroutine
// exits once any in-flight job completes, and CanDispatch begins
// reporting false immediately so in-flight drains stop calling back
// into user code. Idempotent.
func (e *Environment) Stop() {
	e.stopOnce.Do(func() {
		e.draining.Store(true)
		close(e.done)
	})
	e.wg.Wait()
}

func (e *Environment) String() string {
	if e.name == "" {
		return "environment"
	}
	return e.name
}
