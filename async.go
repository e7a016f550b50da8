package msgport

import "sync/atomic"

// AsyncHandle is the cross-thread wake primitive a Port uses to ask its
// owning Environment to run a drain pass: callable from any goroutine,
// coalescing repeated signals into a single callback invocation, and
// invoking that callback on the owning Environment's loop. This stands
// in for libuv's uv_async_t; the implementation here is a single-
// producer/multi-consumer atomic "pending" flag rather than a native OS
// primitive.
type AsyncHandle struct {
	env     *Environment
	pending atomic.Bool
	closed  atomic.Bool
	fn      func()
}

// NewAsyncHandle registers fn on env's loop: Signal schedules exactly
// one run of fn per "idle to pending" transition, even if Signal is
// called many times before that run starts.
func NewAsyncHandle(env *Environment, fn func()) *AsyncHandle {
	return &AsyncHandle{env: env, fn: fn}
}

// Signal is idempotent and coalescing: concurrent callers racing to set
// pending only the first wins the right to schedule a run; every run
// clears pending before invoking fn, so a Signal arriving during a run
// is guaranteed to schedule another run rather than being lost.
func (h *AsyncHandle) Signal() {
	if h.closed.Load() {
		return
	}
	if h.pending.CompareAndSwap(false, true) {
		h.env.Schedule(func() {
			h.pending.Store(false)
			if !h.closed.Load() {
				h.fn()
			}
		})
	}
}

// Close marks the handle dead; any Signal racing with or following
// Close has no observable effect, since a closed port's wake handle is
// effectively an orphan with nothing left to schedule. Asynchronous in
// spirit (uv_async close callbacks run on the loop) but synchronous here
// since there is no native handle to reclaim.
func (h *AsyncHandle) Close() {
	h.closed.Store(true)
}
