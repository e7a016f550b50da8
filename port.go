package msgport

import (
	"log/slog"
	"sync"
)

// Handler receives a deserialized value delivered to a Port. Invoked on
// the Port's Environment loop goroutine, never concurrently with
// another Handler call on the same Environment, and never while any
// PortState mutex is held (invariant 6).
type Handler func(value any, err error)

// Port is the active, ownable half of an entangled pair: it binds a
// *PortState to an *Environment and a Codec and drains the state's
// incoming queue on that Environment's loop: a status flag gating
// delivery, a Send/enqueue path any goroutine may call, and a drain
// loop that runs to completion before yielding, generalized to the
// two-sided entangled semantics of Node.js's MessagePort.
type Port struct {
	mu    sync.Mutex
	state *PortState
	env   *Environment
	codec Codec
	wakeH *AsyncHandle
	onMsg Handler

	closed bool
}

// NewPort allocates a fresh, unentangled PortState and binds it to a
// new Port on env. Use Channel to obtain an already-entangled pair.
func NewPort(env *Environment, codec Codec, onMsg Handler) *Port {
	return Adopt(newPortState(), env, codec, onMsg)
}

// Adopt binds an existing, possibly-already-populated PortState to a
// new Port — the Go analogue of MessagePort::New(env, state) taking
// over a detached MessagePortData. The previous owner, if any, must
// already have released state (via Detach) before calling Adopt.
func Adopt(state *PortState, env *Environment, codec Codec, onMsg Handler) *Port {
	p := &Port{state: state, env: env, codec: codec, onMsg: onMsg}
	p.wakeH = NewAsyncHandle(env, p.drain)

	state.mu.Lock()
	state.owner = p
	hasWork := state.incoming.len() > 0
	state.mu.Unlock()

	env.metrics.PortsOpened.Add(1)
	env.RecordEvent("port opened on " + env.String())
	if hasWork {
		p.wake()
	}
	return p
}

// wake schedules a drain pass on the Port's Environment, coalescing
// with any already-pending drain. Safe to call from any goroutine,
// including other Environments' loops.
func (p *Port) wake() {
	p.wakeH.Signal()
}

// Post serializes value via the Port's codec and delivers it to the
// sibling's incoming queue. Returns ErrClosedPort if this Port has been
// closed or detached. Posting to a port whose sibling has been closed
// is a silent no-op, fire-and-forget: the sender is never told delivery
// was discarded.
func (p *Port) Post(value any, transferList []any) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosedPort
	}
	state, codec, env := p.state, p.codec, p.env
	p.mu.Unlock()

	var msg Message
	if err := msg.Serialize(env, codec, value, transferList); err != nil {
		env.metrics.CloneFailures.Add(1)
		return err
	}

	state.sibling_mu.Lock()
	sibling := state.sibling
	state.sibling_mu.Unlock()

	if sibling == nil {
		env.metrics.MessagesDeadLettered.Add(1)
		if env.cfg.deadLetter != nil {
			env.cfg.deadLetter(value)
		}
		return nil
	}
	env.metrics.MessagesSent.Add(1)
	sibling.enqueue(msg)
	return nil
}

// Start begins delivering queued and future messages to onMsg. Safe to
// call on a Port that is already started; safe to call before any
// message has arrived.
func (p *Port) Start() {
	p.state.mu.Lock()
	already := p.state.running
	p.state.running = true
	hasWork := p.state.incoming.len() > 0
	p.state.mu.Unlock()

	if !already && hasWork {
		p.wake()
	}
}

// Stop halts delivery without discarding queued messages: they
// accumulate until Start is called again or the Port is closed.
func (p *Port) Stop() {
	p.state.mu.Lock()
	p.state.running = false
	p.state.mu.Unlock()
}

// Detach severs this Port from its PortState and returns the state so
// it can be Adopted by another Port (e.g. after being bridged to a
// different Environment). The returned state retains its queue and
// entanglement; it has no owner until Adopted. Returns nil if the Port
// was already closed.
func (p *Port) Detach() *PortState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.wakeH.Close()
	p.env.metrics.PortsClosed.Add(1)
	p.env.RecordEvent("port closed on " + p.env.String())

	p.state.mu.Lock()
	p.state.owner = nil
	p.state.running = false
	p.state.mu.Unlock()

	return p.state
}

// Close detaches this Port and disentangles its sibling, if any,
// permanently severing the pair. Idempotent.
func (p *Port) Close() {
	state := p.Detach()
	if state == nil {
		return
	}
	p.env.metrics.Disentanglements.Add(1)
	p.env.RecordEvent("sibling disentangled on " + p.env.String())
	state.disentangle()
}

// drain runs on the owning Environment's loop: it pops and delivers
// queued messages until the queue empties or delivery is stopped. Once
// the Environment can no longer dispatch into user code, popped messages
// are discarded without delivery. A message that fails to deserialize is
// dropped without invoking the Handler: the failure is counted in
// CloneFailures and logged, and another drain pass is scheduled.
func (p *Port) drain() {
	for {
		p.mu.Lock()
		closed := p.closed
		env := p.env
		codec := p.codec
		onMsg := p.onMsg
		p.mu.Unlock()
		if closed {
			return
		}

		p.state.mu.Lock()
		if !p.state.running {
			p.state.mu.Unlock()
			return
		}
		msg, ok := p.state.incoming.pop()
		p.state.mu.Unlock()
		if !ok {
			break
		}
		if !env.CanDispatch() {
			continue
		}

		value, err := msg.Deserialize(env, codec)
		if err != nil {
			env.metrics.CloneFailures.Add(1)
			slog.Warn("msgport: deserialize failed, rescheduling drain", "env", env.String(), "error", err)
			p.wake()
			return
		}
		env.metrics.MessagesReceived.Add(1)
		onMsg(value, nil)
	}

	if p.state.siblingClosed() {
		p.Close()
	}
}
