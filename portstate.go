package msgport

import "sync"

// PortState is the shared, reference-counted state a Port wraps: the
// inbound queue, the running flag, the owner back-link, and the sibling
// entanglement — all decoupled from any particular Port instance so it
// can outlive a detach and be adopted by a new owner, the same split
// Node.js keeps between a MessagePort and its underlying
// MessagePortData.
//
// Two mutexes, on purpose: mu guards the hot, every-send/receive path
// (incoming, running, owner); sibling_mu guards the cold, entangle/
// disentangle/close-only sibling link. The two are never held at the
// same time: Port.Post reads the sibling under sibling_mu and releases
// it before the sibling's enqueue takes mu, and disentangle releases
// sibling_mu before pinging owners under mu.
type PortState struct {
	mu      sync.Mutex
	incoming messageQueue
	running  bool
	owner    *Port // back-link to the currently-bound Port, or nil

	// sibling_mu is shared with the paired PortState while entangled:
	// both sides' sibling_mu field point at the *same* mutex instance.
	// disentangle, while holding the shared mutex, installs a fresh
	// private mutex on the side it runs on; the former sibling keeps the
	// old one, which nobody else shares any more, so neither side can
	// block the other after disentanglement.
	sibling_mu *sync.Mutex
	sibling    *PortState
}

// newPortState constructs a fresh, orphaned, unentangled PortState with
// a private sibling mutex and running == false.
func newPortState() *PortState {
	return &PortState{sibling_mu: &sync.Mutex{}}
}

// enqueue appends msg to the incoming queue and, if an owner is bound,
// wakes it. It does not consult running — delivery gating is the
// receive loop's job, so messages accumulate while stopped.
func (s *PortState) enqueue(msg Message) {
	s.mu.Lock()
	s.incoming.push(msg)
	owner := s.owner
	s.mu.Unlock()

	if owner != nil {
		owner.wake()
	}
}

// siblingClosed reports whether this side's sibling link has been
// severed, acquiring only sibling_mu.
func (s *PortState) siblingClosed() bool {
	mu := s.sibling_mu
	mu.Lock()
	defer mu.Unlock()
	return s.sibling == nil
}

// pingOwner signals this side's owner, if bound, without touching the
// sibling link. Used after disentanglement to let an owner observe the
// now-closed sibling on its own loop.
func (s *PortState) pingOwner() {
	s.mu.Lock()
	owner := s.owner
	s.mu.Unlock()
	if owner != nil {
		owner.wake()
	}
}

// disentangle atomically severs the bond with the current sibling, if
// any, installing a fresh private mutex on this side first so that no
// stray caller holding the old shared mutex pointer can observe a
// partial state, then pings both this side's owner and the former
// sibling's owner so each loop can react.
func (s *PortState) disentangle() {
	shared := s.sibling_mu
	shared.Lock()

	s.sibling_mu = &sync.Mutex{}

	sibling := s.sibling
	if sibling != nil {
		sibling.sibling = nil
		s.sibling = nil
	}

	shared.Unlock()

	s.pingOwner()
	if sibling != nil {
		sibling.pingOwner()
	}
}

// Entangle binds two fresh, orphan-of-siblings PortStates to each other.
// No locking is required: the precondition (neither side has a sibling
// yet) implies no other party can observe either state yet. A caller
// entangling already-live states must serialize that call itself.
func Entangle(a, b *PortState) {
	a.sibling = b
	b.sibling = a
	shared := a.sibling_mu
	b.sibling_mu = shared
}
