package msgport

// Channel holds a freshly entangled pair of ports, mirroring the role
// Node.js's MessageChannel plays for its MessagePort pair: a thin
// constructor with no behavior of its own beyond producing Port1/Port2
// already bound to each other.
type Channel struct {
	Port1 *Port
	Port2 *Port
}

// NewChannel allocates two PortStates, entangles them, and binds each
// to a Port on its own Environment. envB may equal envA: nothing in
// PortState requires the two sides to live on different loops, only
// that each side's Handler runs on its own bound Environment.
func NewChannel(envA *Environment, codecA Codec, onMsgA Handler, envB *Environment, codecB Codec, onMsgB Handler) *Channel {
	stateA := newPortState()
	stateB := newPortState()
	Entangle(stateA, stateB)

	return &Channel{
		Port1: Adopt(stateA, envA, codecA, onMsgA),
		Port2: Adopt(stateB, envB, codecB, onMsgB),
	}
}
