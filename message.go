package msgport

// Message is the passive carrier a Post produces: an opaque serialized
// payload plus the buffers that transferred ownership along with it.
// It is movable, not copyable — once handed to a PortState's queue the
// sender has no further access to it.
type Message struct {
	payload            []byte
	transferredBuffers []*TransferableBuffer
	populated          bool
}

// Serialize populates an empty Message via codec. It must be called
// exactly once; a second call returns ErrAlreadyPopulated. transferList
// entries that are not *TransferableBuffer are rejected with
// ErrInvalidTransferObject; entries that are buffers but are not
// currently detachable are silently skipped, not an error. Buffers are
// detached from the sender only after codec.Serialize reports success —
// a failed serialization leaves every buffer in transferList untouched.
func (m *Message) Serialize(env *Environment, codec Codec, value any, transferList []any) error {
	if m.populated {
		return ErrAlreadyPopulated
	}

	accepted := make([]*TransferableBuffer, 0, len(transferList))
	for _, item := range transferList {
		buf, ok := item.(*TransferableBuffer)
		if !ok {
			return ErrInvalidTransferObject
		}
		if buf.Detachable() {
			accepted = append(accepted, buf)
		}
	}

	payload, err := codec.Serialize(env, value, accepted)
	if err != nil {
		if thrower, ok := codec.(HostObjectThrower); ok {
			thrower.OnHostObjectThrow(err.Error())
		}
		return &CloneError{Err: err}
	}

	// Detach each accepted buffer from the sender and re-wrap the moved
	// bytes in a fresh TransferableBuffer: the sender's original buffer
	// is left empty, while the newly-wrapped one travels with the
	// Message and becomes the receiver's view: each accepted buffer is
	// assigned its insertion index as the transfer ID, and is detached
	// from the sender only now that the codec has signaled success.
	moved := make([]*TransferableBuffer, len(accepted))
	for i, buf := range accepted {
		moved[i] = NewTransferableBuffer(buf.detach())
	}

	m.payload = payload
	m.transferredBuffers = moved
	m.populated = true
	return nil
}

// Deserialize consumes the Message's transferred buffers (materializing
// them for env) and reconstructs the carried value via codec.
func (m *Message) Deserialize(env *Environment, codec Codec) (any, error) {
	value, err := codec.Deserialize(env, m.payload, m.transferredBuffers)
	if err != nil {
		return nil, &CloneError{Err: err}
	}
	return value, nil
}

// Payload exposes the already-serialized bytes, for callers that relay a
// Message somewhere other than a sibling PortState's queue (bridge.Peer's
// wire framing).
func (m *Message) Payload() []byte { return m.payload }

// TransferredBuffers exposes the buffers a Message carries.
func (m *Message) TransferredBuffers() []*TransferableBuffer { return m.transferredBuffers }

// NewWireMessage reconstructs an already-populated Message from bytes that
// arrived over a non-PortState transport (bridge.Peer). The payload and
// buffers are assumed to already be in wire form; no codec runs here.
func NewWireMessage(payload []byte, buffers []*TransferableBuffer) Message {
	return Message{payload: payload, transferredBuffers: buffers, populated: true}
}
