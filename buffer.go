package msgport

import "sync"

// TransferableBuffer is the Go analogue of a detachable ArrayBuffer: a
// byte buffer whose ownership can move from one side of a Post to the
// other without copying. Once detached, the sender's view of the buffer
// is truncated to zero length.
type TransferableBuffer struct {
	mu       sync.Mutex
	data     []byte
	detached bool
	external bool // already owned by something outside this layer
}

// NewTransferableBuffer wraps data for a potential future transfer.
func NewTransferableBuffer(data []byte) *TransferableBuffer {
	return &TransferableBuffer{data: data}
}

// Detachable reports whether this buffer is still eligible for transfer:
// it has not already been detached and is not externally owned. This is
// the Go stand-in for V8's IsNeuterable()/!IsExternal() checks.
func (b *TransferableBuffer) Detachable() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.detached && !b.external
}

// Bytes returns the current contents. After detachment this is empty.
func (b *TransferableBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data
}

// Len reports the current length, 0 once detached.
func (b *TransferableBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// detach takes ownership of the bytes, leaving the sender with an empty
// view. Called only after the codec has reported successful serialization;
// a failed serialization must never leave the sender's buffers touched.
func (b *TransferableBuffer) detach() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	data := b.data
	b.data = nil
	b.detached = true
	return data
}

// MarkExternal marks a buffer as already owned elsewhere, making it
// non-detachable. Used by codecs wrapping values whose buffers came from
// outside this package (e.g. a slice aliasing caller-retained memory).
func (b *TransferableBuffer) MarkExternal() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.external = true
}
