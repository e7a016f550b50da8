package msgport

// Codec is the pluggable serializer/deserializer consumed by Message.
// It is treated as an external collaborator: this package ships one
// concrete implementation, GobCodec, but a Channel or Port never
// requires it — callers may supply any Codec.
type Codec interface {
	// Serialize turns value into an opaque byte payload. transferred is
	// the ordered list of buffers Message accepted for transfer; their
	// position in the slice is their transfer ID. A codec that finds one
	// of these exact buffers while walking value should embed its index
	// in the payload instead of copying its contents — the Go analogue
	// of V8's serializer.TransferArrayBuffer(id, ab).
	Serialize(env *Environment, value any, transferred []*TransferableBuffer) ([]byte, error)

	// Deserialize reconstructs a value from payload. transferred[i] is
	// the buffer that was registered for transfer ID i, already
	// materialized for the receiving Environment — the codec resolves
	// embedded IDs against this slice.
	Deserialize(env *Environment, payload []byte, transferred []*TransferableBuffer) (any, error)
}

// HostObjectThrower is an optional Codec extension: when a codec that
// implements it returns an error from Serialize, Message.Serialize calls
// its OnHostObjectThrow with the error text before returning the error
// wrapped in a CloneError.
type HostObjectThrower interface {
	OnHostObjectThrow(message string)
}
