package msgport

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// Envelope is a value wrapper that opts into zero-copy buffer transfer
// with GobCodec. Posting a plain value encodes it with gob as-is; posting
// an Envelope lets the sender name the buffers it wants considered for
// transfer alongside the value.
type Envelope struct {
	Value   any
	Buffers []*TransferableBuffer
}

// wireBuffer is the on-the-wire representation of one Envelope buffer:
// either a reference to a transfer ID (zero-copy) or inline bytes
// (the copy fallback for a non-detachable buffer).
type wireBuffer struct {
	Transfer bool
	ID       int
	Data     []byte
}

type wireEnvelope struct {
	IsEnvelope bool
	Value      any
	Buffers    []wireBuffer
}

// GobCodec is the default Codec, built on encoding/gob the same way
// the bridge subpackage's wire framing uses it. Concrete types carried inside an interface{} value must
// be registered with gob.Register before use, the same requirement gob
// itself imposes everywhere else.
type GobCodec struct{}

func (GobCodec) Serialize(_ *Environment, value any, transferred []*TransferableBuffer) ([]byte, error) {
	we := wireEnvelope{}

	env, isEnvelope := value.(Envelope)
	if isEnvelope {
		we.IsEnvelope = true
		we.Value = env.Value
		we.Buffers = make([]wireBuffer, len(env.Buffers))
		for i, buf := range env.Buffers {
			if id := transferIndex(transferred, buf); id >= 0 {
				we.Buffers[i] = wireBuffer{Transfer: true, ID: id}
			} else {
				data := buf.Bytes()
				we.Buffers[i] = wireBuffer{Data: append([]byte(nil), data...)}
			}
		}
	} else {
		we.Value = value
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&we); err != nil {
		return nil, fmt.Errorf("gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (GobCodec) Deserialize(_ *Environment, payload []byte, transferred []*TransferableBuffer) (any, error) {
	var we wireEnvelope
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&we); err != nil {
		return nil, fmt.Errorf("gob decode: %w", err)
	}

	if !we.IsEnvelope {
		return we.Value, nil
	}

	buffers := make([]*TransferableBuffer, len(we.Buffers))
	for i, wb := range we.Buffers {
		if wb.Transfer {
			if wb.ID < 0 || wb.ID >= len(transferred) {
				return nil, fmt.Errorf("gob decode: transfer id %d out of range", wb.ID)
			}
			buffers[i] = transferred[wb.ID]
		} else {
			buffers[i] = NewTransferableBuffer(wb.Data)
		}
	}
	return Envelope{Value: we.Value, Buffers: buffers}, nil
}

func transferIndex(transferred []*TransferableBuffer, target *TransferableBuffer) int {
	for i, b := range transferred {
		if b == target {
			return i
		}
	}
	return -1
}
