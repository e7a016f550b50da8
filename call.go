package msgport

import (
	"context"
	"encoding/gob"
	"fmt"
	"sync"
	"sync/atomic"
)

func init() {
	gob.Register(CallRequest{})
	gob.Register(CallReply{})
}

// ErrCallTimeout is returned by Caller.Call when no CallReply with the
// matching ID arrives before ctx is done.
var ErrCallTimeout = fmt.Errorf("msgport: call timeout")

// CallRequest wraps an outbound value with a correlation ID so the
// receiving side can address a reply back to the right waiter. Both
// CallRequest and CallReply must be registered with gob.Register if
// GobCodec is in use, same as any other concrete type carried through
// a Port.
type CallRequest struct {
	ID    int64
	Value any
}

// CallReply addresses a response back to the Caller that issued ID.
// ErrMsg is populated instead of Err (errors don't gob-encode) when the
// handler side wants to propagate a failure.
type CallReply struct {
	ID     int64
	Value  any
	ErrMsg string
}

const callShards = 16

type callShard struct {
	mu sync.Mutex
	m  map[int64]chan CallReply
}

// Caller layers request/reply semantics on top of a Port's fire-and-
// forget Post, using a sharded correlation map the same way a larger
// actor-style request manager would, generalized from Ref-keyed actor
// requests to port-correlation-ID-keyed replies and from a buffered-
// channel pool to a plain per-call channel (calls are not hot enough
// here to warrant pooling the way per-actor inbound traffic was).
type Caller struct {
	port   *Port
	shards [callShards]callShard
	nextID atomic.Int64
}

// NewCaller wraps port. The caller must arrange for the other side's
// Handler to post a CallReply back (see Responder) and for this port's
// own Handler to call Resolve on any CallReply it receives — Caller
// does not intercept the Port's Handler itself.
func NewCaller(port *Port) *Caller {
	c := &Caller{port: port}
	for i := range c.shards {
		c.shards[i].m = make(map[int64]chan CallReply)
	}
	return c
}

func (c *Caller) shard(id int64) *callShard {
	return &c.shards[id&(callShards-1)]
}

// Call posts value wrapped in a CallRequest and blocks until a matching
// CallReply is resolved or ctx is done. transferList is forwarded to
// Post unchanged.
func (c *Caller) Call(ctx context.Context, value any, transferList []any) (any, error) {
	if ctx == nil {
		return nil, ErrMissingArgs
	}

	id := c.nextID.Add(1)
	replyCh := make(chan CallReply, 1)

	s := c.shard(id)
	s.mu.Lock()
	s.m[id] = replyCh
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.m, id)
		s.mu.Unlock()
	}()

	c.port.env.metrics.CallsTotal.Add(1)
	if err := c.port.Post(CallRequest{ID: id, Value: value}, transferList); err != nil {
		return nil, err
	}

	select {
	case reply := <-replyCh:
		if reply.ErrMsg != "" {
			return nil, fmt.Errorf("msgport: call failed: %s", reply.ErrMsg)
		}
		return reply.Value, nil
	case <-ctx.Done():
		c.port.env.metrics.CallsTimedOut.Add(1)
		return nil, ErrCallTimeout
	}
}

// Resolve delivers reply to its waiter, if still pending. Returns false
// if no Call is waiting on reply.ID (already timed out, or a stray
// reply). Call this from the owning Port's Handler whenever a value
// deserializes to a CallReply.
func (c *Caller) Resolve(reply CallReply) bool {
	s := c.shard(reply.ID)
	s.mu.Lock()
	ch, ok := s.m[reply.ID]
	if ok {
		delete(s.m, reply.ID)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	ch <- reply
	return true
}

// Responder posts a CallReply addressed at req back through port,
// matching the ID the peer's Caller is waiting on.
func Responder(port *Port, req CallRequest, value any, err error) error {
	reply := CallReply{ID: req.ID, Value: value}
	if err != nil {
		reply.ErrMsg = err.Error()
	}
	return port.Post(reply, nil)
}
