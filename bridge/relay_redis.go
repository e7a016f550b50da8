package bridge

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/gob"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/big-pixel-media/msgport"
)

// RedisRelay is an alternative to Peer for two processes that cannot
// reach each other directly (no routable address, behind separate NATs):
// it republishes one side of a channel onto a Redis pub/sub topic
// instead of a TCP connection.
type RedisRelay struct {
	client *redis.Client
	codec  msgport.Codec
	env    *msgport.Environment
	sendTopic string
	pubsub *redis.PubSub

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRedisRelay publishes Send values onto sendTopic and delivers values
// published on recvTopic to onMsg, on env's loop goroutine. The caller
// owns client's lifecycle (NewRedisRelay never calls client.Close).
func NewRedisRelay(client *redis.Client, sendTopic, recvTopic string, env *msgport.Environment, codec msgport.Codec, onMsg msgport.Handler) (*RedisRelay, error) {
	ctx, cancel := context.WithCancel(context.Background())
	pubsub := client.Subscribe(ctx, recvTopic)
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("bridge: redis subscribe %s: %w", recvTopic, err)
	}

	r := &RedisRelay{
		client:    client,
		codec:     codec,
		env:       env,
		sendTopic: sendTopic,
		pubsub:    pubsub,
		ctx:       ctx,
		cancel:    cancel,
	}

	if onMsg != nil {
		r.wg.Add(1)
		go r.readLoop(onMsg)
	}
	return r, nil
}

// Send serializes value through the Codec and publishes it to sendTopic,
// mirroring Port.Post's signature.
func (r *RedisRelay) Send(value any, transferList []any) error {
	var msg msgport.Message
	if err := msg.Serialize(r.env, r.codec, value, transferList); err != nil {
		return err
	}

	encoded, err := encodeRelayFrame(msg)
	if err != nil {
		return err
	}
	return r.client.Publish(r.ctx, r.sendTopic, encoded).Err()
}

// Close stops the subscription and the read loop. Idempotent.
func (r *RedisRelay) Close() error {
	r.cancel()
	err := r.pubsub.Close()
	r.wg.Wait()
	return err
}

func (r *RedisRelay) readLoop(onMsg msgport.Handler) {
	defer r.wg.Done()
	ch := r.pubsub.Channel()
	for {
		select {
		case <-r.ctx.Done():
			return
		case payload, ok := <-ch:
			if !ok {
				return
			}
			msg, err := decodeRelayFrame(payload.Payload)
			if err != nil {
				slog.Warn("bridge redis decode error", "error", err)
				continue
			}
			env, codec := r.env, r.codec
			env.Schedule(func() {
				value, derr := msg.Deserialize(env, codec)
				onMsg(value, derr)
			})
		}
	}
}

// encodeRelayFrame and decodeRelayFrame reuse the same wireFrame gob
// shape bridge.go frames over TCP, base64-wrapped since Redis pub/sub
// payloads are conventionally treated as text.
func encodeRelayFrame(msg msgport.Message) (string, error) {
	buffers := msg.TransferredBuffers()
	wf := wireFrame{Payload: msg.Payload(), Buffers: make([][]byte, len(buffers))}
	for i, b := range buffers {
		wf.Buffers[i] = b.Bytes()
	}

	var body bytes.Buffer
	if err := gob.NewEncoder(&body).Encode(&wf); err != nil {
		return "", fmt.Errorf("bridge redis encode: %w", err)
	}
	return base64.StdEncoding.EncodeToString(body.Bytes()), nil
}

func decodeRelayFrame(payload string) (msgport.Message, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return msgport.Message{}, fmt.Errorf("bridge redis decode: %w", err)
	}

	var wf wireFrame
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&wf); err != nil {
		return msgport.Message{}, fmt.Errorf("bridge redis decode: %w", err)
	}

	buffers := make([]*msgport.TransferableBuffer, len(wf.Buffers))
	for i, b := range wf.Buffers {
		buffers[i] = msgport.NewTransferableBuffer(b)
	}
	return msgport.NewWireMessage(wf.Payload, buffers), nil
}
