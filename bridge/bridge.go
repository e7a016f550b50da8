// Package bridge carries msgport traffic across a process boundary.
//
// A Peer behaves like a sibling Port reached over TCP instead of memory:
// Send serializes a value through the same Codec a local Port would use
// and frames it onto the connection; frames arriving on the connection
// are deserialized and handed to a Handler on the owning Environment's
// loop goroutine, exactly like an inbound Post. A bridge always has
// exactly one peer, so there is no placement lookup, no consistent
// hashing, and no multi-host routing; what's left is framing and a
// dedicated writer goroutine. A read or write error closes the Peer;
// it does not reconnect.
package bridge

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/big-pixel-media/msgport"
)

// dialTimeout bounds the initial TCP connect.
const dialTimeout = 5 * time.Second

// handshakeTimeout bounds the name exchange that follows connect/accept.
const handshakeTimeout = 5 * time.Second

// writeTimeout bounds every frame write.
const writeTimeout = 5 * time.Second

// maxFramePayload rejects frames claiming to be larger than this on
// read, guarding against a runaway or malicious peer.
const maxFramePayload = 16 << 20

// sendBuffer is the capacity of a Peer's outbound channel.
const sendBuffer = 1024

// wireFrame is the gob-encoded body of a frame: a Message's serialized
// payload plus the raw bytes of any buffers it transferred.
type wireFrame struct {
	Payload []byte
	Buffers [][]byte
}

// Peer is one end of a point-to-point bridge connection.
type Peer struct {
	conn  net.Conn
	env   *msgport.Environment
	codec msgport.Codec
	onMsg msgport.Handler

	sendCh chan msgport.Message

	mu     sync.Mutex
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// Dial connects to addr and exchanges handshakes. Values passed to Send
// are serialized with codec; frames arriving from the remote side are
// deserialized with codec and handed to onMsg on env's loop goroutine.
func Dial(addr, localName string, env *msgport.Environment, codec msgport.Codec, onMsg msgport.Handler) (*Peer, error) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("bridge: dial %s: %w", addr, err)
	}
	conn.SetDeadline(time.Now().Add(handshakeTimeout))
	if err := writeHandshake(conn, localName); err != nil {
		conn.Close()
		return nil, fmt.Errorf("bridge: handshake write: %w", err)
	}
	remote, err := readHandshake(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("bridge: handshake read: %w", err)
	}
	conn.SetDeadline(time.Time{})
	slog.Info("bridge peer connected", "direction", "outbound", "remote", remote, "addr", addr)
	return newPeer(conn, env, codec, onMsg), nil
}

// Listener accepts inbound bridge connections.
type Listener struct {
	ln        net.Listener
	localName string
	env       *msgport.Environment
	codec     msgport.Codec
	onMsg     msgport.Handler
}

// Listen starts accepting bridge connections on addr. Call Accept in a
// loop to receive Peers, one per inbound connection.
func Listen(addr, localName string, env *msgport.Environment, codec msgport.Codec, onMsg msgport.Handler) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("bridge: listen %s: %w", addr, err)
	}
	return &Listener{ln: ln, localName: localName, env: env, codec: codec, onMsg: onMsg}, nil
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() string { return l.ln.Addr().String() }

// Accept blocks for the next inbound connection and completes its
// handshake. Returns an error once the listener is closed.
func (l *Listener) Accept() (*Peer, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	conn.SetDeadline(time.Now().Add(handshakeTimeout))
	remote, err := readHandshake(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("bridge: handshake read: %w", err)
	}
	if err := writeHandshake(conn, l.localName); err != nil {
		conn.Close()
		return nil, fmt.Errorf("bridge: handshake write: %w", err)
	}
	conn.SetDeadline(time.Time{})
	slog.Info("bridge peer connected", "direction", "inbound", "remote", remote)
	return newPeer(conn, l.env, l.codec, l.onMsg), nil
}

// Close stops accepting new connections.
func (l *Listener) Close() error { return l.ln.Close() }

func newPeer(conn net.Conn, env *msgport.Environment, codec msgport.Codec, onMsg msgport.Handler) *Peer {
	p := &Peer{
		conn:   conn,
		env:    env,
		codec:  codec,
		onMsg:  onMsg,
		sendCh: make(chan msgport.Message, sendBuffer),
		done:   make(chan struct{}),
	}
	p.wg.Add(2)
	go p.writeLoop()
	go p.readLoop()
	return p
}

// Send serializes value through the Peer's Codec and relays it to the
// remote side, mirroring Port.Post's signature and behavior: transferList
// buffers are detached on success, and an error here means the value
// never left the local process.
func (p *Peer) Send(value any, transferList []any) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("bridge: peer closed")
	}
	p.mu.Unlock()

	var msg msgport.Message
	if err := msg.Serialize(p.env, p.codec, value, transferList); err != nil {
		return err
	}

	select {
	case p.sendCh <- msg:
		return nil
	case <-p.done:
		return fmt.Errorf("bridge: peer closed")
	}
}

// Close tears down the connection and stops both goroutines. Idempotent.
func (p *Peer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.done)
	err := p.conn.Close()
	p.wg.Wait()
	return err
}

func (p *Peer) writeLoop() {
	defer p.wg.Done()
	for {
		select {
		case msg := <-p.sendCh:
			if err := writeFrame(p.conn, msg); err != nil {
				slog.Warn("bridge write error", "error", err)
				p.Close()
				return
			}
		case <-p.done:
			return
		}
	}
}

func (p *Peer) readLoop() {
	defer p.wg.Done()
	r := bufio.NewReaderSize(p.conn, 65536)
	for {
		msg, err := readFrame(r)
		if err != nil {
			select {
			case <-p.done:
			default:
				slog.Warn("bridge read error", "error", err)
				p.Close()
			}
			return
		}
		if p.onMsg == nil {
			continue
		}
		env, codec, handler := p.env, p.codec, p.onMsg
		env.Schedule(func() {
			value, derr := msg.Deserialize(env, codec)
			handler(value, derr)
		})
	}
}

func writeFrame(w io.Writer, msg msgport.Message) error {
	buffers := msg.TransferredBuffers()
	wf := wireFrame{Payload: msg.Payload(), Buffers: make([][]byte, len(buffers))}
	for i, b := range buffers {
		wf.Buffers[i] = b.Bytes()
	}

	var body bytes.Buffer
	if err := gob.NewEncoder(&body).Encode(&wf); err != nil {
		return fmt.Errorf("bridge encode: %w", err)
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(body.Len()))
	if conn, ok := w.(net.Conn); ok {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	}
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(body.Bytes())
	return err
}

func readFrame(r io.Reader) (msgport.Message, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return msgport.Message{}, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 || n > maxFramePayload {
		return msgport.Message{}, fmt.Errorf("bridge: frame size %d out of range", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return msgport.Message{}, fmt.Errorf("bridge: incomplete frame: %w", err)
	}

	var wf wireFrame
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&wf); err != nil {
		return msgport.Message{}, fmt.Errorf("bridge decode: %w", err)
	}

	buffers := make([]*msgport.TransferableBuffer, len(wf.Buffers))
	for i, b := range wf.Buffers {
		buffers[i] = msgport.NewTransferableBuffer(b)
	}
	return msgport.NewWireMessage(wf.Payload, buffers), nil
}

// --- handshake ---
//
// [2-byte length][name bytes]. No tie-breaking, no advertised listen
// address: a bridge peer is a single dial-or-accept connection, not a
// reusable entry in a host-ID-keyed peer map, so there is nothing to
// reconnect to and nothing to deduplicate.

func writeHandshake(w io.Writer, name string) error {
	b := []byte(name)
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(b)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readHandshake(r io.Reader) (string, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", err
	}
	n := binary.BigEndian.Uint16(lenBuf[:])
	if n > 256 {
		return "", fmt.Errorf("bridge: handshake name too long (%d)", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
