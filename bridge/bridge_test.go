package bridge

import (
	"sync"
	"testing"
	"time"

	"github.com/big-pixel-media/msgport"
)

func TestBridge_SendAndReceive(t *testing.T) {
	envA := msgport.NewEnvironment("a")
	envB := msgport.NewEnvironment("b")
	defer envA.Stop()
	defer envB.Stop()

	received := make(chan any, 1)
	ln, err := Listen("127.0.0.1:0", "b", envB, msgport.GobCodec{}, func(value any, err error) {
		if err != nil {
			t.Errorf("inbound deserialize error: %v", err)
			return
		}
		received <- value
	})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	var serverPeer *Peer
	acceptDone := make(chan struct{})
	go func() {
		defer close(acceptDone)
		p, err := ln.Accept()
		if err != nil {
			t.Errorf("Accept: %v", err)
			return
		}
		serverPeer = p
	}()

	clientPeer, err := Dial(ln.Addr(), "a", envA, msgport.GobCodec{}, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer clientPeer.Close()

	<-acceptDone
	if serverPeer == nil {
		t.Fatal("server never accepted")
	}
	defer serverPeer.Close()

	if err := clientPeer.Send("hello across the wire", nil); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case got := <-received:
		if got != "hello across the wire" {
			t.Errorf("got %v, want hello across the wire", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestBridge_Bidirectional(t *testing.T) {
	envA := msgport.NewEnvironment("a")
	envB := msgport.NewEnvironment("b")
	defer envA.Stop()
	defer envB.Stop()

	var mu sync.Mutex
	var gotOnB, gotOnA []string

	ln, err := Listen("127.0.0.1:0", "b", envB, msgport.GobCodec{}, func(value any, err error) {
		mu.Lock()
		gotOnB = append(gotOnB, value.(string))
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	serverReady := make(chan *Peer, 1)
	go func() {
		p, err := ln.Accept()
		if err != nil {
			t.Errorf("Accept: %v", err)
			return
		}
		serverReady <- p
	}()

	clientPeer, err := Dial(ln.Addr(), "a", envA, msgport.GobCodec{}, func(value any, err error) {
		mu.Lock()
		gotOnA = append(gotOnA, value.(string))
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer clientPeer.Close()

	serverPeer := <-serverReady
	defer serverPeer.Close()

	if err := clientPeer.Send("ping", nil); err != nil {
		t.Fatalf("client Send: %v", err)
	}
	if err := serverPeer.Send("pong", nil); err != nil {
		t.Fatalf("server Send: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		done := len(gotOnA) == 1 && len(gotOnB) == 1
		mu.Unlock()
		if done {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out: gotOnA=%v gotOnB=%v", gotOnA, gotOnB)
		case <-time.After(10 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if gotOnB[0] != "ping" {
		t.Errorf("gotOnB[0] = %q, want ping", gotOnB[0])
	}
	if gotOnA[0] != "pong" {
		t.Errorf("gotOnA[0] = %q, want pong", gotOnA[0])
	}
}

func TestBridge_CloseStopsDelivery(t *testing.T) {
	env := msgport.NewEnvironment("a")
	defer env.Stop()

	ln, err := Listen("127.0.0.1:0", "b", env, msgport.GobCodec{}, func(any, error) {})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	acceptDone := make(chan *Peer, 1)
	go func() {
		p, _ := ln.Accept()
		acceptDone <- p
	}()

	clientPeer, err := Dial(ln.Addr(), "a", env, msgport.GobCodec{}, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	serverPeer := <-acceptDone

	if err := clientPeer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := clientPeer.Send("too late", nil); err == nil {
		t.Error("expected error sending on a closed peer")
	}
	serverPeer.Close()
}
