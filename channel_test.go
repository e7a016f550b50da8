package msgport

import (
	"testing"
	"time"
)

func TestNewChannel_PortsAreEntangled(t *testing.T) {
	env := NewEnvironment("channel-test")
	defer env.Stop()

	ch := NewChannel(env, GobCodec{}, func(any, error) {}, env, GobCodec{}, func(any, error) {})
	if ch.Port1.state.sibling != ch.Port2.state {
		t.Error("Port1's state does not point at Port2's state")
	}
	if ch.Port2.state.sibling != ch.Port1.state {
		t.Error("Port2's state does not point at Port1's state")
	}
}

func TestNewChannel_BidirectionalDelivery(t *testing.T) {
	env := NewEnvironment("channel-test")
	defer env.Stop()

	toPort1 := make(chan any, 1)
	toPort2 := make(chan any, 1)
	ch := NewChannel(env,
		GobCodec{}, func(v any, err error) { toPort1 <- v },
		env, GobCodec{}, func(v any, err error) { toPort2 <- v },
	)
	ch.Port1.Start()
	ch.Port2.Start()

	if err := ch.Port1.Post("to-2", nil); err != nil {
		t.Fatalf("Post from Port1: %v", err)
	}
	if err := ch.Port2.Post("to-1", nil); err != nil {
		t.Fatalf("Post from Port2: %v", err)
	}

	select {
	case v := <-toPort2:
		if v != "to-2" {
			t.Errorf("Port2 received %v, want to-2", v)
		}
	case <-time.After(testTimeout):
		t.Fatal("Port2 never received its message")
	}

	select {
	case v := <-toPort1:
		if v != "to-1" {
			t.Errorf("Port1 received %v, want to-1", v)
		}
	case <-time.After(testTimeout):
		t.Fatal("Port1 never received its message")
	}
}

func TestNewChannel_DistinctEnvironments(t *testing.T) {
	envA := NewEnvironment("channel-test-a")
	envB := NewEnvironment("channel-test-b")
	defer envA.Stop()
	defer envB.Stop()

	received := make(chan any, 1)
	ch := NewChannel(envA, GobCodec{}, func(any, error) {}, envB, GobCodec{}, func(v any, err error) {
		received <- v
	})
	ch.Port1.Start()
	ch.Port2.Start()

	if err := ch.Port1.Post("cross-env", nil); err != nil {
		t.Fatalf("Post: %v", err)
	}

	select {
	case v := <-received:
		if v != "cross-env" {
			t.Errorf("received %v, want cross-env", v)
		}
	case <-time.After(testTimeout):
		t.Fatal("message not delivered across environments")
	}
}
