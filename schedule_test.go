package msgport

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// collector records all values delivered to a Port's Handler.
type collector struct {
	mu      sync.Mutex
	values  []any
	got     chan struct{}
	gotOnce sync.Once
}

func (c *collector) handle(v any, err error) {
	if err != nil {
		return
	}
	c.mu.Lock()
	c.values = append(c.values, v)
	c.mu.Unlock()
	if c.got != nil {
		c.gotOnce.Do(func() { close(c.got) })
	}
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.values)
}

func TestScheduler_PostAfterFiresOnce(t *testing.T) {
	env := NewEnvironment("a")
	defer env.Stop()

	recv := &collector{got: make(chan struct{})}
	ch := NewChannel(env, GobCodec{}, func(any, error) {}, env, GobCodec{}, recv.handle)
	ch.Port2.Start()

	sched := NewScheduler(env)
	defer sched.Stop()

	id, err := sched.PostAfter(ch.Port1, "ping", 50*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if id == 0 {
		t.Fatal("expected non-zero schedule ID")
	}

	select {
	case <-recv.got:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for scheduled message")
	}

	time.Sleep(100 * time.Millisecond)
	if n := recv.count(); n != 1 {
		t.Fatalf("expected 1 message, got %d", n)
	}
	if env.Metrics().SchedulesFired.Load() != 1 {
		t.Fatalf("expected SchedulesFired=1, got %d", env.Metrics().SchedulesFired.Load())
	}
}

func TestScheduler_PostAfterInvalidDelay(t *testing.T) {
	env := NewEnvironment("a")
	defer env.Stop()
	ch := NewChannel(env, GobCodec{}, func(any, error) {}, env, GobCodec{}, func(any, error) {})
	sched := NewScheduler(env)
	defer sched.Stop()

	if _, err := sched.PostAfter(ch.Port1, "ping", 0); err == nil {
		t.Fatal("expected error for zero delay")
	}
	if _, err := sched.PostAfter(ch.Port1, "ping", -time.Second); err == nil {
		t.Fatal("expected error for negative delay")
	}
}

func TestScheduler_Cancel(t *testing.T) {
	var received atomic.Bool
	env := NewEnvironment("a")
	defer env.Stop()

	ch := NewChannel(env, GobCodec{}, func(any, error) {}, env, GobCodec{}, func(v any, err error) {
		received.Store(true)
	})
	ch.Port2.Start()

	sched := NewScheduler(env)
	defer sched.Stop()

	id, err := sched.PostAfter(ch.Port1, "ping", 200*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}

	sched.Cancel(id)
	sched.Cancel(id) // double cancel is a no-op

	time.Sleep(400 * time.Millisecond)
	if received.Load() {
		t.Fatal("message should not have been delivered after cancel")
	}
	if env.Metrics().SchedulesCancelled.Load() != 1 {
		t.Fatalf("expected SchedulesCancelled=1, got %d", env.Metrics().SchedulesCancelled.Load())
	}
}

func TestScheduler_PostCronRecurring(t *testing.T) {
	env := NewEnvironment("a")
	defer env.Stop()
	ch := NewChannel(env, GobCodec{}, func(any, error) {}, env, GobCodec{}, func(any, error) {})
	sched := NewScheduler(env)
	defer sched.Stop()

	id, err := sched.PostCron(ch.Port1, "tick", "* * * * *")
	if err != nil {
		t.Fatal(err)
	}
	if id == 0 {
		t.Fatal("expected non-zero schedule ID")
	}
	if sched.Count() != 1 {
		t.Fatalf("expected 1 pending schedule, got %d", sched.Count())
	}

	sched.Cancel(id)
	if sched.Count() != 0 {
		t.Fatalf("expected 0 pending schedules after cancel, got %d", sched.Count())
	}
}

func TestScheduler_PostCronInvalidExpression(t *testing.T) {
	env := NewEnvironment("a")
	defer env.Stop()
	ch := NewChannel(env, GobCodec{}, func(any, error) {}, env, GobCodec{}, func(any, error) {})
	sched := NewScheduler(env)
	defer sched.Stop()

	if _, err := sched.PostCron(ch.Port1, "tick", "bad expr"); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestScheduler_MultiplePostAfter(t *testing.T) {
	env := NewEnvironment("a")
	defer env.Stop()
	recv := &collector{}
	ch := NewChannel(env, GobCodec{}, func(any, error) {}, env, GobCodec{}, recv.handle)
	ch.Port2.Start()

	sched := NewScheduler(env)
	defer sched.Stop()

	sched.PostAfter(ch.Port1, "first", 50*time.Millisecond)
	sched.PostAfter(ch.Port1, "second", 100*time.Millisecond)

	time.Sleep(300 * time.Millisecond)

	if n := recv.count(); n != 2 {
		t.Fatalf("expected 2 messages, got %d", n)
	}
}
