package msgport

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestEnvironment_ScheduleRunsOnLoopGoroutine(t *testing.T) {
	env := NewEnvironment("env-test")
	defer env.Stop()

	done := make(chan struct{})
	env.Schedule(func() { close(done) })

	select {
	case <-done:
	case <-time.After(testTimeout):
		t.Fatal("scheduled job never ran")
	}
}

func TestEnvironment_ScheduleRunsJobsSerially(t *testing.T) {
	env := NewEnvironment("env-test")
	defer env.Stop()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		n := i
		env.Schedule(func() {
			defer wg.Done()
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
		})
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 50 {
		t.Fatalf("ran %d jobs, want 50", len(order))
	}
	for i, n := range order {
		if i != n {
			t.Fatalf("jobs ran out of submission order: order[%d] = %d", i, n)
		}
	}
}

func TestEnvironment_CanDispatchTrueBeforeStop(t *testing.T) {
	env := NewEnvironment("env-test")
	defer env.Stop()

	if !env.CanDispatch() {
		t.Error("CanDispatch should be true before Stop")
	}
}

func TestEnvironment_CanDispatchFalseAfterStop(t *testing.T) {
	env := NewEnvironment("env-test")
	env.Stop()

	if env.CanDispatch() {
		t.Error("CanDispatch should be false after Stop")
	}
}

func TestEnvironment_StopIsIdempotent(t *testing.T) {
	env := NewEnvironment("env-test")
	env.Stop()
	env.Stop() // must not panic or deadlock
}

func TestEnvironment_ScheduleAfterStopIsNoOp(t *testing.T) {
	env := NewEnvironment("env-test")
	env.Stop()

	var ran atomic.Bool
	env.Schedule(func() { ran.Store(true) })

	time.Sleep(20 * time.Millisecond)
	if ran.Load() {
		t.Error("job scheduled after Stop should not run")
	}
}

func TestEnvironment_StringDefaultsWhenNameEmpty(t *testing.T) {
	env := NewEnvironment("")
	defer env.Stop()
	if env.String() != "environment" {
		t.Errorf("String() = %q, want environment", env.String())
	}
}

func TestEnvironment_StringReturnsName(t *testing.T) {
	env := NewEnvironment("main")
	defer env.Stop()
	if env.String() != "main" {
		t.Errorf("String() = %q, want main", env.String())
	}
}
