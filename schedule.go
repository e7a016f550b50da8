package msgport

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ScheduleID identifies a pending deferred or cron post.
type ScheduleID int64

type pendingSchedule struct {
	id       ScheduleID
	port     *Port
	value    any
	cron     *cronSchedule // nil for one-shot
	nextFire time.Time
	oneShot  bool
}

// Scheduler delivers deferred and cron-recurring posts to a Port on
// behalf of an Environment. It uses a single timer that sleeps until
// the earliest pending nextFire rather than a timer per entry; it
// carries no state across process restarts, so there is no persistence
// or overdue-recovery pass to run on startup.
type Scheduler struct {
	env *Environment

	mu        sync.Mutex
	schedules map[ScheduleID]*pendingSchedule
	nextID    atomic.Int64
	timer     *time.Timer
	notify    chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
}

// NewScheduler starts a Scheduler's run loop immediately.
func NewScheduler(env *Environment) *Scheduler {
	s := &Scheduler{
		env:       env,
		schedules: make(map[ScheduleID]*pendingSchedule),
		notify:    make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Scheduler) run() {
	s.timer = time.NewTimer(time.Hour)
	s.timer.Stop()

	for {
		dur := s.timeUntilNext()
		if dur > 0 {
			s.timer.Reset(dur)
		} else {
			s.timer.Reset(time.Hour)
		}

		select {
		case <-s.done:
			s.timer.Stop()
			return
		case <-s.notify:
			s.timer.Stop()
			select {
			case <-s.timer.C:
			default:
			}
		case <-s.timer.C:
			s.fireDue()
		}
	}
}

// Stop halts the run loop. Pending schedules are discarded. Idempotent.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *Scheduler) poke() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// PostAfter schedules value to be posted to port after delay.
func (s *Scheduler) PostAfter(port *Port, value any, delay time.Duration) (ScheduleID, error) {
	if delay <= 0 {
		return 0, fmt.Errorf("msgport: delay must be positive")
	}
	return s.add(port, value, nil, time.Now().Add(delay), true), nil
}

// PostCron schedules value to be posted to port on a recurring basis
// per the 5-field cron expression "minute hour day-of-month month day-of-week".
func (s *Scheduler) PostCron(port *Port, value any, cronExpr string) (ScheduleID, error) {
	cs, err := parseCron(cronExpr)
	if err != nil {
		return 0, err
	}
	nextFire := cs.next(time.Now())
	if nextFire.IsZero() {
		return 0, fmt.Errorf("msgport: cron expression %q has no valid fire time", cronExpr)
	}
	return s.add(port, value, cs, nextFire, false), nil
}

func (s *Scheduler) add(port *Port, value any, cron *cronSchedule, nextFire time.Time, oneShot bool) ScheduleID {
	id := ScheduleID(s.nextID.Add(1))

	s.mu.Lock()
	s.schedules[id] = &pendingSchedule{
		id:       id,
		port:     port,
		value:    value,
		cron:     cron,
		nextFire: nextFire,
		oneShot:  oneShot,
	}
	s.mu.Unlock()

	s.poke()
	return id
}

// Cancel removes a pending schedule by ID. A no-op if id has already fired.
func (s *Scheduler) Cancel(id ScheduleID) {
	s.mu.Lock()
	_, ok := s.schedules[id]
	if ok {
		delete(s.schedules, id)
	}
	s.mu.Unlock()

	if ok {
		s.env.metrics.SchedulesCancelled.Add(1)
		s.poke()
	}
}

// Count returns the number of pending schedules.
func (s *Scheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.schedules)
}

func (s *Scheduler) timeUntilNext() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.schedules) == 0 {
		return 0
	}

	var earliest time.Time
	for _, sched := range s.schedules {
		if earliest.IsZero() || sched.nextFire.Before(earliest) {
			earliest = sched.nextFire
		}
	}

	// An overdue entry still needs the timer to fire right away; 0 is
	// reserved for "nothing pending".
	dur := time.Until(earliest)
	if dur <= 0 {
		dur = time.Nanosecond
	}
	return dur
}

func (s *Scheduler) fireDue() {
	now := time.Now()

	var toFire []*pendingSchedule

	s.mu.Lock()
	for id, sched := range s.schedules {
		if !sched.nextFire.After(now) {
			toFire = append(toFire, sched)
			if sched.oneShot {
				delete(s.schedules, id)
			} else {
				sched.nextFire = sched.cron.next(now)
				if sched.nextFire.IsZero() {
					delete(s.schedules, id)
				}
			}
		}
	}
	s.mu.Unlock()

	for _, sched := range toFire {
		sched.port.Post(sched.value, nil)
		s.env.metrics.SchedulesFired.Add(1)
	}
}
