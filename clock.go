package msgport

import (
	"sync/atomic"
	"time"
)

// coarseNow is a cached Unix timestamp updated every 500ms by a background
// goroutine. Used in place of time.Now() where second-level resolution
// is enough (Environment.RecordEvent's timestamps) to avoid a syscall
// per call.
var coarseNow atomic.Int64

func init() {
	coarseNow.Store(time.Now().Unix())
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		for range ticker.C {
			coarseNow.Store(time.Now().Unix())
		}
	}()
}

// now returns the cached coarse timestamp, for callers on a path hot
// enough to care about the per-call syscall time.Now() makes.
func now() time.Time {
	return time.Unix(coarseNow.Load(), 0)
}
