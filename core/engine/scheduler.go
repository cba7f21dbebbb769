package engine

import "time"

// Scheduler runs fn once after d. Delay steps use it to resume a flow.
type Scheduler interface {
	After(d time.Duration, fn func())
}

// TimerScheduler schedules with time.AfterFunc. Pending delays are lost on restart.
type TimerScheduler struct{}

// After implements Scheduler.
func (TimerScheduler) After(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}
