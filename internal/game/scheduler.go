package game

import "time"

// Scheduler is the clock and timer source a harness drives engines with.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Stopper
}

// Stopper cancels a pending callback.
type Stopper interface {
	Stop() bool
}

// SystemScheduler uses the wall clock and time.AfterFunc.
type SystemScheduler struct{}

// Now returns time.Now
func (SystemScheduler) Now() time.Time {
	return time.Now()
}

// AfterFunc wraps time.AfterFunc
func (SystemScheduler) AfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}
