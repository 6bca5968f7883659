package core

import "time"

// Clock is the time source of a room. Tests substitute a manual clock.
type Clock interface {
	Now() time.Time
	// AfterFunc runs f in its own goroutine after d. The returned func cancels it.
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// SystemClock is backed by the time package.
var SystemClock Clock = systemClock{}
