package service

import "time"

// Clock is the time source used for token stamps, audit timestamps and the
// "scheduled in the future" check.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }
