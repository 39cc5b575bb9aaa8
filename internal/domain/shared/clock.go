package shared

import "time"

// Clock abstracts the current time so expiry logic can be driven in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time {
	return time.Now()
}

// NewSystemClock returns the wall clock.
func NewSystemClock() Clock {
	return SystemClock{}
}
