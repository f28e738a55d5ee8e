// Package timeutil provides the injectable clock the engine derives auction
// state from. Everything time-governed takes a Clock so tests pin "now"
// without any wall-clock mocking.
package timeutil

import "time"

// Clock returns the current time. Production code uses UTC(); tests supply
// a fixed function.
type Clock func() time.Time

// UTC is the production clock.
func UTC() Clock {
	return func() time.Time { return time.Now().UTC() }
}

// Fixed returns a clock frozen at t.
func Fixed(t time.Time) Clock {
	return func() time.Time { return t }
}

// Remaining is the non-negative countdown from now to deadline.
func Remaining(now, deadline time.Time) time.Duration {
	d := deadline.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
