package domain

import "github.com/jonboulle/clockwork"

// clock is a package-level time source so tests can freeze "now" via SetClock.
// Production code uses the real clock; tests inject a fake for deterministic defaults.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source used for default travel moments. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Clock returns the current time source.
func Clock() clockwork.Clock {
	return clock
}
