package limiter

import "time"

// Clock supplies the current time. Limiters take a Clock so tests can drive
// refill arithmetic with simulated time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// SystemClock returns a Clock backed by the wall clock.
func SystemClock() Clock {
	return systemClock{}
}

// unixSeconds converts a time to fractional seconds since the epoch, the
// representation bucket rows store timestamps in.
func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
