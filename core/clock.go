package core

import (
	"math"
	"time"
)

// Clock supplies wall-clock time to components that stamp messages.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to the Clock interface.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads time.Now.
var SystemClock Clock = ClockFunc(time.Now)

// UnixSeconds converts t to fractional seconds since the Unix epoch.
// Seconds and the fractional part are converted separately so that the
// nanosecond count is not rounded to float64 precision first.
func UnixSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

// FromUnixSeconds is the inverse of UnixSeconds, rounded to the nearest
// microsecond.
func FromUnixSeconds(s float64) time.Time {
	sec, frac := math.Modf(s)
	usec := math.Round(frac * 1e6)
	return time.Unix(int64(sec), int64(usec)*int64(time.Microsecond))
}
