package core

import "time"

// Clock is the source of the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock, in UTC and at microsecond precision
// so that values round-trip through every supported database.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// ClockFunc adapts a plain function to a Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }
