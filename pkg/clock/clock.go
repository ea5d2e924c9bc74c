package clock

import "time"

// Clock abstracts time retrieval so lock expiry and timestamps are deterministic in tests.
type Clock interface {
	Now() time.Time
}

// Real returns the actual current time.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

// Stamp returns c.Now() in UTC truncated to the microsecond precision of the
// database timestamp columns, so values read back compare equal to those written.
func Stamp(c Clock) time.Time {
	if c == nil {
		c = Real{}
	}
	return c.Now().UTC().Truncate(time.Microsecond)
}
