package market

import "time"

// Clock supplies the current time. The simulator substitutes its own
// implementation so history replays and wall-clock runs share one code path.
type Clock interface {
	Now() time.Time
	// Today returns the current local date at midnight.
	Today() time.Time
	Sleep(d time.Duration)
}

// SystemClock is the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

func (SystemClock) Today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (SystemClock) Sleep(d time.Duration) {
	time.Sleep(d)
}
