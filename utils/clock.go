package utils

import "time"

// Clock abstracts wall-clock reads so services and tests can control time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) share any instant.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// WithinNotice reports whether start is at least minNotice away from now.
func WithinNotice(now, start time.Time, minNotice time.Duration) bool {
	return !start.Before(now.Add(minNotice))
}

// BufferedInterval widens [start, end) by the provider's before/after
// buffers. Availability and overlap checks run against the widened window so
// back-to-back bookings keep their setup/teardown room.
func BufferedInterval(start, end time.Time, before, after time.Duration) (time.Time, time.Time) {
	return start.Add(-before), end.Add(after)
}
