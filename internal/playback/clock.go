package playback

import "time"

// Clock is the time source the scheduler plans against. Now is a monotonic
// offset from an arbitrary epoch; After behaves like [time.After]. Tests
// substitute a fake clock to make cursor arithmetic deterministic.
type Clock interface {
	Now() time.Duration
	After(d time.Duration) <-chan time.Time
}

// NewClock returns a real clock whose epoch is the moment of this call.
func NewClock() Clock {
	return realClock{start: time.Now()}
}

type realClock struct {
	start time.Time
}

func (c realClock) Now() time.Duration {
	return time.Since(c.start)
}

func (c realClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
