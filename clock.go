package class_notify

import "time"

// Clock abstracts the wall clock so the term resolver and the monitor
// can be driven deterministically in tests.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) *Ticker
}

type Ticker struct {
	C    <-chan time.Time
	stop func()
}

func (t *Ticker) Stop() { t.stop() }

// NewTicker builds a Ticker from a channel and a stop function, for Clock
// implementations other than RealClock.
func NewTicker(c <-chan time.Time, stop func()) *Ticker {
	return &Ticker{C: c, stop: stop}
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) NewTicker(d time.Duration) *Ticker {
	t := time.NewTicker(d)
	return &Ticker{C: t.C, stop: t.Stop}
}
