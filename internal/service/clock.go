package service

import "time"

// Clock abstracts wall time so recovery and day keys are deterministic in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reports local time; daily stats roll over at local midnight.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc builds the tick source of a countdown.
type TickerFunc func(interval time.Duration) Ticker

type systemTicker struct {
	t *time.Ticker
}

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }

func NewSystemTicker(interval time.Duration) Ticker {
	return systemTicker{t: time.NewTicker(interval)}
}
